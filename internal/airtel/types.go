package airtel

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type Subscriber struct {
	Country  string `json:"country"`
	Currency string `json:"currency"`
	Msisdn   string `json:"msisdn"`
}

type PaymentTransaction struct {
	Amount   int64  `json:"amount"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
	ID       string `json:"id"`
}

type PaymentRequest struct {
	Reference   string             `json:"reference"`
	Subscriber  Subscriber         `json:"subscriber"`
	Transaction PaymentTransaction `json:"transaction"`
}

type ResponseStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PaymentResponse struct {
	Status ResponseStatus `json:"status"`
}

type StatusTransaction struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	AirtelMoneyID string `json:"airtel_money_id"`
}

type StatusData struct {
	Transaction StatusTransaction `json:"transaction"`
}

type StatusResponse struct {
	Status ResponseStatus `json:"status"`
	Data   StatusData     `json:"data"`
}

// CallbackTransaction is the body Airtel pushes to the merchant callback URL.
type CallbackTransaction struct {
	ID            string `json:"id"`
	StatusCode    string `json:"status_code"`
	Message       string `json:"message"`
	AirtelMoneyID string `json:"airtel_money_id"`
}

type CallbackBody struct {
	Transaction CallbackTransaction `json:"transaction"`
}
