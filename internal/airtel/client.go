package airtel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"airtel-gateway/internal/config"
	"github.com/pkg/errors"
)

const (
	sandboxBaseURL    = "https://openapiuat.airtel.africa"
	productionBaseURL = "https://openapi.airtel.africa"

	tokenPath    = "/auth/oauth2/token"
	paymentsPath = "/merchant/v1/payments/"
	statusPath   = "/standard/v1/payments/"

	defaultTimeoutMs = 60_000
)

// APIError surfaces non-2xx responses with the raw body retained for diagnostics.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airtel api error: status=%d body=%s", e.StatusCode, e.Body)
}

// AuthError marks a failure to obtain an access token.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("airtel auth error: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Client is a stateless HTTP adapter to the Airtel Money open API. It
// performs no business interpretation beyond deserialization.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	country      string
	currency     string
	logger       *slog.Logger
}

func NewClient(cfg config.Provider, merchant config.Merchant, logger *slog.Logger) *Client {
	baseURL := cfg.ProductionURL
	if baseURL == "" {
		baseURL = productionBaseURL
	}
	if cfg.TestMode {
		baseURL = cfg.SandboxURL
		if baseURL == "" {
			baseURL = sandboxBaseURL
		}
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}

	return &Client{
		httpClient:   &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		baseURL:      baseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		country:      merchant.Country,
		currency:     merchant.Currency,
		logger:       logger,
	}
}

// FetchToken requests a client-credentials access token.
func (c *Client) FetchToken(ctx context.Context) (*Token, error) {
	payload := tokenRequest{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		GrantType:    "client_credentials",
	}

	body, err := c.doRequest(ctx, http.MethodPost, tokenPath, "", payload)
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &AuthError{Err: errors.Wrapf(err, "decode token response: %s", body)}
	}
	if token.AccessToken == "" {
		return nil, &AuthError{Err: errors.Errorf("token response missing access_token: %s", body)}
	}

	return &token, nil
}

// InitiatePayment submits a USSD push payment request for the given attempt.
func (c *Client) InitiatePayment(ctx context.Context, req PaymentRequest, accessToken string) (*PaymentResponse, error) {
	body, err := c.doRequest(ctx, http.MethodPost, paymentsPath, accessToken, req)
	if err != nil {
		return nil, err
	}

	var resp PaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(err, "decode payment response: %s", body)
	}

	return &resp, nil
}

// QueryStatus fetches the current provider-side status for a correlation id.
func (c *Client) QueryStatus(ctx context.Context, correlationID, accessToken string) (*StatusResponse, error) {
	body, err := c.doRequest(ctx, http.MethodGet, statusPath+correlationID, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var resp StatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrapf(err, "decode status response: %s", body)
	}

	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, path, accessToken string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request payload")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("X-Country", c.country)
	req.Header.Set("X-Currency", c.currency)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	c.logger.DebugContext(ctx, "Sending provider request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	c.logger.DebugContext(ctx, "Provider response", "status", resp.Status)

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
