package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"airtel-gateway/internal/airtel"
	"airtel-gateway/internal/config"
	"airtel-gateway/internal/logging"
	"airtel-gateway/internal/payment"
	"airtel-gateway/internal/reconcile"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
)

var (
	callbackAppliedCounter   = metrics.GetOrCreateCounter(`callback_received_total{result="applied"}`)
	callbackUnknownCounter   = metrics.GetOrCreateCounter(`callback_received_total{result="unknown_status"}`)
	callbackInvalidCounter   = metrics.GetOrCreateCounter(`callback_received_total{result="invalid_body"}`)
	callbackDuplicateCounter = metrics.GetOrCreateCounter(`callback_received_total{result="duplicate"}`)
	callbackErrorCounter     = metrics.GetOrCreateCounter(`callback_received_total{result="error"}`)
)

type OrderStore interface {
	CreateOrder(ctx context.Context, order *payment.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*payment.Order, error)
	GetPendingAttempt(ctx context.Context, orderID uuid.UUID) (*payment.Attempt, error)
}

type Handler struct {
	store     OrderStore
	initiator *payment.Initiator
	verifier  *payment.Verifier
	engine    *reconcile.Engine
	merchant  config.Merchant
	logger    *slog.Logger
}

func NewHandler(store OrderStore, initiator *payment.Initiator, verifier *payment.Verifier, engine *reconcile.Engine, merchant config.Merchant, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		initiator: initiator,
		verifier:  verifier,
		engine:    engine,
		merchant:  merchant,
		logger:    logger,
	}
}

// Register wires all routes onto the mux once at startup.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /liveness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /orders", h.CreateOrder)
	mux.HandleFunc("POST /checkout", h.Checkout)
	mux.HandleFunc("GET /payments/status", h.PaymentStatus)
	mux.HandleFunc("POST /callbacks/airtel", h.Callback)
}

type createOrderRequest struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Amount must be positive.")
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = h.merchant.Currency
	}

	order := &payment.Order{
		ID:        uuid.New(),
		Reference: req.Reference,
		Amount:    req.Amount,
		Currency:  currency,
		State:     payment.OrderCreated,
	}

	if err := h.store.CreateOrder(r.Context(), order); err != nil {
		h.logger.ErrorContext(r.Context(), "Error creating order", "error", err)
		writeError(w, http.StatusInternalServerError, "Unable to create order.")
		return
	}

	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: map[string]string{"orderId": order.ID.String()}})
}

type checkoutRequest struct {
	OrderID string `json:"order_id"`
	Msisdn  string `json:"msisdn"`
}

type checkoutResponse struct {
	OrderID       string `json:"orderId"`
	CorrelationID string `json:"correlationId"`
	RedirectURL   string `json:"redirect_url"`
}

// Checkout starts a payment attempt for an order and points the buyer at
// the waiting page that will poll for the outcome.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order ID.")
		return
	}

	ctx := logging.AppendCtx(r.Context(), slog.String("orderId", orderID.String()))

	attempt, err := h.initiator.Initiate(ctx, orderID, req.Msisdn)
	if err != nil {
		h.writeInitiateError(ctx, w, err)
		return
	}

	writeSuccess(w, checkoutResponse{
		OrderID:       orderID.String(),
		CorrelationID: attempt.CorrelationID.String(),
		RedirectURL:   h.merchant.WaitingURL + "?order_id=" + orderID.String(),
	})
}

func (h *Handler) writeInitiateError(ctx context.Context, w http.ResponseWriter, err error) {
	var initErr *payment.InitiationError

	switch {
	case errors.Is(err, payment.ErrInvalidMsisdn):
		writeError(w, http.StatusBadRequest, "Please enter a valid Airtel Money number.")
	case errors.Is(err, payment.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "Order has no payable amount.")
	case errors.Is(err, payment.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "Invalid order ID.")
	case errors.Is(err, payment.ErrOrderPaid):
		writeError(w, http.StatusConflict, "Order is already paid.")
	case isAuthError(err):
		writeError(w, http.StatusBadGateway, "Unable to process payment: access token error.")
	case errors.As(err, &initErr):
		writeError(w, http.StatusUnprocessableEntity, "Payment initiation failed: "+initErr.Message)
	default:
		h.logger.ErrorContext(ctx, "Error initiating payment", "error", err)
		writeError(w, http.StatusBadGateway, "Unable to process payment. Please try again.")
	}
}

type statusResponse struct {
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// PaymentStatus is polled by the buyer's waiting page. It verifies the
// pending attempt against the provider, hands the result to the engine and
// reports the canonical status so the page can keep polling or redirect.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(r.URL.Query().Get("order_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order ID.")
		return
	}

	ctx := logging.AppendCtx(r.Context(), slog.String("orderId", orderID.String()))

	order, err := h.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, payment.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "Invalid order ID.")
			return
		}
		h.logger.ErrorContext(ctx, "Error loading order", "error", err)
		writeError(w, http.StatusInternalServerError, "Error checking payment status.")
		return
	}

	// The callback channel may have settled the order already.
	switch order.State {
	case payment.OrderPaid:
		writeSuccess(w, statusResponse{Status: payment.CodeSuccess, RedirectURL: h.merchant.ReturnURL})
		return
	case payment.OrderFailed:
		writeSuccess(w, statusResponse{Status: payment.CodeFailure, RedirectURL: h.merchant.CheckoutURL})
		return
	}

	attempt, err := h.store.GetPendingAttempt(ctx, orderID)
	if err != nil {
		if errors.Is(err, payment.ErrAttemptNotFound) {
			writeError(w, http.StatusNotFound, "Unable to complete payment: missing transaction ID.")
			return
		}
		h.logger.ErrorContext(ctx, "Error loading pending attempt", "error", err)
		writeError(w, http.StatusInternalServerError, "Error checking payment status.")
		return
	}

	obs, err := h.verifier.Verify(ctx, attempt.CorrelationID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Payment verification failed.")
		return
	}

	outcome, err := h.engine.Apply(ctx, attempt.CorrelationID, obs)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error applying verified status", "error", err)
		writeError(w, http.StatusInternalServerError, "Error checking payment status.")
		return
	}

	// Report the settled state, which may differ from this poll's
	// observation when the callback won the race.
	switch outcome.State {
	case payment.AttemptConfirmed:
		writeSuccess(w, statusResponse{Status: payment.CodeSuccess, RedirectURL: h.merchant.ReturnURL})
	case payment.AttemptRejected:
		writeSuccess(w, statusResponse{Status: payment.CodeFailure, RedirectURL: h.merchant.CheckoutURL})
	default:
		writeSuccess(w, statusResponse{Status: obs.Status.Code()})
	}
}

// Callback receives provider-pushed confirmations. It always acknowledges
// success so the provider does not retry-storm a webhook the merchant
// cannot currently process; failures are logged for operator follow-up.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	defer h.acknowledge(w)

	var body airtel.CallbackBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Transaction.ID == "" {
		h.logger.WarnContext(r.Context(), "Callback with invalid body", "error", err)
		callbackInvalidCounter.Inc()
		return
	}

	correlationID, err := uuid.Parse(body.Transaction.ID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Callback with malformed transaction id", "id", body.Transaction.ID)
		callbackInvalidCounter.Inc()
		return
	}

	ctx := logging.AppendCtx(r.Context(), slog.String("correlationId", correlationID.String()))

	status := payment.StatusFromCode(body.Transaction.StatusCode)
	if !status.Terminal() {
		// A callback that does not carry a terminal status is anomalous;
		// note it on the order and move on.
		h.engine.RecordUnknown(ctx, correlationID, body.Transaction.StatusCode, body.Transaction.Message)
		callbackUnknownCounter.Inc()
		return
	}

	obs := payment.Observation{
		Status:      status,
		Message:     body.Transaction.Message,
		ProviderRef: body.Transaction.AirtelMoneyID,
	}

	outcome, err := h.engine.Apply(ctx, correlationID, obs)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error applying callback status", "error", err)
		callbackErrorCounter.Inc()
		return
	}

	if outcome.Applied {
		callbackAppliedCounter.Inc()
	} else {
		callbackDuplicateCounter.Inc()
	}
}

func (h *Handler) acknowledge(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func isAuthError(err error) bool {
	var authErr *airtel.AuthError
	return errors.As(err, &authErr)
}
