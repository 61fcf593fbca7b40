package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"airtel-gateway/internal/airtel"
	"airtel-gateway/internal/config"
	"airtel-gateway/internal/logging"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
)

// msisdn format for the Congo market: 0 followed by 4 or 5 and seven digits
const defaultMsisdnPattern = `^0[45][0-9]{7}$`

var (
	initiateAcceptedCounter  = metrics.GetOrCreateCounter(`payment_initiate_total{result="accepted"}`)
	initiateRejectedCounter  = metrics.GetOrCreateCounter(`payment_initiate_total{result="rejected"}`)
	initiateTransportCounter = metrics.GetOrCreateCounter(`payment_initiate_total{result="transport_error"}`)
	initiateReusedCounter    = metrics.GetOrCreateCounter(`payment_initiate_total{result="pending_reused"}`)
)

type ProviderClient interface {
	InitiatePayment(ctx context.Context, req airtel.PaymentRequest, accessToken string) (*airtel.PaymentResponse, error)
	QueryStatus(ctx context.Context, correlationID, accessToken string) (*airtel.StatusResponse, error)
}

type TokenSource interface {
	Get(ctx context.Context) (string, error)
	Invalidate()
}

type InitiatorStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetPendingAttempt(ctx context.Context, orderID uuid.UUID) (*Attempt, error)
	CreateAttempt(ctx context.Context, attempt *Attempt) error
}

// Initiator starts a provider-side payment for an order. It never creates
// a second attempt while one is pending; re-initiating returns the
// pending attempt unchanged.
type Initiator struct {
	client   ProviderClient
	tokens   TokenSource
	store    InitiatorStore
	country  string
	currency string
	msisdnRe *regexp.Regexp
	logger   *slog.Logger
}

func NewInitiator(client ProviderClient, tokens TokenSource, store InitiatorStore, merchant config.Merchant, logger *slog.Logger) *Initiator {
	pattern := merchant.MsisdnPattern
	if pattern == "" {
		pattern = defaultMsisdnPattern
	}

	return &Initiator{
		client:   client,
		tokens:   tokens,
		store:    store,
		country:  merchant.Country,
		currency: merchant.Currency,
		msisdnRe: regexp.MustCompile(pattern),
		logger:   logger,
	}
}

// ValidateMsisdn checks the subscriber number against the market's format
// before any network call is made.
func (i *Initiator) ValidateMsisdn(msisdn string) error {
	if !i.msisdnRe.MatchString(msisdn) {
		return ErrInvalidMsisdn
	}
	return nil
}

// Initiate requests a payment from the provider and records the attempt
// against the order. On provider rejection or transport failure the order
// stays in its current state so the buyer may retry.
func (i *Initiator) Initiate(ctx context.Context, orderID uuid.UUID, msisdn string) (*Attempt, error) {
	if err := i.ValidateMsisdn(msisdn); err != nil {
		return nil, err
	}

	order, err := i.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.State == OrderPaid {
		return nil, ErrOrderPaid
	}
	if order.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if pending, err := i.store.GetPendingAttempt(ctx, orderID); err == nil {
		i.logger.InfoContext(ctx, "Order already has a pending attempt", "orderId", orderID, "correlationId", pending.CorrelationID)
		initiateReusedCounter.Inc()
		return pending, nil
	} else if !errors.Is(err, ErrAttemptNotFound) {
		return nil, err
	}

	accessToken, err := i.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.New()
	ctx = logging.AppendCtx(ctx, slog.String("correlationId", correlationID.String()))

	req := airtel.PaymentRequest{
		Reference: fmt.Sprintf("Order %s", order.Reference),
		Subscriber: airtel.Subscriber{
			Country:  i.country,
			Currency: i.currency,
			Msisdn:   msisdn,
		},
		Transaction: airtel.PaymentTransaction{
			Amount:   order.Amount,
			Country:  i.country,
			Currency: i.currency,
			ID:       correlationID.String(),
		},
	}

	i.logger.InfoContext(ctx, "Initiating payment", "orderId", orderID, "amount", order.Amount)

	resp, err := i.client.InitiatePayment(ctx, req, accessToken)
	if err != nil {
		i.logger.ErrorContext(ctx, "Error initiating payment", "error", err)
		i.invalidateOnAuthFailure(err)
		initiateTransportCounter.Inc()
		return nil, err
	}

	if !resp.Status.Success {
		i.logger.WarnContext(ctx, "Provider rejected payment initiation", "message", resp.Status.Message)
		initiateRejectedCounter.Inc()
		return nil, &InitiationError{Message: resp.Status.Message}
	}

	attempt := &Attempt{
		CorrelationID: correlationID,
		OrderID:       orderID,
		Amount:        order.Amount,
		Currency:      i.currency,
		Msisdn:        msisdn,
		State:         AttemptPending,
		CreatedAt:     time.Now(),
	}

	if err := i.store.CreateAttempt(ctx, attempt); err != nil {
		i.logger.ErrorContext(ctx, "Error persisting payment attempt", "error", err)
		return nil, err
	}

	i.logger.InfoContext(ctx, "Payment initiated", "orderId", orderID)
	initiateAcceptedCounter.Inc()

	return attempt, nil
}

func (i *Initiator) invalidateOnAuthFailure(err error) {
	var apiErr *airtel.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
		i.tokens.Invalidate()
	}
}
