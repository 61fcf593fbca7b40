package payment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"airtel-gateway/internal/airtel"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
)

var (
	verifySuccessCounter    = metrics.GetOrCreateCounter(`payment_verify_total{result="successful"}`)
	verifyFailedCounter     = metrics.GetOrCreateCounter(`payment_verify_total{result="failed"}`)
	verifyInProgressCounter = metrics.GetOrCreateCounter(`payment_verify_total{result="in_progress"}`)
	verifyUnknownCounter    = metrics.GetOrCreateCounter(`payment_verify_total{result="unknown"}`)
	verifyErrorCounter      = metrics.GetOrCreateCounter(`payment_verify_total{result="error"}`)
)

// Verifier queries the provider for the current status of a correlation id
// and normalizes the response into a canonical observation.
type Verifier struct {
	client ProviderClient
	tokens TokenSource
	logger *slog.Logger
}

func NewVerifier(client ProviderClient, tokens TokenSource, logger *slog.Logger) *Verifier {
	return &Verifier{
		client: client,
		tokens: tokens,
		logger: logger,
	}
}

// Verify returns the canonical status for the correlation id. Transport
// failures surface as VerificationError so the polling loop can back off;
// a response missing the expected status field is Unknown, not an error.
func (v *Verifier) Verify(ctx context.Context, correlationID uuid.UUID) (Observation, error) {
	accessToken, err := v.tokens.Get(ctx)
	if err != nil {
		verifyErrorCounter.Inc()
		return Observation{Status: StatusUnknown}, &VerificationError{Err: err}
	}

	resp, err := v.client.QueryStatus(ctx, correlationID.String(), accessToken)
	if err != nil {
		v.logger.ErrorContext(ctx, "Error querying transaction status", "correlationId", correlationID, "error", err)

		var apiErr *airtel.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			v.tokens.Invalidate()
		}

		verifyErrorCounter.Inc()
		return Observation{Status: StatusUnknown}, &VerificationError{Err: err}
	}

	if !resp.Status.Success || resp.Data.Transaction.Status == "" {
		v.logger.WarnContext(ctx, "Status response missing transaction status", "correlationId", correlationID, "message", resp.Status.Message)
		verifyUnknownCounter.Inc()
		return Observation{Status: StatusUnknown, Message: resp.Status.Message}, nil
	}

	obs := Observation{
		Status:      StatusFromCode(resp.Data.Transaction.Status),
		Message:     resp.Data.Transaction.Message,
		ProviderRef: resp.Data.Transaction.AirtelMoneyID,
	}

	switch obs.Status {
	case StatusSuccessful:
		verifySuccessCounter.Inc()
	case StatusFailed:
		verifyFailedCounter.Inc()
	case StatusInProgress:
		verifyInProgressCounter.Inc()
	default:
		verifyUnknownCounter.Inc()
	}

	v.logger.InfoContext(ctx, "Verified transaction status", "correlationId", correlationID, "status", string(obs.Status))

	return obs, nil
}
