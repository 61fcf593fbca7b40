package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"airtel-gateway/internal/logging"
	"airtel-gateway/internal/message"
	"airtel-gateway/internal/payment"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
)

var (
	applyConfirmedCounter = metrics.GetOrCreateCounter(`reconcile_apply_total{result="confirmed"}`)
	applyRejectedCounter  = metrics.GetOrCreateCounter(`reconcile_apply_total{result="rejected"}`)
	applyDuplicateCounter = metrics.GetOrCreateCounter(`reconcile_apply_total{result="duplicate"}`)
	applyNoopCounter      = metrics.GetOrCreateCounter(`reconcile_apply_total{result="noop"}`)
	applyNotFoundCounter  = metrics.GetOrCreateCounter(`reconcile_apply_total{result="not_found"}`)
	applyErrorCounter     = metrics.GetOrCreateCounter(`reconcile_apply_total{result="error"}`)

	applyDurationHistogram = metrics.GetOrCreateHistogram(`reconcile_apply_duration_milliseconds`)
)

// Store applies terminal transitions with compare-and-set semantics: a
// terminal method reports Applied=false and the existing state when the
// attempt is already terminal.
type Store interface {
	ConfirmAttempt(ctx context.Context, correlationID uuid.UUID, providerRef string) (payment.Transition, error)
	RejectAttempt(ctx context.Context, correlationID uuid.UUID, msg string) (payment.Transition, error)
	NoteUnknownStatus(ctx context.Context, correlationID uuid.UUID, rawStatus, msg string) error
}

// Publisher emits payment events for downstream systems.
type Publisher interface {
	Publish(ctx context.Context, event message.PaymentEvent) error
}

// Outcome is what a channel observed after handing its status to the engine.
type Outcome struct {
	// Applied is true when this call performed the terminal transition.
	Applied bool
	// State is the attempt state after the call.
	State payment.AttemptState
}

// Engine arbitrates between the callback and polling channels. Apply is
// serialized per correlation id and idempotent: only the first terminal
// observation mutates the order, every later one sees the winner's state.
type Engine struct {
	store     Store
	publisher Publisher
	locks     *keyedMutex
	logger    *slog.Logger
}

func NewEngine(store Store, publisher Publisher, logger *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		publisher: publisher,
		locks:     newKeyedMutex(),
		logger:    logger,
	}
}

// Apply hands an observed status to the state machine. Non-terminal
// statuses never mutate anything. The returned outcome carries the attempt
// state as of this call so the caller can report it.
func (e *Engine) Apply(ctx context.Context, correlationID uuid.UUID, obs payment.Observation) (Outcome, error) {
	startTime := time.Now()
	defer func() {
		applyDurationHistogram.Update(float64(time.Since(startTime).Milliseconds()))
	}()

	ctx = logging.AppendCtx(ctx, slog.String("correlationId", correlationID.String()))

	if !obs.Status.Terminal() {
		e.logger.InfoContext(ctx, "Non-terminal status observed, nothing to apply", "status", string(obs.Status))
		applyNoopCounter.Inc()
		return Outcome{State: payment.AttemptPending}, nil
	}

	e.locks.lock(correlationID)
	defer e.locks.unlock(correlationID)

	var (
		tr  payment.Transition
		err error
	)

	if obs.Status == payment.StatusSuccessful {
		tr, err = e.store.ConfirmAttempt(ctx, correlationID, obs.ProviderRef)
	} else {
		tr, err = e.store.RejectAttempt(ctx, correlationID, obs.Message)
	}

	if err != nil {
		if errors.Is(err, payment.ErrAttemptNotFound) {
			e.logger.WarnContext(ctx, "No attempt matches correlation id")
			applyNotFoundCounter.Inc()
			return Outcome{}, payment.ErrAttemptNotFound
		}
		e.logger.ErrorContext(ctx, "Error applying terminal status", "error", err)
		applyErrorCounter.Inc()
		return Outcome{}, err
	}

	if !tr.Applied {
		e.logger.InfoContext(ctx, "Attempt already terminal", "state", string(tr.State))
		applyDuplicateCounter.Inc()
		return Outcome{Applied: false, State: tr.State}, nil
	}

	if obs.Status == payment.StatusSuccessful {
		e.logger.InfoContext(ctx, "Attempt confirmed, order paid", "providerRef", obs.ProviderRef)
		applyConfirmedCounter.Inc()
	} else {
		e.logger.InfoContext(ctx, "Attempt rejected, order failed", "message", obs.Message)
		applyRejectedCounter.Inc()
	}

	e.publishTerminal(ctx, tr.OrderID, correlationID, obs)

	return Outcome{Applied: true, State: tr.State}, nil
}

// RecordUnknown notes an unrecognized callback status on the order without
// transitioning anything. Lookup misses are logged, never propagated; the
// provider may replay callbacks for orders that no longer exist.
func (e *Engine) RecordUnknown(ctx context.Context, correlationID uuid.UUID, rawStatus, msg string) {
	ctx = logging.AppendCtx(ctx, slog.String("correlationId", correlationID.String()))

	e.logger.WarnContext(ctx, "Callback with unrecognized status", "status", rawStatus, "message", msg)

	if err := e.store.NoteUnknownStatus(ctx, correlationID, rawStatus, msg); err != nil {
		if errors.Is(err, payment.ErrAttemptNotFound) {
			applyNotFoundCounter.Inc()
			e.logger.WarnContext(ctx, "No attempt matches correlation id")
			return
		}
		e.logger.ErrorContext(ctx, "Error recording unknown status", "error", err)
	}
}

func (e *Engine) publishTerminal(ctx context.Context, orderID, correlationID uuid.UUID, obs payment.Observation) {
	if e.publisher == nil {
		return
	}

	eventType := message.EventPaymentConfirmed
	if obs.Status == payment.StatusFailed {
		eventType = message.EventPaymentRejected
	}

	event := message.PaymentEvent{
		ID:    uuid.New(),
		Event: eventType,
		Payload: message.Payment{
			OrderID:       orderID,
			CorrelationID: correlationID,
			Status:        obs.Status.Code(),
			ProviderRef:   obs.ProviderRef,
			Message:       obs.Message,
			OccurredAt:    time.Now(),
		},
	}

	// Best-effort: the order store is the source of truth, a failed
	// publish never undoes the transition.
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "Error publishing payment event", "error", err)
	}
}
