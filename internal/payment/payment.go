package payment

import (
	"time"

	"github.com/google/uuid"
)

type OrderState string

const (
	OrderCreated             OrderState = "created"
	OrderPendingConfirmation OrderState = "pending_confirmation"
	OrderPaid                OrderState = "paid"
	OrderFailed              OrderState = "failed"
)

type AttemptState string

const (
	AttemptPending   AttemptState = "pending"
	AttemptConfirmed AttemptState = "confirmed"
	AttemptRejected  AttemptState = "rejected"
)

// Terminal reports whether the attempt state must never change again.
func (s AttemptState) Terminal() bool {
	return s == AttemptConfirmed || s == AttemptRejected
}

type Order struct {
	ID             uuid.UUID
	Reference      string
	Amount         int64
	Currency       string
	State          OrderState
	ProviderRef    *string
	FailureMessage *string
	Note           *string
	StockReduced   bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transition is the result of a compare-and-set terminal update on an
// attempt: Applied is false when the attempt was already terminal, State
// is the attempt state after the call either way.
type Transition struct {
	Applied bool
	State   AttemptState
	OrderID uuid.UUID
}

// Attempt ties an order to a provider transaction. The correlation id is
// generated once at initiation and never regenerated; everything but the
// state is immutable after creation.
type Attempt struct {
	CorrelationID uuid.UUID
	OrderID       uuid.UUID
	Amount        int64
	Currency      string
	Msisdn        string
	State         AttemptState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
