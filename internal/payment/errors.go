package payment

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrAttemptNotFound = errors.New("payment attempt not found")
	ErrOrderPaid       = errors.New("order is already paid")
	ErrInvalidMsisdn   = errors.New("invalid subscriber number")
	ErrInvalidAmount   = errors.New("order has no payable amount")
)

// InitiationError carries the provider's rejection of a payment request.
// Terminal for the attempt; the buyer may start a new one.
type InitiationError struct {
	Message string
}

func (e *InitiationError) Error() string {
	if e.Message == "" {
		return "payment initiation rejected"
	}
	return fmt.Sprintf("payment initiation rejected: %s", e.Message)
}

// VerificationError marks a failed status query. The caller should retry
// verification later; it is distinct from a business-level Unknown status.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("transaction verification failed: %v", e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}
