package message

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventPaymentConfirmed = "payment.confirmed"
	EventPaymentRejected  = "payment.rejected"
)

type Payment struct {
	OrderID       uuid.UUID `json:"orderId"`
	CorrelationID uuid.UUID `json:"correlationId"`
	Status        string    `json:"status"`
	ProviderRef   string    `json:"providerRef,omitempty"`
	Message       string    `json:"message,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type PaymentEvent struct {
	ID      uuid.UUID `json:"id"`
	Event   string    `json:"event"`
	Payload Payment   `json:"payload"`
}
