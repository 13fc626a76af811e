package payment

import (
	"time"

	"github.com/google/uuid"
)

// Payment is the durable audit record written once per fulfilled reference.
type Payment struct {
	ID        uint
	OrderID   uuid.UUID
	Reference string
	Amount    float64
	Status    string
	Channel   string
	PaidAt    *time.Time
	CreatedAt time.Time
}

// VerificationEvent is the gateway's view of a transaction, delivered via
// the synchronous verify call and again via the asynchronous webhook. Both
// converge on the same idempotent fulfillment handler.
type VerificationEvent struct {
	Reference string        `json:"reference"`
	Status    string        `json:"status"`
	Amount    float64       `json:"amount"`
	Channel   string        `json:"channel"`
	PaidAt    *time.Time    `json:"paid_at"`
	Metadata  EventMetadata `json:"metadata"`
}

type EventMetadata struct {
	UserID         uint    `json:"userId"`
	DeliveryMethod string  `json:"deliveryMethod"`
	DeliveryFee    float64 `json:"delivery_fee"`
	ServiceFee     float64 `json:"service_fee"`
}

// Successful reports whether the event settles the charge.
func (e *VerificationEvent) Successful() bool {
	return e.Status == "success"
}
