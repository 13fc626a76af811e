package fulfillment

import (
	"time"

	"campusmart-be/internal/order"

	"github.com/google/uuid"
)

type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentCompleted IntentStatus = "completed"
	IntentCancelled IntentStatus = "cancelled"
)

// PaymentIntent is the cart snapshot captured when the buyer started
// checkout: items with the prices they saw, the fee split, and the shipping
// choice. Fulfillment reads it; it never changes after capture.
type PaymentIntent struct {
	ID             uuid.UUID
	Reference      string
	BuyerID        uint
	DeliveryOption order.DeliveryOption
	DeliveryFee    float64
	ServiceFee     float64
	Status         IntentStatus
	Items          []IntentItem
	CreatedAt      time.Time
}

type IntentItem struct {
	ID        uuid.UUID
	IntentID  uuid.UUID
	ProductID uint
	StoreID   uint
	Name      string
	Quantity  int
	Price     float64
}
