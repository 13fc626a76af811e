package status

import "fmt"

// ShipmentStatus is the custody state of one vendor's shipment.
type ShipmentStatus string

const (
	ShipmentPendingPayment     ShipmentStatus = "pending_payment"
	ShipmentPaid               ShipmentStatus = "paid"
	ShipmentOrderConfirmed     ShipmentStatus = "order_confirmed"
	ShipmentHandedToPostOffice ShipmentStatus = "handed_to_post_office"
	ShipmentReadyForPickup     ShipmentStatus = "ready_for_pickup"
	ShipmentDelivered          ShipmentStatus = "delivered"
	ShipmentCancelled          ShipmentStatus = "cancelled"

	// Legacy peer-to-peer spellings. Normalized to order_confirmed for
	// transition purposes; kept so stored rows from older clients resolve.
	ShipmentShipped    ShipmentStatus = "shipped"
	ShipmentDispatched ShipmentStatus = "dispatched"
)

// OrderStatus is the buyer-facing aggregate state.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

// transitions is the forward edge set. Self-transitions are always legal
// and handled in IsValidTransition, not listed here.
var transitions = map[ShipmentStatus][]ShipmentStatus{
	ShipmentPendingPayment:     {ShipmentPaid, ShipmentCancelled},
	ShipmentPaid:               {ShipmentOrderConfirmed, ShipmentCancelled},
	ShipmentOrderConfirmed:     {ShipmentHandedToPostOffice, ShipmentDelivered, ShipmentCancelled},
	ShipmentHandedToPostOffice: {ShipmentReadyForPickup, ShipmentDelivered},
	ShipmentReadyForPickup:     {ShipmentDelivered},
	ShipmentDelivered:          {},
	ShipmentCancelled:          {},
}

// Normalize folds the peer-to-peer aliases into the canonical domain.
func Normalize(s ShipmentStatus) ShipmentStatus {
	switch s {
	case ShipmentShipped, ShipmentDispatched:
		return ShipmentOrderConfirmed
	default:
		return s
	}
}

// IsKnown reports whether s belongs to the status domain.
func IsKnown(s ShipmentStatus) bool {
	_, ok := transitions[Normalize(s)]
	return ok
}

// IsTerminal reports whether s has no outgoing edges.
func IsTerminal(s ShipmentStatus) bool {
	edges, ok := transitions[Normalize(s)]
	return ok && len(edges) == 0
}

// IsValidTransition returns true iff next == current (idempotent no-op)
// or next is in current's edge set.
func IsValidTransition(current, next ShipmentStatus) bool {
	cur := Normalize(current)
	nxt := Normalize(next)

	if !IsKnown(cur) || !IsKnown(nxt) {
		return false
	}
	if cur == nxt {
		return true
	}
	for _, edge := range transitions[cur] {
		if edge == nxt {
			return true
		}
	}
	return false
}

// InvalidTransitionError carries both states so a rejected request is
// diagnosable from the error alone.
type InvalidTransitionError struct {
	From ShipmentStatus
	To   ShipmentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
}

// ValidateTransition rejects anything outside the table.
func ValidateTransition(current, next ShipmentStatus) error {
	if !IsValidTransition(current, next) {
		return &InvalidTransitionError{From: current, To: next}
	}
	return nil
}

// DispatchEquivalent reports whether s counts as "on its way" for the
// peer-to-peer buyer confirmation path.
func DispatchEquivalent(s ShipmentStatus) bool {
	return Normalize(s) == ShipmentOrderConfirmed
}
