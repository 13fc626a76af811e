package handoff

import (
	"errors"
	"fmt"

	"campusmart-be/internal/status"
)

var (
	// -- Resource state --
	ErrHandoverNotFound = errors.New("handover record not found")
	ErrAlreadyCollected = errors.New("shipment already collected")
	ErrAlreadyDelivered = errors.New("shipment already delivered")
	ErrNotPickupOrder   = errors.New("shipment is not a pickup order")

	// -- Authorization --
	ErrUnauthorized = errors.New("unauthorized")

	// -- Custody tokens --
	// Distinct from generic validation failure: a wrong token on a real
	// shipment reads like a fraud attempt and is logged accordingly.
	ErrTokenMismatch = errors.New("custody token does not match")
)

// PreconditionError names the actual current status so a rejected desk
// operation is diagnosable without a second lookup.
type PreconditionError struct {
	Op      string
	Current status.ShipmentStatus
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s: shipment is %q", e.Op, e.Current)
}
