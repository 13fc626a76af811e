package dispute

import "errors"

var (
	// -- Resource state --
	ErrDisputeNotFound      = errors.New("dispute not found")
	ErrActiveDisputeExists  = errors.New("shipment already has an active dispute")
	ErrShipmentNotDelivered = errors.New("dispute requires a delivered shipment")
	ErrDisputeNotActive     = errors.New("dispute is no longer active")

	// -- Validation --
	ErrInvalidReason  = errors.New("invalid dispute reason")
	ErrInvalidOutcome = errors.New("invalid resolution outcome")

	// -- Authorization --
	ErrUnauthorized = errors.New("unauthorized")
)
