package order

import "errors"

var (
	// -- Resource state --
	ErrOrderNotFound    = errors.New("order not found")
	ErrShipmentNotFound = errors.New("shipment not found")
	ErrStoreNotFound    = errors.New("store not found")

	// -- Authorization --
	ErrUnauthorized = errors.New("unauthorized")

	// -- Concurrency --
	// The shipment moved under the caller; the expected prior status no
	// longer matches and the write was not applied.
	ErrStaleStatus = errors.New("shipment status changed concurrently")
)
