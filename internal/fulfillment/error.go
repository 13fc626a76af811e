package fulfillment

import "errors"

var (
	ErrIntentNotFound = errors.New("payment intent not found")
	ErrEmptyIntent    = errors.New("payment intent has no items")
	ErrUnauthorized   = errors.New("unauthorized")
)
