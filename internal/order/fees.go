package order

import "math"

// FeeRule is the platform's cut of a vendor subtotal. Injected from config
// so the rule can change without code changes; the split computed at
// shipment creation is frozen regardless.
type FeeRule struct {
	Rate      float64
	Flat      float64
	Threshold float64
}

// DefaultFeeRule matches the launch pricing: 2.5% plus a flat 100 on
// subtotals of 1000 and above.
var DefaultFeeRule = FeeRule{Rate: 0.025, Flat: 100, Threshold: 1000}

// Split computes the platform fee and vendor earnings for a subtotal.
// The percentage is rounded to the nearest whole naira; earnings are
// never negative.
func (r FeeRule) Split(subtotal float64) (platformFee, vendorEarnings float64) {
	if subtotal <= 0 {
		return 0, 0
	}

	platformFee = math.Round(subtotal * r.Rate)
	if subtotal >= r.Threshold {
		platformFee += r.Flat
	}

	vendorEarnings = subtotal - platformFee
	if vendorEarnings < 0 {
		vendorEarnings = 0
	}
	return platformFee, vendorEarnings
}
