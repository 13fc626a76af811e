package payment

import (
	"context"
	"net/http"
)

type Gateway interface {
	// VerifyTransaction asks the gateway for the settled state of a
	// reference. Driven by the buyer's browser after redirect.
	VerifyTransaction(ctx context.Context, reference string) (*VerificationEvent, error)

	// RequestRefund pushes a refund for a settled reference. Best-effort
	// from the dispute resolver's point of view.
	RequestRefund(ctx context.Context, reference string, amount float64) error

	// VerifySignature authenticates an incoming webhook request.
	VerifySignature(r *http.Request, body []byte) error
}
