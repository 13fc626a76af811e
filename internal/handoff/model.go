package handoff

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type HandoverStatus string

const (
	HandoverHandedOver     HandoverStatus = "handed_over"
	HandoverReadyForPickup HandoverStatus = "ready_for_pickup"
	HandoverCollected      HandoverStatus = "collected"
)

const (
	FeedbackUp   = "up"
	FeedbackDown = "down"
)

// HandoverRecord is the audit trail of the physical custody chain for one
// post-office-routed shipment. At most one active record per shipment.
type HandoverRecord struct {
	ID             uuid.UUID
	ShipmentID     uuid.UUID
	SellerID       uint
	BuyerID        uint
	Status         HandoverStatus
	PresentedToken string
	Feedback       *string
	HandedOverAt   *time.Time
	PickedUpAt     *time.Time

	// External proof linkage; "failed" marks a degraded submission.
	HandoffProofID  *string
	DeliveryProofID *string
	ProofState      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExtractToken accepts either a bare token string or the structured
// payload some scanner clients send, e.g. {"token":"CQR-..."}.
func ExtractToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		return raw
	}

	var wrapper struct {
		Token  string `json:"token"`
		QRCode string `json:"qr_code"`
		Code   string `json:"code"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
		return raw
	}

	for _, candidate := range []string{wrapper.Token, wrapper.QRCode, wrapper.Code} {
		if candidate != "" {
			return candidate
		}
	}
	return raw
}
