package dispute

import (
	"time"

	"github.com/google/uuid"
)

type Reason string

const (
	ReasonNotReceived    Reason = "item_not_received"
	ReasonDamaged        Reason = "item_damaged"
	ReasonNotAsDescribed Reason = "not_as_described"
	ReasonWrongItem      Reason = "wrong_item"
	ReasonOther          Reason = "other"
)

func ValidReason(r Reason) bool {
	switch r {
	case ReasonNotReceived, ReasonDamaged, ReasonNotAsDescribed, ReasonWrongItem, ReasonOther:
		return true
	}
	return false
}

type Status string

const (
	StatusOpen              Status = "open"
	StatusEvidenceSubmitted Status = "evidence_submitted"
	StatusUnderReview       Status = "under_review"
	StatusResolvedVendor    Status = "resolved_vendor"
	StatusResolvedCustomer  Status = "resolved_customer"
	StatusRefunded          Status = "refunded"
	StatusClosed            Status = "closed"
)

// Active reports whether the dispute still blocks a new one on the same
// shipment.
func (s Status) Active() bool {
	switch s {
	case StatusOpen, StatusEvidenceSubmitted, StatusUnderReview:
		return true
	}
	return false
}

type Outcome string

const (
	OutcomeRefund   Outcome = "refund"
	OutcomeVendor   Outcome = "vendor"
	OutcomeCustomer Outcome = "customer"
)

// StatusFor maps a resolution outcome to the dispute's final status.
func (o Outcome) StatusFor() (Status, bool) {
	switch o {
	case OutcomeRefund:
		return StatusRefunded, true
	case OutcomeVendor:
		return StatusResolvedVendor, true
	case OutcomeCustomer:
		return StatusResolvedCustomer, true
	}
	return "", false
}

type Dispute struct {
	ID          uuid.UUID
	ShipmentID  uuid.UUID
	OrderID     uuid.UUID
	OpenerID    uint
	StoreID     uint
	Reason      Reason
	Description string
	Evidence    []string
	Status      Status
	Messages    []Message
	Resolution  *Resolution
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message is one entry in the append-only thread.
type Message struct {
	ID        uuid.UUID
	DisputeID uuid.UUID
	SenderID  uint
	Role      string
	Body      string
	Evidence  []string
	CreatedAt time.Time
}

type Resolution struct {
	Outcome        Outcome
	RefundedAmount float64
	Notes          string
	ResolverID     uint
	ResolvedAt     time.Time
}
