package handoff

import (
	"context"
	"time"

	"campusmart-be/internal/logger"
	"campusmart-be/internal/order"
	"campusmart-be/internal/proof"
	"campusmart-be/internal/status"
	"campusmart-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Action names which custody leg a scan resolved to.
type Action string

const (
	ActionVendorHandoff Action = "vendor_handoff"
	ActionPickup        Action = "pickup"
)

// Result is what a desk scan produced.
type Result struct {
	Action   Action
	Shipment *order.Shipment
	Handover *HandoverRecord
}

type Service interface {
	// HandoverItem is the post-office desk scan. The identifier can be a
	// ref code, a QR token, a full or truncated shipment id, or the
	// parent order's payment reference; the presented token decides
	// whether this is the vendor handoff or the buyer pickup.
	HandoverItem(ctx context.Context, identifier, presentedToken string) (*Result, error)

	// MarkAsReadyForPickup notifies the buyer their parcel is at the desk.
	MarkAsReadyForPickup(ctx context.Context, shipmentID uuid.UUID) (*order.Shipment, error)

	// PickupItem completes the custody chain for a pickup shipment.
	PickupItem(ctx context.Context, handoverID uuid.UUID, presentedToken string, feedback *string) (*HandoverRecord, error)

	// ConfirmDirectDelivery closes a non-pickup shipment. Only the buyer
	// may trigger it: the parcel is their own property.
	ConfirmDirectDelivery(ctx context.Context, shipmentID uuid.UUID) (*order.Shipment, error)
}

type service struct {
	repo      Repository
	ledger    order.Service
	orderRepo order.Repository
	proofs    proof.Client
}

func NewService(repo Repository, ledger order.Service, orderRepo order.Repository, proofs proof.Client) Service {
	return &service{
		repo:      repo,
		ledger:    ledger,
		orderRepo: orderRepo,
		proofs:    proofs,
	}
}

func (s *service) HandoverItem(ctx context.Context, identifier, presentedToken string) (*Result, error) {
	principal, ok := utils.PrincipalFromContext(ctx)
	if !ok || !(principal.IsPostOffice() || principal.IsAdmin()) {
		return nil, ErrUnauthorized
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "HandoverItem"),
		zap.String("identifier", identifier),
		zap.Uint("operator_id", principal.ID),
	)

	// 1. Resolve whatever the scanner captured
	shipment, err := s.ledger.ResolveShipment(ctx, identifier)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("shipment_ref", shipment.RefID))

	// 2. The token class decides the action
	token := ExtractToken(presentedToken)
	switch token {
	case "":
		log.Warn("scan with no custody token")
		return nil, ErrTokenMismatch
	case shipment.VendorQRCode:
		return s.vendorHandoff(ctx, log, principal.ID, shipment, token)
	case shipment.ClientQRCode:
		return s.deskPickup(ctx, log, shipment, token)
	default:
		// Wrong token on a real shipment: possible fraud attempt.
		log.Error("custody token mismatch on desk scan")
		return nil, ErrTokenMismatch
	}
}

func (s *service) vendorHandoff(ctx context.Context, log *zap.Logger, operatorID uint, shipment *order.Shipment, token string) (*Result, error) {
	// The custody row names the seller; an unattributed row is worse
	// than a retried scan, so resolve the owner before touching state.
	sellerID, err := s.orderRepo.GetStoreOwner(ctx, shipment.StoreID)
	if err != nil {
		log.Error("failed to resolve store owner for handover record", zap.Error(err))
		return nil, err
	}

	if err := s.ledger.Transition(ctx, shipment, status.ShipmentHandedToPostOffice); err != nil {
		return nil, err
	}

	proofID := proof.SubmitQuiet(ctx, s.proofs, proof.Event{
		OrderID:    shipment.OrderID.String(),
		ShipmentID: shipment.ID.String(),
		ActorID:    operatorID,
		EventType:  proof.EventVendorHandoff,
		Timestamp:  time.Now(),
	})

	now := time.Now()
	rec := &HandoverRecord{
		ID:             uuid.New(),
		ShipmentID:     shipment.ID,
		SellerID:       sellerID,
		BuyerID:        shipment.BuyerID,
		Status:         HandoverHandedOver,
		PresentedToken: token,
		HandedOverAt:   &now,
		HandoffProofID: &proofID,
		ProofState:     proofStateFor(proofID),
	}
	if err := s.repo.UpsertHandover(ctx, rec); err != nil {
		log.Error("failed to upsert handover record", zap.Error(err))
		return nil, err
	}

	log.Info("vendor handoff recorded")
	return &Result{Action: ActionVendorHandoff, Shipment: shipment, Handover: rec}, nil
}

func (s *service) deskPickup(ctx context.Context, log *zap.Logger, shipment *order.Shipment, token string) (*Result, error) {
	// 1. The parcel must actually be at the desk. Without this guard a
	// client-token scan on a never-handed-over shipment would ride the
	// direct-delivery edge straight to the terminal state.
	switch shipment.Status {
	case status.ShipmentReadyForPickup, status.ShipmentHandedToPostOffice:
	default:
		return nil, &PreconditionError{Op: "desk pickup", Current: shipment.Status}
	}

	// 2. The custody chain requires a vendor handoff on record
	rec, err := s.repo.GetHandoverByShipment(ctx, shipment.ID)
	if err != nil {
		log.Error("no handover record for desk pickup", zap.Error(err))
		return nil, err
	}
	if rec.Status == HandoverCollected {
		return nil, ErrAlreadyCollected
	}

	// 3. Apply, then the best-effort tail
	if err := s.ledger.Transition(ctx, shipment, status.ShipmentDelivered); err != nil {
		return nil, err
	}

	proofID := proof.SubmitQuiet(ctx, s.proofs, proof.Event{
		OrderID:    shipment.OrderID.String(),
		ShipmentID: shipment.ID.String(),
		ActorID:    shipment.BuyerID,
		EventType:  proof.EventBuyerPickup,
		Timestamp:  time.Now(),
	})

	if err := s.repo.MarkCollected(ctx, rec.ID, proofID, nil, time.Now()); err != nil {
		return nil, err
	}
	rec.Status = HandoverCollected

	if err := s.ledger.CreditVendorDelivery(ctx, shipment.StoreID); err != nil {
		log.Error("failed to credit vendor delivery", zap.Error(err))
	}

	log.Info("desk pickup recorded")
	return &Result{Action: ActionPickup, Shipment: shipment, Handover: rec}, nil
}

func (s *service) MarkAsReadyForPickup(ctx context.Context, shipmentID uuid.UUID) (*order.Shipment, error) {
	principal, ok := utils.PrincipalFromContext(ctx)
	if !ok || !(principal.IsPostOffice() || principal.IsAdmin()) {
		return nil, ErrUnauthorized
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "MarkAsReadyForPickup"),
		zap.String("shipment_id", shipmentID.String()),
	)

	shipment, err := s.orderRepo.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	if !shipment.IsPickupOrder {
		return nil, ErrNotPickupOrder
	}
	if shipment.Status != status.ShipmentHandedToPostOffice {
		return nil, &PreconditionError{Op: "mark ready for pickup", Current: shipment.Status}
	}

	if err := s.ledger.Transition(ctx, shipment, status.ShipmentReadyForPickup); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateHandoverStatus(ctx, shipmentID, HandoverReadyForPickup); err != nil {
		log.Error("failed to update handover record", zap.Error(err))
	}

	log.Info("shipment ready for pickup")
	return shipment, nil
}

func (s *service) PickupItem(ctx context.Context, handoverID uuid.UUID, presentedToken string, feedback *string) (*HandoverRecord, error) {
	principal, ok := utils.PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "PickupItem"),
		zap.String("handover_id", handoverID.String()),
	)

	// 1. The caller must be the record's buyer
	rec, err := s.repo.GetHandover(ctx, handoverID)
	if err != nil {
		return nil, err
	}
	if rec.BuyerID != principal.ID {
		return nil, ErrUnauthorized
	}
	if rec.Status == HandoverCollected {
		return nil, ErrAlreadyCollected
	}

	// 2. The presented token must be the shipment's client token
	shipment, err := s.orderRepo.GetShipment(ctx, rec.ShipmentID)
	if err != nil {
		return nil, err
	}
	if ExtractToken(presentedToken) != shipment.ClientQRCode {
		log.Error("client token mismatch on pickup",
			zap.String("shipment_ref", shipment.RefID),
		)
		return nil, ErrTokenMismatch
	}

	// 3. The parcel must actually be at the desk
	switch shipment.Status {
	case status.ShipmentReadyForPickup, status.ShipmentHandedToPostOffice:
	default:
		return nil, &PreconditionError{Op: "pick up", Current: shipment.Status}
	}

	// 4. Apply, then the best-effort tail
	if err := s.ledger.Transition(ctx, shipment, status.ShipmentDelivered); err != nil {
		return nil, err
	}

	proofID := proof.SubmitQuiet(ctx, s.proofs, proof.Event{
		OrderID:    shipment.OrderID.String(),
		ShipmentID: shipment.ID.String(),
		ActorID:    principal.ID,
		EventType:  proof.EventBuyerPickup,
		Timestamp:  time.Now(),
	})

	now := time.Now()
	if err := s.repo.MarkCollected(ctx, rec.ID, proofID, feedback, now); err != nil {
		return nil, err
	}
	rec.Status = HandoverCollected
	rec.PickedUpAt = &now
	rec.Feedback = feedback
	rec.DeliveryProofID = &proofID

	if feedback != nil && *feedback == FeedbackUp {
		if err := s.ledger.CreditVendorDelivery(ctx, shipment.StoreID); err != nil {
			log.Error("failed to credit vendor delivery", zap.Error(err))
		}
	}

	log.Info("pickup completed", zap.String("shipment_ref", shipment.RefID))
	return rec, nil
}

func (s *service) ConfirmDirectDelivery(ctx context.Context, shipmentID uuid.UUID) (*order.Shipment, error) {
	principal, ok := utils.PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ConfirmDirectDelivery"),
		zap.String("shipment_id", shipmentID.String()),
	)

	shipment, err := s.orderRepo.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	// Strictly the buyer: not the vendor, not an operator, not an admin.
	// It is the buyer's own property being confirmed received.
	if shipment.BuyerID != principal.ID {
		return nil, ErrUnauthorized
	}

	if shipment.Status == status.ShipmentDelivered {
		return nil, ErrAlreadyDelivered
	}
	if !status.DispatchEquivalent(shipment.Status) {
		return nil, &PreconditionError{Op: "confirm delivery", Current: shipment.Status}
	}

	if err := s.ledger.Transition(ctx, shipment, status.ShipmentDelivered); err != nil {
		return nil, err
	}

	proof.SubmitQuiet(ctx, s.proofs, proof.Event{
		OrderID:    shipment.OrderID.String(),
		ShipmentID: shipment.ID.String(),
		ActorID:    principal.ID,
		EventType:  proof.EventDirectDelivery,
		Timestamp:  time.Now(),
	})

	if err := s.ledger.CreditVendorDelivery(ctx, shipment.StoreID); err != nil {
		log.Error("failed to credit vendor delivery", zap.Error(err))
	}

	log.Info("direct delivery confirmed", zap.String("shipment_ref", shipment.RefID))
	return shipment, nil
}

func proofStateFor(proofID string) string {
	if proofID == proof.StatusFailed {
		return proof.StatusFailed
	}
	return "confirmed"
}
