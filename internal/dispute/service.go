package dispute

import (
	"context"
	"time"

	"campusmart-be/internal/auth"
	"campusmart-be/internal/logger"
	"campusmart-be/internal/order"
	"campusmart-be/internal/payment"
	"campusmart-be/internal/status"
	"campusmart-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	// OpenDispute raises a dispute against a delivered shipment. One
	// active dispute per shipment at a time.
	OpenDispute(ctx context.Context, shipmentID uuid.UUID, reason Reason, description string, evidence []string) (*Dispute, error)

	// SubmitResponse appends to the thread. The sender's role is
	// inferred: opener, shipment vendor, or admin; anyone else is
	// rejected.
	SubmitResponse(ctx context.Context, disputeID uuid.UUID, message string, evidence []string) (*Dispute, error)

	// ResolveDispute closes the case. Admin only. A refund outcome
	// triggers an external refund request as a best-effort side effect.
	ResolveDispute(ctx context.Context, disputeID uuid.UUID, outcome Outcome, refundedAmount float64, notes string) (*Dispute, error)
}

type service struct {
	repo      Repository
	orderRepo order.Repository
	gateway   payment.Gateway
}

func NewService(repo Repository, orderRepo order.Repository, gateway payment.Gateway) Service {
	return &service{
		repo:      repo,
		orderRepo: orderRepo,
		gateway:   gateway,
	}
}

func (s *service) OpenDispute(ctx context.Context, shipmentID uuid.UUID, reason Reason, description string, evidence []string) (*Dispute, error) {
	principal, ok := utils.PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "OpenDispute"),
		zap.String("shipment_id", shipmentID.String()),
	)

	if !ValidReason(reason) {
		return nil, ErrInvalidReason
	}

	// 1. Only the buyer of a delivered shipment may open
	shipment, err := s.orderRepo.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.BuyerID != principal.ID {
		return nil, ErrUnauthorized
	}
	if status.Normalize(shipment.Status) != status.ShipmentDelivered {
		return nil, ErrShipmentNotDelivered
	}

	// 2. One active dispute per shipment
	active, err := s.repo.GetActiveByShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrActiveDisputeExists
	}

	// 3. Create and link back onto the shipment
	d := &Dispute{
		ID:          uuid.New(),
		ShipmentID:  shipment.ID,
		OrderID:     shipment.OrderID,
		OpenerID:    principal.ID,
		StoreID:     shipment.StoreID,
		Reason:      reason,
		Description: description,
		Evidence:    evidence,
		Status:      StatusOpen,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.CreateDispute(ctx, d); err != nil {
		log.Error("failed to create dispute", zap.Error(err))
		return nil, err
	}

	if err := s.orderRepo.SetShipmentDispute(ctx, shipment.ID, order.DisputeOpen, &d.ID); err != nil {
		log.Error("failed to link dispute on shipment", zap.Error(err))
	}

	log.Info("dispute opened", zap.String("dispute_id", d.ID.String()))
	return d, nil
}

func (s *service) SubmitResponse(ctx context.Context, disputeID uuid.UUID, message string, evidence []string) (*Dispute, error) {
	principal, ok := utils.PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	d, err := s.repo.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !d.Status.Active() {
		return nil, ErrDisputeNotActive
	}

	role, err := s.inferRole(ctx, principal, d)
	if err != nil {
		return nil, err
	}

	m := &Message{
		ID:        uuid.New(),
		DisputeID: d.ID,
		SenderID:  principal.ID,
		Role:      role,
		Body:      message,
		Evidence:  evidence,
		CreatedAt: time.Now(),
	}
	if err := s.repo.AppendMessage(ctx, m); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, d.ID, StatusEvidenceSubmitted); err != nil {
		return nil, err
	}

	d.Messages = append(d.Messages, *m)
	d.Status = StatusEvidenceSubmitted
	return d, nil
}

// inferRole works out which side of the case the sender is on.
func (s *service) inferRole(ctx context.Context, principal auth.Principal, d *Dispute) (string, error) {
	if principal.IsAdmin() {
		return auth.RoleAdmin, nil
	}
	if principal.ID == d.OpenerID {
		return "buyer", nil
	}

	ownerID, err := s.orderRepo.GetStoreOwner(ctx, d.StoreID)
	if err != nil {
		return "", err
	}
	if ownerID == principal.ID {
		return auth.RoleVendor, nil
	}
	return "", ErrUnauthorized
}

func (s *service) ResolveDispute(ctx context.Context, disputeID uuid.UUID, outcome Outcome, refundedAmount float64, notes string) (*Dispute, error) {
	principal, ok := utils.PrincipalFromContext(ctx)
	if !ok || !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ResolveDispute"),
		zap.String("dispute_id", disputeID.String()),
		zap.String("outcome", string(outcome)),
	)

	finalStatus, ok := outcome.StatusFor()
	if !ok {
		return nil, ErrInvalidOutcome
	}

	d, err := s.repo.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !d.Status.Active() {
		return nil, ErrDisputeNotActive
	}

	res := &Resolution{
		Outcome:        outcome,
		RefundedAmount: refundedAmount,
		Notes:          notes,
		ResolverID:     principal.ID,
		ResolvedAt:     time.Now(),
	}
	if err := s.repo.SaveResolution(ctx, d.ID, finalStatus, res); err != nil {
		return nil, err
	}
	d.Status = finalStatus
	d.Resolution = res

	if err := s.orderRepo.SetShipmentDispute(ctx, d.ShipmentID, order.DisputeResolved, nil); err != nil {
		log.Error("failed to mark shipment dispute resolved", zap.Error(err))
	}

	// Refund is fired here but settled externally; its failure never
	// unwinds the resolution.
	if finalStatus == StatusRefunded {
		s.requestRefund(ctx, log, d, refundedAmount)
	}

	log.Info("dispute resolved")
	return d, nil
}

func (s *service) requestRefund(ctx context.Context, log *zap.Logger, d *Dispute, amount float64) {
	o, err := s.orderRepo.GetOrderDetail(ctx, d.OrderID)
	if err != nil {
		log.Error("failed to load order for refund", zap.Error(err))
		return
	}

	if err := s.gateway.RequestRefund(ctx, o.PaymentRef, amount); err != nil {
		log.Error("refund request degraded",
			zap.String("reference", o.PaymentRef),
			zap.Float64("amount", amount),
			zap.Error(err),
		)
	}
}
