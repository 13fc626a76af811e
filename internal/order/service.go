package order

import (
	"context"
	"strings"

	"campusmart-be/internal/auth"
	"campusmart-be/internal/inventory"
	"campusmart-be/internal/logger"
	"campusmart-be/internal/status"
	"campusmart-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	// ResolveShipment runs the ordered lookup chain over whatever
	// identifier a scanning client captured.
	ResolveShipment(ctx context.Context, identifier string) (*Shipment, error)

	// Transition applies a custody transition and mirrors it onto the
	// parent order's matching line. The shipment is the source of truth;
	// a failed mirror is logged, never rolled back.
	Transition(ctx context.Context, s *Shipment, next status.ShipmentStatus) error

	// UpdateShipmentStatus is the manual vendor update, bounded by the
	// same transition table as the protocol.
	UpdateShipmentStatus(ctx context.Context, shipmentID uuid.UUID, next status.ShipmentStatus) (*Shipment, error)

	GetOrderDetail(ctx context.Context, orderID uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, limit, offset int32) ([]*Order, error)

	CreditVendorDelivery(ctx context.Context, storeID uint) error
}

type service struct {
	repo      Repository
	stockRepo inventory.Repository
}

func NewService(repo Repository, stockRepo inventory.Repository) Service {
	return &service{repo: repo, stockRepo: stockRepo}
}

// lookupFn is one strategy in the identifier resolution chain.
type lookupFn func(ctx context.Context, identifier string) (*Shipment, error)

func (s *service) ResolveShipment(ctx context.Context, identifier string) (*Shipment, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrShipmentNotFound
	}

	// Ordered from most to least specific so behavior stays auditable:
	// ref code, QR token, full id, id fragment, parent payment reference.
	chain := []lookupFn{
		s.byRefCode,
		s.byToken,
		s.byFullID,
		s.byIDFragment,
		s.byPaymentReference,
	}

	for _, lookup := range chain {
		shipment, err := lookup(ctx, identifier)
		if err == nil {
			return shipment, nil
		}
		if err != ErrShipmentNotFound {
			return nil, err
		}
	}
	return nil, ErrShipmentNotFound
}

func (s *service) byRefCode(ctx context.Context, identifier string) (*Shipment, error) {
	return s.repo.GetShipmentByRefID(ctx, strings.ToUpper(identifier))
}

func (s *service) byToken(ctx context.Context, identifier string) (*Shipment, error) {
	return s.repo.GetShipmentByToken(ctx, identifier)
}

func (s *service) byFullID(ctx context.Context, identifier string) (*Shipment, error) {
	id, err := uuid.Parse(identifier)
	if err != nil {
		return nil, ErrShipmentNotFound
	}
	return s.repo.GetShipment(ctx, id)
}

func (s *service) byIDFragment(ctx context.Context, identifier string) (*Shipment, error) {
	// Anything shorter is too ambiguous to probe with.
	if len(identifier) < 8 {
		return nil, ErrShipmentNotFound
	}
	return s.repo.GetShipmentByIDFragment(ctx, identifier)
}

func (s *service) byPaymentReference(ctx context.Context, identifier string) (*Shipment, error) {
	shipments, err := s.repo.GetShipmentsByOrderReference(ctx, identifier)
	if err != nil {
		return nil, err
	}
	// Only an unambiguous single-shipment order resolves through its
	// payment reference.
	if len(shipments) != 1 {
		return nil, ErrShipmentNotFound
	}
	return shipments[0], nil
}

func (s *service) Transition(ctx context.Context, shipment *Shipment, next status.ShipmentStatus) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Transition"),
		zap.String("shipment_ref", shipment.RefID),
		zap.String("from", string(shipment.Status)),
		zap.String("to", string(next)),
	)

	if err := status.ValidateTransition(shipment.Status, next); err != nil {
		log.Warn("transition rejected", zap.Error(err))
		return err
	}

	// Idempotent no-op: the table allows it, nothing to write.
	if status.Normalize(shipment.Status) == status.Normalize(next) {
		return nil
	}

	if err := s.repo.UpdateShipmentStatus(ctx, shipment.ID, shipment.Status, next); err != nil {
		return err
	}
	shipment.Status = next

	// Mirror is a read-optimization, not the source of truth.
	if err := s.repo.SyncOrderItemStatus(ctx, shipment.ID, next); err != nil {
		log.Error("order mirror sync failed after shipment transition", zap.Error(err))
	}

	log.Info("shipment transitioned")
	return nil
}

func (s *service) UpdateShipmentStatus(ctx context.Context, shipmentID uuid.UUID, next status.ShipmentStatus) (*Shipment, error) {
	principal, ok := utils.PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	shipment, err := s.repo.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	if !principal.IsAdmin() {
		if principal.Role != auth.RoleVendor {
			return nil, ErrUnauthorized
		}
		ownerID, err := s.repo.GetStoreOwner(ctx, shipment.StoreID)
		if err != nil {
			return nil, err
		}
		if ownerID != principal.ID {
			return nil, ErrUnauthorized
		}
	}

	prior := shipment.Status
	if err := s.Transition(ctx, shipment, next); err != nil {
		return nil, err
	}

	// Restock exactly once: only the transition out of a live state into
	// cancelled releases inventory.
	if status.Normalize(next) == status.ShipmentCancelled && prior != status.ShipmentCancelled {
		s.restock(ctx, shipment)
	}

	return shipment, nil
}

func (s *service) restock(ctx context.Context, shipment *Shipment) {
	log := logger.FromCtx(ctx).With(
		zap.String("method", "restock"),
		zap.String("shipment_ref", shipment.RefID),
	)

	for _, item := range shipment.Items {
		if err := s.stockRepo.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.Error("failed to restock item",
				zap.Uint("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}

func (s *service) GetOrderDetail(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	principal, ok := utils.PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	o, err := s.repo.GetOrderDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !principal.IsAdmin() && o.BuyerID != principal.ID {
		return nil, ErrUnauthorized
	}

	// The mirrored items cover the happy read path; the shipments carry
	// the live custody state.
	o.Shipments, err = s.repo.GetShipmentsByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, limit, offset int32) ([]*Order, error) {
	principal, ok := utils.PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	return s.repo.ListOrdersByBuyer(ctx, principal.ID, limit, offset)
}

func (s *service) CreditVendorDelivery(ctx context.Context, storeID uint) error {
	return s.repo.IncrementVendorDeliveries(ctx, storeID)
}
