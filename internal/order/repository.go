package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campusmart-be/internal/logger"
	"campusmart-be/internal/status"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	CreateOrderTx(ctx context.Context, o *Order, shipments []*Shipment) error

	GetOrderByReference(ctx context.Context, reference string) (*Order, error)
	GetOrderDetail(ctx context.Context, orderID uuid.UUID) (*Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID uint, limit, offset int32) ([]*Order, error)

	GetShipment(ctx context.Context, shipmentID uuid.UUID) (*Shipment, error)
	GetShipmentByRefID(ctx context.Context, refID string) (*Shipment, error)
	GetShipmentByToken(ctx context.Context, token string) (*Shipment, error)
	GetShipmentByIDFragment(ctx context.Context, fragment string) (*Shipment, error)
	GetShipmentsByOrderReference(ctx context.Context, reference string) ([]*Shipment, error)
	GetShipmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*Shipment, error)

	ClaimOrderPaid(ctx context.Context, reference string) (*Order, bool, error)
	MarkOrderFulfilled(ctx context.Context, orderID uuid.UUID) error

	UpdateShipmentStatus(ctx context.Context, shipmentID uuid.UUID, from, to status.ShipmentStatus) error
	SyncOrderItemStatus(ctx context.Context, shipmentID uuid.UUID, st status.ShipmentStatus) error
	SetShipmentDispute(ctx context.Context, shipmentID uuid.UUID, state DisputeState, disputeID *uuid.UUID) error
	IncrementVendorDeliveries(ctx context.Context, storeID uint) error
	GetStoreOwner(ctx context.Context, storeID uint) (uint, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const shipmentColumns = `
	id, ref_id, order_id, store_id, buyer_id, delivery_option,
	subtotal, delivery_fee, platform_fee, vendor_earnings,
	vendor_qr_code, client_qr_code, is_pickup_order,
	status, dispute_status, active_dispute_id, created_at, updated_at
`

func scanShipment(row interface{ Scan(...any) error }) (*Shipment, error) {
	var s Shipment
	err := row.Scan(
		&s.ID, &s.RefID, &s.OrderID, &s.StoreID, &s.BuyerID, &s.DeliveryOption,
		&s.Subtotal, &s.DeliveryFee, &s.PlatformFee, &s.VendorEarnings,
		&s.VendorQRCode, &s.ClientQRCode, &s.IsPickupOrder,
		&s.Status, &s.DisputeStatus, &s.ActiveDispute, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) CreateOrderTx(ctx context.Context, o *Order, shipments []*Shipment) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateOrderTx"),
		zap.String("order_id", o.ID.String()),
		zap.Int("shipment_count", len(shipments)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	// 1. Insert order
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, buyer_id, payment_ref, status,
			total, delivery_fee, service_fee, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		o.ID, o.BuyerID, o.PaymentRef, o.Status,
		o.Total, o.DeliveryFee, o.ServiceFee, o.CreatedAt,
	)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return err
	}

	// 2. Insert shipments + their item snapshots
	for _, s := range shipments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO shipments (
				id, ref_id, order_id, store_id, buyer_id, delivery_option,
				subtotal, delivery_fee, platform_fee, vendor_earnings,
				vendor_qr_code, client_qr_code, is_pickup_order,
				status, dispute_status, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		`,
			s.ID, s.RefID, s.OrderID, s.StoreID, s.BuyerID, s.DeliveryOption,
			s.Subtotal, s.DeliveryFee, s.PlatformFee, s.VendorEarnings,
			s.VendorQRCode, s.ClientQRCode, s.IsPickupOrder,
			s.Status, s.DisputeStatus, s.CreatedAt,
		)
		if err != nil {
			log.Error("failed to insert shipment",
				zap.String("shipment_ref", s.RefID),
				zap.Error(err),
			)
			return err
		}

		for _, item := range s.Items {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO shipment_items (
					id, shipment_id, product_id, name, quantity, price, subtotal
				) VALUES ($1,$2,$3,$4,$5,$6,$7)
			`,
				item.ID, s.ID, item.ProductID, item.Name,
				item.Quantity, item.Price, item.Subtotal,
			)
			if err != nil {
				return err
			}
		}
	}

	// 3. Insert order item mirrors
	for _, item := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, shipment_id, ref_id, product_id, name,
				quantity, price, status, vendor_qr_code, client_qr_code
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`,
			item.ID, o.ID, item.ShipmentID, item.RefID, item.ProductID, item.Name,
			item.Quantity, item.Price, item.Status, item.VendorQRCode, item.ClientQRCode,
		)
		if err != nil {
			log.Error("failed to insert order item mirror", zap.Error(err))
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit order transaction", zap.Error(err))
		return err
	}

	committed = true
	log.Info("order transaction committed")
	return nil
}

// GetOrderByReference returns (nil, nil) when no order exists for the
// reference so the fulfillment idempotency check can branch cleanly.
func (r *repository) GetOrderByReference(ctx context.Context, reference string) (*Order, error) {
	query := `
		SELECT id, buyer_id, payment_ref, status,
		       total, delivery_fee, service_fee, created_at, updated_at
		FROM orders
		WHERE payment_ref = $1
	`

	var o Order
	err := r.db.QueryRowContext(ctx, query, reference).Scan(
		&o.ID, &o.BuyerID, &o.PaymentRef, &o.Status,
		&o.Total, &o.DeliveryFee, &o.ServiceFee, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadOrderItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) GetOrderDetail(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	query := `
		SELECT id, buyer_id, payment_ref, status,
		       total, delivery_fee, service_fee, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var o Order
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&o.ID, &o.BuyerID, &o.PaymentRef, &o.Status,
		&o.Total, &o.DeliveryFee, &o.ServiceFee, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadOrderItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) loadOrderItems(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, shipment_id, ref_id, product_id, name,
		       quantity, price, status, vendor_qr_code, client_qr_code
		FROM order_items
		WHERE order_id = $1
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ShipmentID, &item.RefID,
			&item.ProductID, &item.Name, &item.Quantity, &item.Price,
			&item.Status, &item.VendorQRCode, &item.ClientQRCode,
		)
		if err != nil {
			return err
		}
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

func (r *repository) ListOrdersByBuyer(ctx context.Context, buyerID uint, limit, offset int32) ([]*Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, buyer_id, payment_ref, status,
		       total, delivery_fee, service_fee, created_at, updated_at
		FROM orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, buyerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var o Order
		err := rows.Scan(
			&o.ID, &o.BuyerID, &o.PaymentRef, &o.Status,
			&o.Total, &o.DeliveryFee, &o.ServiceFee, &o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

func (r *repository) GetShipment(ctx context.Context, shipmentID uuid.UUID) (*Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE id = $1`
	s, err := scanShipment(r.db.QueryRowContext(ctx, query, shipmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadShipmentItems(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repository) GetShipmentByRefID(ctx context.Context, refID string) (*Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE ref_id = $1`
	s, err := scanShipment(r.db.QueryRowContext(ctx, query, refID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadShipmentItems(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetShipmentByToken matches either custody token; the caller decides which
// leg the presented token authorizes.
func (r *repository) GetShipmentByToken(ctx context.Context, token string) (*Shipment, error) {
	query := `SELECT ` + shipmentColumns + `
		FROM shipments
		WHERE vendor_qr_code = $1 OR client_qr_code = $1`
	s, err := scanShipment(r.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadShipmentItems(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetShipmentByIDFragment resolves a truncated id a scanning client may
// have captured. The fragment must match exactly one shipment.
func (r *repository) GetShipmentByIDFragment(ctx context.Context, fragment string) (*Shipment, error) {
	query := `SELECT ` + shipmentColumns + `
		FROM shipments
		WHERE id::text ILIKE $1
		LIMIT 2`

	rows, err := r.db.QueryContext(ctx, query, fragment+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(matches) != 1 {
		return nil, ErrShipmentNotFound
	}

	if err := r.loadShipmentItems(ctx, matches[0]); err != nil {
		return nil, err
	}
	return matches[0], nil
}

func (r *repository) GetShipmentsByOrderReference(ctx context.Context, reference string) ([]*Shipment, error) {
	query := `SELECT ` + shipmentColumns + `
		FROM shipments
		WHERE order_id = (SELECT id FROM orders WHERE payment_ref = $1)`

	rows, err := r.db.QueryContext(ctx, query, reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shipments []*Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, s)
	}
	return shipments, rows.Err()
}

func (r *repository) GetShipmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE order_id = $1`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shipments []*Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, s)
	}
	return shipments, rows.Err()
}

func (r *repository) loadShipmentItems(ctx context.Context, s *Shipment) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, shipment_id, product_id, name, quantity, price, subtotal
		FROM shipment_items
		WHERE shipment_id = $1
	`, s.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item ShipmentItem
		err := rows.Scan(
			&item.ID, &item.ShipmentID, &item.ProductID,
			&item.Name, &item.Quantity, &item.Price, &item.Subtotal,
		)
		if err != nil {
			return err
		}
		s.Items = append(s.Items, item)
	}
	return rows.Err()
}

// ClaimOrderPaid is the single atomic claim behind idempotent fulfillment:
// only the caller whose conditional update lands performs the side effects.
// The loser gets the already-paid order back with claimed=false.
func (r *repository) ClaimOrderPaid(ctx context.Context, reference string) (*Order, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = 'paid', updated_at = NOW()
		WHERE payment_ref = $1
		  AND status = 'pending'
	`, reference)
	if err != nil {
		return nil, false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	o, err := r.GetOrderByReference(ctx, reference)
	if err != nil {
		return nil, false, err
	}
	if o == nil {
		return nil, false, ErrOrderNotFound
	}

	return o, affected == 1, nil
}

// MarkOrderFulfilled flips every child shipment and item mirror to paid in
// one update each, inside one transaction.
func (r *repository) MarkOrderFulfilled(ctx context.Context, orderID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE shipments
		SET status = 'paid', updated_at = NOW()
		WHERE order_id = $1
		  AND status = 'pending_payment'
	`, orderID)
	if err != nil {
		return fmt.Errorf("failed to mark shipments paid: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE order_items
		SET status = 'paid'
		WHERE order_id = $1
		  AND status = 'pending_payment'
	`, orderID)
	if err != nil {
		return fmt.Errorf("failed to mark order items paid: %w", err)
	}

	return tx.Commit()
}

// UpdateShipmentStatus applies a transition conditionally on the expected
// prior status. A stale caller fails with ErrStaleStatus instead of
// corrupting state.
func (r *repository) UpdateShipmentStatus(ctx context.Context, shipmentID uuid.UUID, from, to status.ShipmentStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE shipments
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		  AND status = $3
	`, to, shipmentID, from)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *repository) SyncOrderItemStatus(ctx context.Context, shipmentID uuid.UUID, st status.ShipmentStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE order_items
		SET status = $1
		WHERE shipment_id = $2
	`, st, shipmentID)
	return err
}

func (r *repository) SetShipmentDispute(ctx context.Context, shipmentID uuid.UUID, state DisputeState, disputeID *uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE shipments
		SET dispute_status = $1, active_dispute_id = $2, updated_at = NOW()
		WHERE id = $3
	`, state, disputeID, shipmentID)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrShipmentNotFound
	}
	return nil
}

func (r *repository) IncrementVendorDeliveries(ctx context.Context, storeID uint) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE stores
		SET successful_deliveries = successful_deliveries + 1
		WHERE id = $1
	`, storeID)
	return err
}

func (r *repository) GetStoreOwner(ctx context.Context, storeID uint) (uint, error) {
	var ownerID uint
	err := r.db.QueryRowContext(ctx, `
		SELECT owner_id FROM stores WHERE id = $1
	`, storeID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrStoreNotFound
	}
	return ownerID, err
}
