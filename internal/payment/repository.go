package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

var ErrPaymentNotFound = errors.New("payment not found")

type Repository interface {
	SavePayment(ctx context.Context, p *Payment) error
	GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SavePayment(ctx context.Context, p *Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (
			order_id, reference, amount, status, channel, paid_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (reference) DO NOTHING
	`,
		p.OrderID, p.Reference, p.Amount, p.Status, p.Channel, p.PaidAt,
	)
	return err
}

func (r *repository) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, reference, amount, status, channel, paid_at, created_at
		FROM payments WHERE order_id = $1
	`, orderID)

	var p Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Reference, &p.Amount,
		&p.Status, &p.Channel, &p.PaidAt, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
