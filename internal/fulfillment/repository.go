package fulfillment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

type Repository interface {
	GetIntent(ctx context.Context, intentID uuid.UUID) (*PaymentIntent, error)
	GetIntentByReference(ctx context.Context, reference string) (*PaymentIntent, error)
	MarkIntentCompleted(ctx context.Context, intentID uuid.UUID) error
	ClearCart(ctx context.Context, buyerID uint) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetIntent(ctx context.Context, intentID uuid.UUID) (*PaymentIntent, error) {
	query := `
		SELECT id, reference, buyer_id, delivery_option,
		       delivery_fee, service_fee, status, created_at
		FROM payment_intents
		WHERE id = $1
	`

	var intent PaymentIntent
	err := r.db.QueryRowContext(ctx, query, intentID).Scan(
		&intent.ID, &intent.Reference, &intent.BuyerID, &intent.DeliveryOption,
		&intent.DeliveryFee, &intent.ServiceFee, &intent.Status, &intent.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) GetIntentByReference(ctx context.Context, reference string) (*PaymentIntent, error) {
	query := `
		SELECT id, reference, buyer_id, delivery_option,
		       delivery_fee, service_fee, status, created_at
		FROM payment_intents
		WHERE reference = $1
	`

	var intent PaymentIntent
	err := r.db.QueryRowContext(ctx, query, reference).Scan(
		&intent.ID, &intent.Reference, &intent.BuyerID, &intent.DeliveryOption,
		&intent.DeliveryFee, &intent.ServiceFee, &intent.Status, &intent.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) loadItems(ctx context.Context, intent *PaymentIntent) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, intent_id, product_id, store_id, name, quantity, price
		FROM payment_intent_items
		WHERE intent_id = $1
	`, intent.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item IntentItem
		err := rows.Scan(
			&item.ID, &item.IntentID, &item.ProductID,
			&item.StoreID, &item.Name, &item.Quantity, &item.Price,
		)
		if err != nil {
			return err
		}
		intent.Items = append(intent.Items, item)
	}
	return rows.Err()
}

func (r *repository) MarkIntentCompleted(ctx context.Context, intentID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payment_intents
		SET status = 'completed'
		WHERE id = $1
		  AND status = 'pending'
	`, intentID)
	return err
}

func (r *repository) ClearCart(ctx context.Context, buyerID uint) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM carts WHERE user_id = $1
	`, buyerID)
	return err
}
