package inventory

import (
	"context"
	"database/sql"
	"errors"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// Repository adjusts product stock by a signed delta: negative on order
// creation, positive when a cancellation or refund releases the units.
type Repository interface {
	AdjustStock(ctx context.Context, productID uint, delta int) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) AdjustStock(ctx context.Context, productID uint, delta int) error {
	// The stock guard only bites on decrements; increments always apply.
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $1
		WHERE id = $2
		  AND stock + $1 >= 0
	`, delta, productID)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}
