package dispute

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Repository interface {
	CreateDispute(ctx context.Context, d *Dispute) error
	GetDispute(ctx context.Context, disputeID uuid.UUID) (*Dispute, error)

	// GetActiveByShipment returns (nil, nil) when the shipment has no
	// active dispute.
	GetActiveByShipment(ctx context.Context, shipmentID uuid.UUID) (*Dispute, error)

	AppendMessage(ctx context.Context, m *Message) error
	UpdateStatus(ctx context.Context, disputeID uuid.UUID, st Status) error
	SaveResolution(ctx context.Context, disputeID uuid.UUID, st Status, res *Resolution) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const disputeColumns = `
	id, shipment_id, order_id, opener_id, store_id, reason, description,
	evidence, status, created_at, updated_at
`

func (r *repository) CreateDispute(ctx context.Context, d *Dispute) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO disputes (
			id, shipment_id, order_id, opener_id, store_id,
			reason, description, evidence, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		d.ID, d.ShipmentID, d.OrderID, d.OpenerID, d.StoreID,
		d.Reason, d.Description, pq.Array(d.Evidence), d.Status, d.CreatedAt,
	)
	return err
}

func (r *repository) scanDispute(row *sql.Row) (*Dispute, error) {
	var d Dispute
	err := row.Scan(
		&d.ID, &d.ShipmentID, &d.OrderID, &d.OpenerID, &d.StoreID,
		&d.Reason, &d.Description, pq.Array(&d.Evidence), &d.Status,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repository) GetDispute(ctx context.Context, disputeID uuid.UUID) (*Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`

	d, err := r.scanDispute(r.db.QueryRowContext(ctx, query, disputeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadThread(ctx, d); err != nil {
		return nil, err
	}
	if err := r.loadResolution(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *repository) GetActiveByShipment(ctx context.Context, shipmentID uuid.UUID) (*Dispute, error) {
	query := `SELECT ` + disputeColumns + `
		FROM disputes
		WHERE shipment_id = $1
		  AND status IN ('open', 'evidence_submitted', 'under_review')
		LIMIT 1`

	d, err := r.scanDispute(r.db.QueryRowContext(ctx, query, shipmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *repository) loadThread(ctx context.Context, d *Dispute) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, dispute_id, sender_id, role, body, evidence, created_at
		FROM dispute_messages
		WHERE dispute_id = $1
		ORDER BY created_at ASC
	`, d.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m Message
		err := rows.Scan(
			&m.ID, &m.DisputeID, &m.SenderID, &m.Role,
			&m.Body, pq.Array(&m.Evidence), &m.CreatedAt,
		)
		if err != nil {
			return err
		}
		d.Messages = append(d.Messages, m)
	}
	return rows.Err()
}

func (r *repository) loadResolution(ctx context.Context, d *Dispute) error {
	var res Resolution
	err := r.db.QueryRowContext(ctx, `
		SELECT outcome, refunded_amount, notes, resolver_id, resolved_at
		FROM dispute_resolutions
		WHERE dispute_id = $1
	`, d.ID).Scan(
		&res.Outcome, &res.RefundedAmount, &res.Notes,
		&res.ResolverID, &res.ResolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	d.Resolution = &res
	return nil
}

func (r *repository) AppendMessage(ctx context.Context, m *Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispute_messages (
			id, dispute_id, sender_id, role, body, evidence, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		m.ID, m.DisputeID, m.SenderID, m.Role, m.Body,
		pq.Array(m.Evidence), m.CreatedAt,
	)
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, disputeID uuid.UUID, st Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, st, disputeID)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrDisputeNotFound
	}
	return nil
}

func (r *repository) SaveResolution(ctx context.Context, disputeID uuid.UUID, st Status, resolution *Resolution) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dispute_resolutions (
			dispute_id, outcome, refunded_amount, notes, resolver_id, resolved_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		disputeID, resolution.Outcome, resolution.RefundedAmount,
		resolution.Notes, resolution.ResolverID, resolution.ResolvedAt,
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE disputes
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, st, disputeID)
	if err != nil {
		return err
	}

	return tx.Commit()
}
