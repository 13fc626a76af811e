package handoff

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// UpsertHandover creates or refreshes the single handover record for
	// a shipment (keyed by shipment id).
	UpsertHandover(ctx context.Context, rec *HandoverRecord) error

	GetHandover(ctx context.Context, handoverID uuid.UUID) (*HandoverRecord, error)
	GetHandoverByShipment(ctx context.Context, shipmentID uuid.UUID) (*HandoverRecord, error)

	UpdateHandoverStatus(ctx context.Context, shipmentID uuid.UUID, st HandoverStatus) error
	MarkCollected(ctx context.Context, handoverID uuid.UUID, proofID string, feedback *string, pickedUpAt time.Time) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const handoverColumns = `
	id, shipment_id, seller_id, buyer_id, status, presented_token,
	feedback, handed_over_at, picked_up_at,
	handoff_proof_id, delivery_proof_id, proof_state,
	created_at, updated_at
`

func scanHandover(row interface{ Scan(...any) error }) (*HandoverRecord, error) {
	var rec HandoverRecord
	err := row.Scan(
		&rec.ID, &rec.ShipmentID, &rec.SellerID, &rec.BuyerID, &rec.Status,
		&rec.PresentedToken, &rec.Feedback, &rec.HandedOverAt, &rec.PickedUpAt,
		&rec.HandoffProofID, &rec.DeliveryProofID, &rec.ProofState,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) UpsertHandover(ctx context.Context, rec *HandoverRecord) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO handover_records (
			id, shipment_id, seller_id, buyer_id, status, presented_token,
			handed_over_at, handoff_proof_id, proof_state, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
		ON CONFLICT (shipment_id) DO UPDATE SET
			status = EXCLUDED.status,
			presented_token = EXCLUDED.presented_token,
			handed_over_at = EXCLUDED.handed_over_at,
			handoff_proof_id = EXCLUDED.handoff_proof_id,
			proof_state = EXCLUDED.proof_state,
			updated_at = NOW()
		RETURNING id
	`,
		rec.ID, rec.ShipmentID, rec.SellerID, rec.BuyerID, rec.Status,
		rec.PresentedToken, rec.HandedOverAt, rec.HandoffProofID, rec.ProofState,
	).Scan(&rec.ID)
}

func (r *repository) GetHandover(ctx context.Context, handoverID uuid.UUID) (*HandoverRecord, error) {
	query := `SELECT ` + handoverColumns + ` FROM handover_records WHERE id = $1`
	rec, err := scanHandover(r.db.QueryRowContext(ctx, query, handoverID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHandoverNotFound
	}
	return rec, err
}

func (r *repository) GetHandoverByShipment(ctx context.Context, shipmentID uuid.UUID) (*HandoverRecord, error) {
	query := `SELECT ` + handoverColumns + ` FROM handover_records WHERE shipment_id = $1`
	rec, err := scanHandover(r.db.QueryRowContext(ctx, query, shipmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHandoverNotFound
	}
	return rec, err
}

func (r *repository) UpdateHandoverStatus(ctx context.Context, shipmentID uuid.UUID, st HandoverStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE handover_records
		SET status = $1, updated_at = NOW()
		WHERE shipment_id = $2
	`, st, shipmentID)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrHandoverNotFound
	}
	return nil
}

// MarkCollected is conditional on the record not being collected yet so a
// replayed pickup cannot double-collect.
func (r *repository) MarkCollected(ctx context.Context, handoverID uuid.UUID, proofID string, feedback *string, pickedUpAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE handover_records
		SET status = 'collected',
		    picked_up_at = $1,
		    delivery_proof_id = $2,
		    feedback = $3,
		    updated_at = NOW()
		WHERE id = $4
		  AND status <> 'collected'
	`, pickedUpAt, proofID, feedback, handoverID)
	if err != nil {
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrAlreadyCollected
	}
	return nil
}
