package repository

import (
	"context"
	"fmt"

	"hostelgate/internal/database"
	"hostelgate/internal/models"
)

type PasscodeRepository struct {
	db *database.DB
}

func NewPasscodeRepository(db *database.DB) *PasscodeRepository {
	return &PasscodeRepository{db: db}
}

// Upsert stores one PIN-on-lock row. With a provider id the row is keyed by
// (lock_id, provider_passcode_id) so re-provisioning updates in place;
// without one a new row is always inserted.
func (r *PasscodeRepository) Upsert(ctx context.Context, p *models.PasscodeRecord) error {
	if p.State == "" {
		p.State = models.PasscodeStateActive
	}

	query := `
		INSERT INTO passcodes (guest_record_id, lock_id, lock_alias, pin, provider_passcode_id,
		                       start_at, end_at, state, provider_ok, provider_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if p.ProviderPasscodeID != nil {
		query += `
		ON CONFLICT (lock_id, provider_passcode_id) DO UPDATE
		SET guest_record_id = EXCLUDED.guest_record_id,
		    lock_alias = EXCLUDED.lock_alias,
		    pin = EXCLUDED.pin,
		    start_at = EXCLUDED.start_at,
		    end_at = EXCLUDED.end_at,
		    state = EXCLUDED.state,
		    provider_ok = EXCLUDED.provider_ok,
		    provider_message = EXCLUDED.provider_message,
		    updated_at = NOW()`
	}
	query += `
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		p.GuestRecordID,
		p.LockID,
		p.LockAlias,
		p.PIN,
		p.ProviderPasscodeID,
		p.StartAt,
		p.EndAt,
		p.State,
		p.ProviderOK,
		p.ProviderMessage,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert passcode: %w", err)
	}
	return nil
}

func (r *PasscodeRepository) ListByGuest(ctx context.Context, guestID int64) ([]models.PasscodeRecord, error) {
	query := `
		SELECT id, guest_record_id, lock_id, lock_alias, pin, provider_passcode_id,
		       start_at, end_at, state, provider_ok, provider_message, created_at, updated_at
		FROM passcodes
		WHERE guest_record_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query passcodes: %w", err)
	}
	defer rows.Close()

	var out []models.PasscodeRecord
	for rows.Next() {
		var p models.PasscodeRecord
		err := rows.Scan(
			&p.ID,
			&p.GuestRecordID,
			&p.LockID,
			&p.LockAlias,
			&p.PIN,
			&p.ProviderPasscodeID,
			&p.StartAt,
			&p.EndAt,
			&p.State,
			&p.ProviderOK,
			&p.ProviderMessage,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan passcode: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PasscodeRepository) DeleteByGuest(ctx context.Context, guestID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM passcodes WHERE guest_record_id = $1`, guestID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete guest passcodes: %w", err)
	}
	return res.RowsAffected()
}

func (r *PasscodeRepository) DeleteByProviderID(ctx context.Context, lockID, passcodeID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM passcodes WHERE lock_id = $1 AND provider_passcode_id = $2`, lockID, passcodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete passcode: %w", err)
	}
	return res.RowsAffected()
}
