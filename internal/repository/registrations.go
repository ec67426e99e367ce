package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hostelgate/internal/database"
	apperrors "hostelgate/internal/errors"
	"hostelgate/internal/models"
)

type RegistrationRepository struct {
	db *database.DB
}

func NewRegistrationRepository(db *database.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// CreateBatch inserts all records of a reservation in one transaction.
// A second PRIMARY for the same reservation is reported as a conflict.
func (r *RegistrationRepository) CreateBatch(ctx context.Context, records []models.RegistrationRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO registration_records (reservation_number, role, endpoint, position, status,
		                                  attempts, guest_data, context_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	for i := range records {
		rec := &records[i]
		err := tx.QueryRowContext(ctx, query,
			rec.ReservationNumber,
			rec.Role,
			rec.Endpoint,
			rec.Position,
			rec.Status,
			rec.Attempts,
			jsonOrEmpty(rec.GuestData),
			jsonOrEmpty(rec.ContextData),
		).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			// A reservation holds at most one PRIMARY; a concurrent batch got there first.
			if isUniqueViolation(err) {
				return apperrors.Conflictf("registration records already exist for reservation %s", rec.ReservationNumber)
			}
			return fmt.Errorf("failed to insert registration record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration records: %w", err)
	}
	return nil
}

// ListByReservation returns PRIMARY first, then SECONDARY by position.
func (r *RegistrationRepository) ListByReservation(ctx context.Context, reservation string) ([]models.RegistrationRecord, error) {
	query := `
		SELECT id, reservation_number, role, endpoint, position, parent_code, assigned_code,
		       status, attempts, last_attempt_at, guest_data, context_data,
		       request_payload, response_payload, error_message, created_at, updated_at
		FROM registration_records
		WHERE reservation_number = $1
		ORDER BY CASE role WHEN 'PRIMARY' THEN 0 ELSE 1 END, position, id`

	rows, err := r.db.QueryContext(ctx, query, reservation)
	if err != nil {
		return nil, fmt.Errorf("failed to query registration records: %w", err)
	}
	defer rows.Close()

	var out []models.RegistrationRecord
	for rows.Next() {
		var (
			rec                          models.RegistrationRecord
			guest, rctx, request, answer []byte
		)
		err := rows.Scan(
			&rec.ID,
			&rec.ReservationNumber,
			&rec.Role,
			&rec.Endpoint,
			&rec.Position,
			&rec.ParentCode,
			&rec.AssignedCode,
			&rec.Status,
			&rec.Attempts,
			&rec.LastAttemptAt,
			&guest,
			&rctx,
			&request,
			&answer,
			&rec.ErrorMessage,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration record: %w", err)
		}
		rec.GuestData = rawJSON(guest)
		rec.ContextData = rawJSON(rctx)
		rec.RequestPayload = rawJSON(request)
		rec.ResponsePayload = rawJSON(answer)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkAttempt stores the outbound payload before the call is made.
func (r *RegistrationRepository) MarkAttempt(ctx context.Context, id int64, parentCode *string, payload json.RawMessage, at time.Time) error {
	query := `
		UPDATE registration_records
		SET attempts = attempts + 1,
		    last_attempt_at = $2,
		    request_payload = $3,
		    parent_code = $4,
		    updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, at, nullJSON(payload), parentCode); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

func (r *RegistrationRepository) MarkSent(ctx context.Context, id int64, assignedCode *string, response json.RawMessage) error {
	query := `
		UPDATE registration_records
		SET status = 'SENT',
		    assigned_code = $2,
		    response_payload = $3,
		    error_message = NULL,
		    updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, assignedCode, nullJSON(response)); err != nil {
		return fmt.Errorf("failed to mark record sent: %w", err)
	}
	return nil
}

func (r *RegistrationRepository) MarkError(ctx context.Context, id int64, message string, response json.RawMessage) error {
	query := `
		UPDATE registration_records
		SET status = 'ERROR',
		    error_message = $2,
		    response_payload = $3,
		    updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, message, nullJSON(response)); err != nil {
		return fmt.Errorf("failed to mark record error: %w", err)
	}
	return nil
}

// MarkUnsentError flags every non-SENT record of the reservation.
func (r *RegistrationRepository) MarkUnsentError(ctx context.Context, reservation, message string) (int64, error) {
	query := `
		UPDATE registration_records
		SET status = 'ERROR', error_message = $2, updated_at = NOW()
		WHERE reservation_number = $1 AND status <> 'SENT'`

	res, err := r.db.ExecContext(ctx, query, reservation, message)
	if err != nil {
		return 0, fmt.Errorf("failed to mark records error: %w", err)
	}
	return res.RowsAffected()
}

// ResetUnsent moves every non-SENT record back to PENDING.
func (r *RegistrationRepository) ResetUnsent(ctx context.Context, reservation string) (int64, error) {
	query := `
		UPDATE registration_records
		SET status = 'PENDING', error_message = NULL, updated_at = NOW()
		WHERE reservation_number = $1 AND status <> 'SENT'`

	res, err := r.db.ExecContext(ctx, query, reservation)
	if err != nil {
		return 0, fmt.Errorf("failed to reset records: %w", err)
	}
	return res.RowsAffected()
}
