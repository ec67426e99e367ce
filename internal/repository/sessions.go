package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hostelgate/internal/database"
	"hostelgate/internal/models"
)

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Upsert replaces any session of the same reservation with s. The
// reservation_number unique key resolves concurrent creations.
func (r *SessionRepository) Upsert(ctx context.Context, s *models.CheckinSession) error {
	query := `
		INSERT INTO checkin_sessions (reservation_number, token, payload, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (reservation_number) DO UPDATE
		SET token = EXCLUDED.token,
		    payload = EXCLUDED.payload,
		    expires_at = EXCLUDED.expires_at,
		    first_used_at = NULL,
		    updated_at = NOW()
		RETURNING id, first_used_at, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		s.ReservationNumber,
		s.Token,
		jsonOrEmpty(s.Payload),
		s.ExpiresAt,
	).Scan(&s.ID, &s.FirstUsedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert checkin session: %w", err)
	}
	return nil
}

// GetByToken returns the row even if expired; callers check expiry.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*models.CheckinSession, error) {
	query := `
		SELECT id, reservation_number, token, payload, expires_at, first_used_at, created_at, updated_at
		FROM checkin_sessions
		WHERE token = $1`

	var (
		s       models.CheckinSession
		payload []byte
	)
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&s.ID,
		&s.ReservationNumber,
		&s.Token,
		&payload,
		&s.ExpiresAt,
		&s.FirstUsedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkin session: %w", err)
	}
	s.Payload = rawJSON(payload)
	return &s, nil
}

// UpdatePayload only touches sessions still live at now.
func (r *SessionRepository) UpdatePayload(ctx context.Context, token string, payload json.RawMessage, expiresAt, now time.Time) (bool, error) {
	query := `
		UPDATE checkin_sessions
		SET payload = $2, expires_at = $3, updated_at = NOW()
		WHERE token = $1 AND expires_at >= $4`

	res, err := r.db.ExecContext(ctx, query, token, jsonOrEmpty(payload), expiresAt, now)
	if err != nil {
		return false, fmt.Errorf("failed to save session progress: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkFirstUsed sets first_used_at once and returns the stored value.
func (r *SessionRepository) MarkFirstUsed(ctx context.Context, token string, at time.Time) (*time.Time, error) {
	query := `
		UPDATE checkin_sessions
		SET first_used_at = COALESCE(first_used_at, $2)
		WHERE token = $1
		RETURNING first_used_at`

	var used *time.Time
	err := r.db.QueryRowContext(ctx, query, token, at).Scan(&used)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark session used: %w", err)
	}
	return used, nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM checkin_sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
