package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"hostelgate/internal/database"
	apperrors "hostelgate/internal/errors"
	"hostelgate/internal/models"

	"github.com/lib/pq"
)

type GuestRepository struct {
	db *database.DB
}

func NewGuestRepository(db *database.DB) *GuestRepository {
	return &GuestRepository{db: db}
}

const guestColumns = `id, reservation_number, full_name, document_type, document_number,
		       nationality, phone, email, origin_address, destination_address,
		       travel_reason, arrival_date, departure_date, share_url, lock_pin,
		       documents, companions, created_at`

func scanGuest(s scanner) (*models.GuestRecord, error) {
	var g models.GuestRecord
	var companions []byte
	err := s.Scan(
		&g.ID,
		&g.ReservationNumber,
		&g.FullName,
		&g.DocumentType,
		&g.DocumentNumber,
		&g.Nationality,
		&g.Phone,
		&g.Email,
		&g.OriginAddress,
		&g.DestinationAddress,
		&g.TravelReason,
		&g.ArrivalDate,
		&g.DepartureDate,
		&g.ShareURL,
		&g.LockPIN,
		pq.Array(&g.Documents),
		&companions,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.Companions = rawJSON(companions)
	return &g, nil
}

// Create inserts a guest record. A duplicate reservation number is a conflict.
func (r *GuestRepository) Create(ctx context.Context, g *models.GuestRecord) error {
	query := `
		INSERT INTO guest_records (reservation_number, full_name, document_type, document_number,
		                           nationality, phone, email, origin_address, destination_address,
		                           travel_reason, arrival_date, departure_date, share_url, documents, companions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at`

	documents := g.Documents
	if documents == nil {
		documents = []string{}
	}

	err := r.db.QueryRowContext(ctx, query,
		g.ReservationNumber,
		g.FullName,
		g.DocumentType,
		g.DocumentNumber,
		g.Nationality,
		g.Phone,
		g.Email,
		g.OriginAddress,
		g.DestinationAddress,
		g.TravelReason,
		g.ArrivalDate,
		g.DepartureDate,
		g.ShareURL,
		pq.Array(documents),
		nullJSON(g.Companions),
	).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflictf("reservation %s already has a check-in", g.ReservationNumber)
		}
		return fmt.Errorf("failed to create guest record: %w", err)
	}
	return nil
}

func (r *GuestRepository) GetByID(ctx context.Context, id int64) (*models.GuestRecord, error) {
	query := `SELECT ` + guestColumns + ` FROM guest_records WHERE id = $1`

	g, err := scanGuest(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

func (r *GuestRepository) GetByReservation(ctx context.Context, reservation string) (*models.GuestRecord, error) {
	query := `SELECT ` + guestColumns + ` FROM guest_records WHERE reservation_number = $1`

	g, err := scanGuest(r.db.QueryRowContext(ctx, query, reservation))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

func (r *GuestRepository) FindByDocument(ctx context.Context, number string) ([]models.GuestRecord, error) {
	query := `SELECT ` + guestColumns + `
		FROM guest_records
		WHERE document_number = $1
		ORDER BY created_at DESC`

	return r.queryGuests(ctx, query, number)
}

// FindByContact matches phone by digits only and email case-insensitively.
// Empty criteria are ignored; both empty yields no rows.
func (r *GuestRepository) FindByContact(ctx context.Context, phoneDigits, email string) ([]models.GuestRecord, error) {
	if phoneDigits == "" && email == "" {
		return nil, nil
	}
	query := `SELECT ` + guestColumns + `
		FROM guest_records
		WHERE ($1 <> '' AND regexp_replace(phone, '\D', '', 'g') = $1)
		   OR ($2 <> '' AND LOWER(email) = LOWER($2))
		ORDER BY created_at DESC`

	return r.queryGuests(ctx, query, phoneDigits, email)
}

// List returns guests newest first. Query matches name, reservation or document.
func (r *GuestRepository) List(ctx context.Context, filter models.GuestFilter) ([]models.GuestRecord, error) {
	var (
		conditions []string
		args       []any
	)
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		conditions = append(conditions,
			"(full_name ILIKE $1 OR reservation_number ILIKE $1 OR document_number ILIKE $1)")
	}

	query := `SELECT ` + guestColumns + ` FROM guest_records`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return r.queryGuests(ctx, query, args...)
}

// ListByIDs keeps the order of ids, skipping ids that no longer exist.
func (r *GuestRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.GuestRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + guestColumns + ` FROM guest_records WHERE id = ANY($1)`

	found, err := r.queryGuests(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.GuestRecord, len(found))
	for _, g := range found {
		byID[g.ID] = g
	}
	out := make([]models.GuestRecord, 0, len(found))
	for _, id := range ids {
		if g, ok := byID[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *GuestRepository) queryGuests(ctx context.Context, query string, args ...any) ([]models.GuestRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query guest records: %w", err)
	}
	defer rows.Close()

	var guests []models.GuestRecord
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guest record: %w", err)
		}
		guests = append(guests, *g)
	}
	return guests, rows.Err()
}

// UpdateShareURL reports false when the guest does not exist.
func (r *GuestRepository) UpdateShareURL(ctx context.Context, id int64, shareURL string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE guest_records SET share_url = $1 WHERE id = $2`, shareURL, id)
	if err != nil {
		return false, fmt.Errorf("failed to update share url: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *GuestRepository) UpdateLockPIN(ctx context.Context, id int64, pin string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE guest_records SET lock_pin = $1 WHERE id = $2`, pin, id)
	if err != nil {
		return fmt.Errorf("failed to update lock pin: %w", err)
	}
	return nil
}

// Delete removes the guest; passcode rows go with it through the foreign key.
func (r *GuestRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM guest_records WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete guest record: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
