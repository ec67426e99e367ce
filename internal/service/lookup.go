package service

import (
	"context"
	"strings"

	apperrors "hostelgate/internal/errors"
	"hostelgate/internal/external"
	"hostelgate/internal/logger"
	"hostelgate/internal/models"
)

const (
	cacheKeyReservation  = "booking:reservation:"
	cacheKeyReservations = "booking:reservations"
)

// LookupService finds a guest or reservation for pre-fill. Local check-ins
// win over the booking provider.
type LookupService struct {
	guests  GuestStore
	booking BookingAPI
	cache   BookingCache
}

func NewLookupService(guests GuestStore, booking BookingAPI, cache BookingCache) *LookupService {
	return &LookupService{guests: guests, booking: booking, cache: cache}
}

func (s *LookupService) ByDocument(ctx context.Context, number string) (*models.LookupResult, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, apperrors.Validationf("document number is required")
	}
	guests, err := s.guests.FindByDocument(ctx, number)
	if err != nil {
		return nil, err
	}
	if len(guests) == 0 {
		return nil, apperrors.NotFoundf("no guest with document %s", number)
	}
	return &models.LookupResult{Source: models.SourceLocal, Guests: guests}, nil
}

func (s *LookupService) ByReservation(ctx context.Context, code string) (*models.LookupResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.Validationf("reservation code is required")
	}
	g, err := s.guests.GetByReservation(ctx, code)
	if err != nil {
		return nil, err
	}
	if g != nil {
		return &models.LookupResult{Source: models.SourceLocal, Guests: []models.GuestRecord{*g}}, nil
	}

	if !s.bookingEnabled() {
		return nil, apperrors.NotFoundf("reservation %s not found", code)
	}

	var res models.Reservation
	key := cacheKeyReservation + code
	if s.cached(ctx, key, &res) {
		return &models.LookupResult{Source: models.SourceBooking, Reservations: []models.Reservation{res}}, nil
	}

	remote, err := s.booking.GetReservation(ctx, code)
	if err != nil {
		return nil, apperrors.Providerf("booking API unavailable: %v", err)
	}
	if remote == nil {
		return nil, apperrors.NotFoundf("reservation %s not found", code)
	}
	res = flattenReservation(*remote)
	s.store(ctx, key, res)
	return &models.LookupResult{Source: models.SourceBooking, Reservations: []models.Reservation{res}}, nil
}

// ByContact matches phone numbers by digits only and email case-insensitively.
func (s *LookupService) ByContact(ctx context.Context, phone, email string) (*models.LookupResult, error) {
	digits := digitsOnly(phone)
	email = strings.TrimSpace(email)
	if digits == "" && email == "" {
		return nil, apperrors.Validationf("phone or email is required")
	}

	guests, err := s.guests.FindByContact(ctx, digits, email)
	if err != nil {
		return nil, err
	}
	if len(guests) > 0 {
		return &models.LookupResult{Source: models.SourceLocal, Guests: guests}, nil
	}

	if !s.bookingEnabled() {
		return nil, apperrors.NotFoundf("no guest or reservation for this contact")
	}
	all, err := s.reservations(ctx)
	if err != nil {
		return nil, err
	}

	var matches []models.Reservation
	for _, r := range all {
		if digits != "" && digitsOnly(r.Phone) == digits {
			matches = append(matches, r)
			continue
		}
		if email != "" && strings.EqualFold(strings.TrimSpace(r.Email), email) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return nil, apperrors.NotFoundf("no guest or reservation for this contact")
	}
	return &models.LookupResult{Source: models.SourceBooking, Reservations: matches}, nil
}

func (s *LookupService) reservations(ctx context.Context) ([]models.Reservation, error) {
	var out []models.Reservation
	if s.cached(ctx, cacheKeyReservations, &out) {
		return out, nil
	}
	remote, err := s.booking.ListReservations(ctx)
	if err != nil {
		return nil, apperrors.Providerf("booking API unavailable: %v", err)
	}
	out = make([]models.Reservation, 0, len(remote))
	for _, r := range remote {
		out = append(out, flattenReservation(r))
	}
	s.store(ctx, cacheKeyReservations, out)
	return out, nil
}

func (s *LookupService) bookingEnabled() bool {
	return s.booking != nil && s.booking.Configured()
}

// cached reports a hit. Cache errors count as misses.
func (s *LookupService) cached(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.GetJSON(ctx, key, dest)
	if err != nil {
		logger.WithContext(ctx).Warn("Booking cache read failed", "key", key, "error", err)
		return false
	}
	return hit
}

func (s *LookupService) store(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value); err != nil {
		logger.WithContext(ctx).Warn("Booking cache write failed", "key", key, "error", err)
	}
}

func flattenReservation(r external.BookingReservation) models.Reservation {
	orderID := r.OrderID
	if orderID == "" {
		orderID = r.ID.String()
	}
	return models.Reservation{
		OrderID:   orderID,
		GuestName: strings.TrimSpace(r.FirstName + " " + r.LastName),
		Email:     r.Email,
		Phone:     firstNonEmpty(r.Phone, r.Mobile),
		CheckIn:   r.Arrival,
		CheckOut:  r.Departure,
		Adults:    r.NumAdult,
		Children:  r.NumChild,
		Room:      r.RoomName,
		Status:    r.Status,
	}
}
