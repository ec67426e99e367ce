package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "hostelgate/internal/errors"
	"hostelgate/internal/logger"
	"hostelgate/internal/messaging"
	"hostelgate/internal/models"
)

const (
	defaultGuestListLimit = 50
	maxGuestListLimit     = 200
)

// PinRevoker removes a guest's PINs from the lock provider.
type PinRevoker interface {
	RevokeForGuest(ctx context.Context, guestID int64) ([]models.RevocationOutcome, error)
}

// RegistrationPipeline is the part of the registration service a check-in needs.
type RegistrationPipeline interface {
	CreateFromGuestList(ctx context.Context, reservation string, guests []models.GuestInput, rctx models.RegistrationContext) ([]models.RegistrationRecord, error)
	Enqueue(ctx context.Context, reservation string) error
	Status(ctx context.Context, reservation string) (*models.RegistrationSummary, error)
}

type GuestOptions struct {
	FrontendURL string
	AutoSubmit  bool
}

type GuestService struct {
	guests        GuestStore
	passcodes     PasscodeStore
	index         GuestIndex
	pins          PinRevoker
	registrations RegistrationPipeline
	publisher     messaging.Publisher
	opts          GuestOptions
	now           func() time.Time
}

func NewGuestService(guests GuestStore, passcodes PasscodeStore, index GuestIndex, pins PinRevoker, registrations RegistrationPipeline, publisher messaging.Publisher, opts GuestOptions) *GuestService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &GuestService{
		guests:        guests,
		passcodes:     passcodes,
		index:         index,
		pins:          pins,
		registrations: registrations,
		publisher:     publisher,
		opts:          opts,
		now:           time.Now,
	}
}

// CheckIn stores a guest self check-in. A missing reservation number gets a
// generated HG-XXXXXXXX code.
func (s *GuestService) CheckIn(ctx context.Context, sub models.CheckinSubmission) (*models.CheckinResponse, error) {
	g := sub.Guest
	if strings.TrimSpace(g.FullName) == "" {
		return nil, apperrors.Validationf("fullName is required")
	}
	if strings.TrimSpace(g.DocumentNumber) == "" {
		return nil, apperrors.Validationf("documentNumber is required")
	}

	arrival, err := parseOptionalDate("arrivalDate", g.ArrivalDate)
	if err != nil {
		return nil, err
	}
	departure, err := parseOptionalDate("departureDate", g.DepartureDate)
	if err != nil {
		return nil, err
	}
	if arrival != nil && departure != nil && departure.Before(*arrival) {
		return nil, apperrors.Validationf("departureDate must not be before arrivalDate")
	}

	reservation := strings.TrimSpace(sub.ReservationNumber)
	if reservation == "" {
		reservation = GenerateReservationNumber()
	}
	ctx = logger.ContextWithReservation(ctx, reservation)
	log := logger.WithContext(ctx)

	var companions json.RawMessage
	if len(sub.Companions) > 0 {
		if companions, err = json.Marshal(sub.Companions); err != nil {
			return nil, fmt.Errorf("failed to encode companions: %w", err)
		}
	}

	shareURL := s.shareURL(reservation)
	record := &models.GuestRecord{
		ReservationNumber:  reservation,
		FullName:           strings.TrimSpace(g.FullName),
		DocumentType:       g.DocumentType,
		DocumentNumber:     strings.TrimSpace(g.DocumentNumber),
		Nationality:        g.Nationality,
		Phone:              g.Phone,
		Email:              strings.TrimSpace(g.Email),
		OriginAddress:      g.OriginAddress,
		DestinationAddress: g.DestAddress,
		TravelReason:       g.TravelReason,
		ArrivalDate:        arrival,
		DepartureDate:      departure,
		ShareURL:           &shareURL,
		Documents:          sub.Documents,
		Companions:         companions,
	}
	if record.Documents == nil {
		record.Documents = []string{}
	}
	if err := s.guests.Create(ctx, record); err != nil {
		return nil, err
	}
	log.Info("Guest checked in", "guest_id", record.ID, "companions", len(sub.Companions))

	if err := s.publisher.Publish(models.EventGuestCheckedIn, models.GuestCheckedInEvent{
		Guest:     *record,
		Timestamp: s.now(),
	}); err != nil {
		log.Error("Failed to publish guest checked in event", "error", err)
	}

	resp := &models.CheckinResponse{
		ID:                record.ID,
		ReservationNumber: reservation,
		ShareURL:          shareURL,
	}
	if s.opts.AutoSubmit && s.registrations != nil {
		resp.RegistrationQueue = s.submitRegistration(ctx, reservation, sub)
	}
	return resp, nil
}

// submitRegistration never fails the check-in; errors are logged and the
// reservation can be retried from the admin surface.
func (s *GuestService) submitRegistration(ctx context.Context, reservation string, sub models.CheckinSubmission) bool {
	log := logger.WithContext(ctx)
	guests := append([]models.GuestInput{sub.Guest}, sub.Companions...)
	rctx := models.RegistrationContext{
		CheckIn:  sub.Guest.ArrivalDate,
		CheckOut: sub.Guest.DepartureDate,
	}
	if _, err := s.registrations.CreateFromGuestList(ctx, reservation, guests, rctx); err != nil {
		log.Error("Failed to create registration records", "error", err)
		return false
	}
	if err := s.registrations.Enqueue(ctx, reservation); err != nil {
		log.Warn("Registration not queued", "error", err)
		return false
	}
	return true
}

func (s *GuestService) shareURL(reservation string) string {
	return strings.TrimRight(s.opts.FrontendURL, "/") + "/checkin/" + url.PathEscape(reservation)
}

// List returns guests newest first. A free-text query goes to the search
// index when one is configured and falls back to SQL when it fails.
func (s *GuestService) List(ctx context.Context, filter models.GuestFilter) ([]models.GuestRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultGuestListLimit
	}
	if filter.Limit > maxGuestListLimit {
		filter.Limit = maxGuestListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Query = strings.TrimSpace(filter.Query)

	if filter.Query != "" && s.index != nil {
		ids, err := s.index.SearchIDs(ctx, filter)
		if err == nil {
			return s.guests.ListByIDs(ctx, ids)
		}
		logger.WithContext(ctx).Warn("Guest search index unavailable, using database", "error", err)
	}
	return s.guests.List(ctx, filter)
}

func (s *GuestService) Get(ctx context.Context, id int64) (*models.GuestDetail, error) {
	g, err := s.guests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperrors.NotFoundf("guest %d not found", id)
	}

	passcodes, err := s.passcodes.ListByGuest(ctx, id)
	if err != nil {
		return nil, err
	}
	if passcodes == nil {
		passcodes = []models.PasscodeRecord{}
	}
	detail := &models.GuestDetail{Guest: *g, Passcodes: passcodes}

	if s.registrations != nil {
		summary, err := s.registrations.Status(ctx, g.ReservationNumber)
		if err != nil {
			logger.WithContext(ctx).Warn("Failed to load registration status", "guest_id", id, "error", err)
		} else if summary.Total > 0 {
			detail.Registration = summary
		}
	}
	return detail, nil
}

func (s *GuestService) UpdateShareURL(ctx context.Context, id int64, shareURL string) (*models.GuestRecord, error) {
	shareURL = strings.TrimSpace(shareURL)
	u, err := url.ParseRequestURI(shareURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperrors.Validationf("shareUrl must be an absolute http(s) URL")
	}

	ok, err := s.guests.UpdateShareURL(ctx, id, shareURL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NotFoundf("guest %d not found", id)
	}
	return s.guests.GetByID(ctx, id)
}

// Delete revokes the guest's PINs on the provider, best effort, and then
// removes the record together with its passcodes.
func (s *GuestService) Delete(ctx context.Context, id int64) (*models.DeleteGuestResult, error) {
	g, err := s.guests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperrors.NotFoundf("guest %d not found", id)
	}
	ctx = logger.ContextWithReservation(ctx, g.ReservationNumber)
	log := logger.WithContext(ctx)

	result := &models.DeleteGuestResult{ID: id, Revocations: []models.RevocationOutcome{}}
	if s.pins != nil {
		outcomes, err := s.pins.RevokeForGuest(ctx, id)
		if err != nil {
			log.Warn("Failed to revoke guest PINs", "guest_id", id, "error", err)
		} else {
			result.Revocations = outcomes
		}
	}

	if _, err := s.passcodes.DeleteByGuest(ctx, id); err != nil {
		return nil, err
	}
	deleted, err := s.guests.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, apperrors.NotFoundf("guest %d not found", id)
	}

	if err := s.publisher.Publish(models.EventGuestDeleted, models.GuestDeletedEvent{
		GuestID:           id,
		ReservationNumber: g.ReservationNumber,
		Timestamp:         s.now(),
	}); err != nil {
		log.Error("Failed to publish guest deleted event", "error", err)
	}
	log.Info("Guest deleted", "guest_id", id, "revocations", len(result.Revocations))
	return result, nil
}

// GenerateReservationNumber returns HG- followed by 8 upper-case hex digits.
func GenerateReservationNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "HG-" + strings.ToUpper(raw[:8])
}

func parseOptionalDate(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, ok := parseDate(raw)
	if !ok {
		return nil, apperrors.Validationf("%s must be a date (YYYY-MM-DD)", field)
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d, nil
}
