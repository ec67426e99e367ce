package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "hostelgate/internal/errors"
	"hostelgate/internal/external"
	"hostelgate/internal/logger"
	"hostelgate/internal/messaging"
	"hostelgate/internal/metrics"
	"hostelgate/internal/models"
	"hostelgate/internal/worker"
)

// reservationLocks admits at most one pipeline run per reservation in this
// process. It is not crash-safe; Retry is the recovery path.
type reservationLocks struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newReservationLocks() *reservationLocks {
	return &reservationLocks{inFlight: make(map[string]struct{})}
}

// tryAcquire returns a release func, or ok=false when a run is in flight.
func (l *reservationLocks) tryAcquire(reservation string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inFlight[reservation]; busy {
		return nil, false
	}
	l.inFlight[reservation] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.inFlight, reservation)
		l.mu.Unlock()
	}, true
}

type RegistrationService struct {
	store     RegistrationStore
	api       RegistrationAPI
	settings  external.TRAConfig
	queue     TaskQueue
	publisher messaging.Publisher
	metrics   *metrics.Metrics
	locks     *reservationLocks
	now       func() time.Time
}

func NewRegistrationService(store RegistrationStore, api RegistrationAPI, settings external.TRAConfig, queue TaskQueue, publisher messaging.Publisher, m *metrics.Metrics) *RegistrationService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &RegistrationService{
		store:     store,
		api:       api,
		settings:  settings,
		queue:     queue,
		publisher: publisher,
		metrics:   m,
		locks:     newReservationLocks(),
		now:       time.Now,
	}
}

// CreateFromGuestList stores one PENDING record per guest. guests[0] is the
// PRIMARY traveler; every other guest is SECONDARY. No call is made.
func (s *RegistrationService) CreateFromGuestList(ctx context.Context, reservation string, guests []models.GuestInput, rctx models.RegistrationContext) ([]models.RegistrationRecord, error) {
	reservation = strings.TrimSpace(reservation)
	if reservation == "" {
		return nil, apperrors.Validationf("reservation number is required")
	}
	if len(guests) == 0 {
		return nil, nil
	}

	existing, err := s.store.ListByReservation(ctx, reservation)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, apperrors.Conflictf("registration records already exist for reservation %s", reservation)
	}

	contextData, err := json.Marshal(rctx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration context: %w", err)
	}

	records := make([]models.RegistrationRecord, len(guests))
	for i, g := range guests {
		guestData, err := json.Marshal(g)
		if err != nil {
			return nil, fmt.Errorf("failed to encode guest %d: %w", i, err)
		}
		role := models.RoleSecondary
		if i == 0 {
			role = models.RolePrimary
		}
		records[i] = models.RegistrationRecord{
			ReservationNumber: reservation,
			Role:              role,
			Endpoint:          role.Endpoint(),
			Position:          i,
			Status:            models.StatusPending,
			GuestData:         guestData,
			ContextData:       contextData,
		}
	}

	if err := s.store.CreateBatch(ctx, records); err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("Registration records created",
		"reservation", reservation, "guests", len(records))
	return records, nil
}

// ProcessReservation submits the PRIMARY record and then every SECONDARY.
// A concurrent run for the same reservation returns Skipped immediately.
func (s *RegistrationService) ProcessReservation(ctx context.Context, reservation string) (*models.ProcessResult, error) {
	release, ok := s.locks.tryAcquire(reservation)
	if !ok {
		s.metrics.RegistrationSkipped()
		logger.WithContext(ctx).Info("Registration run already in progress, skipping", "reservation", reservation)
		return &models.ProcessResult{ReservationNumber: reservation, Skipped: true}, nil
	}
	defer release()

	ctx = logger.ContextWithReservation(ctx, reservation)
	log := logger.WithContext(ctx)
	result := &models.ProcessResult{ReservationNumber: reservation}

	if missing := s.settings.Missing(); len(missing) > 0 {
		msg := "missing registration settings: " + strings.Join(missing, ", ")
		n, err := s.store.MarkUnsentError(ctx, reservation, msg)
		if err != nil {
			return nil, err
		}
		log.Error("Registration settings incomplete", "missing", missing, "records", n)
		result.Failed = int(n)
		result.Error = msg
		s.finish(ctx, result)
		return result, apperrors.Configurationf("%s", msg)
	}

	records, err := s.store.ListByReservation(ctx, reservation)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NotFoundf("no registration records for reservation %s", reservation)
	}

	var (
		primary     *models.RegistrationRecord
		secondaries []*models.RegistrationRecord
	)
	for i := range records {
		rec := &records[i]
		if rec.Role == models.RolePrimary {
			if primary != nil {
				return nil, apperrors.Conflictf("reservation %s has more than one primary record", reservation)
			}
			primary = rec
			continue
		}
		secondaries = append(secondaries, rec)
	}
	if primary == nil {
		return nil, apperrors.Conflictf("reservation %s has no primary record", reservation)
	}

	var rctx models.RegistrationContext
	if len(primary.ContextData) > 0 {
		if err := json.Unmarshal(primary.ContextData, &rctx); err != nil {
			return nil, fmt.Errorf("invalid registration context for %s: %w", reservation, err)
		}
	}
	companions := len(records) - 1
	if rctx.CompanionCount != nil {
		companions = *rctx.CompanionCount
	}

	parentCode := ""
	if primary.Status == models.StatusSent {
		if primary.AssignedCode != nil {
			parentCode = *primary.AssignedCode
		}
		// Companions are never sent without a confirmed parent code.
		if parentCode == "" && hasUnsent(secondaries) {
			result.Failed++
			result.Error = "primary record was sent without an assigned code"
			log.Error("Primary registration has no assigned code, companions not attempted",
				"record_id", primary.ID)
			s.finish(ctx, result)
			return result, nil
		}
	} else {
		out, err := s.submit(ctx, primary, nil, rctx, companions)
		if err != nil {
			return nil, err
		}
		if !out.ok {
			result.Failed++
			result.Error = out.message
			log.Warn("Primary registration failed, companions not attempted",
				"record_id", primary.ID, "error", out.message)
			s.finish(ctx, result)
			return result, nil
		}
		result.Sent++
		parentCode = out.code
	}
	result.PrimaryCode = parentCode

	for _, rec := range secondaries {
		if rec.Status == models.StatusSent {
			continue
		}
		out, err := s.submit(ctx, rec, &parentCode, rctx, companions)
		if err != nil {
			return nil, err
		}
		if out.ok {
			result.Sent++
			continue
		}
		result.Failed++
		if result.Error == "" {
			result.Error = out.message
		}
	}

	result.OK = result.Failed == 0
	s.finish(ctx, result)
	return result, nil
}

func hasUnsent(records []*models.RegistrationRecord) bool {
	for _, rec := range records {
		if rec.Status != models.StatusSent {
			return true
		}
	}
	return false
}

type attemptOutcome struct {
	ok      bool
	code    string
	message string
}

// submit runs one record through the API. Provider failures are recorded on
// the record and reported in the outcome; only store failures return an error.
func (s *RegistrationService) submit(ctx context.Context, rec *models.RegistrationRecord, parentCode *string, rctx models.RegistrationContext, companions int) (attemptOutcome, error) {
	log := logger.WithContext(ctx).With("record_id", rec.ID, "role", rec.Role)

	var guest models.GuestInput
	if err := json.Unmarshal(rec.GuestData, &guest); err != nil {
		return attemptOutcome{}, fmt.Errorf("invalid guest data on record %d: %w", rec.ID, err)
	}

	now := s.now()
	payload := BuildPayload(s.settings, guest, rctx, companions, parentCode, now)
	body, err := json.Marshal(payload)
	if err != nil {
		return attemptOutcome{}, fmt.Errorf("failed to encode payload: %w", err)
	}
	if err := s.store.MarkAttempt(ctx, rec.ID, parentCode, body, now); err != nil {
		return attemptOutcome{}, err
	}

	resp, callErr := s.api.Submit(ctx, rec.Role.Endpoint(), payload)
	if callErr != nil {
		msg, raw := describeSubmitError(callErr)
		if err := s.store.MarkError(ctx, rec.ID, msg, raw); err != nil {
			return attemptOutcome{}, err
		}
		s.metrics.RegistrationSubmitted(string(rec.Role), "error")
		log.Warn("Registration submission failed", "error", msg)
		return attemptOutcome{message: msg}, nil
	}

	code := extractAssignedCode(resp.Body)
	if rec.Role == models.RolePrimary && code == "" {
		msg := "registration API responded without code"
		if err := s.store.MarkError(ctx, rec.ID, msg, resp.Body); err != nil {
			return attemptOutcome{}, err
		}
		s.metrics.RegistrationSubmitted(string(rec.Role), "error")
		log.Warn("Registration accepted without an assigned code", "status", resp.StatusCode)
		return attemptOutcome{message: msg}, nil
	}

	var assigned *string
	if code != "" {
		assigned = &code
	}
	if err := s.store.MarkSent(ctx, rec.ID, assigned, resp.Body); err != nil {
		return attemptOutcome{}, err
	}
	s.metrics.RegistrationSubmitted(string(rec.Role), "sent")
	log.Info("Registration submitted", "assigned_code", code)
	return attemptOutcome{ok: true, code: code}, nil
}

// describeSubmitError keeps the provider body when there is one.
func describeSubmitError(err error) (string, json.RawMessage) {
	var httpErr *external.HTTPError
	if errors.As(err, &httpErr) {
		raw := json.RawMessage(httpErr.Body)
		if !json.Valid(raw) {
			raw, _ = json.Marshal(string(httpErr.Body))
		}
		return httpErr.Error(), raw
	}
	return err.Error(), nil
}

func (s *RegistrationService) finish(ctx context.Context, result *models.ProcessResult) {
	logger.WithContext(ctx).Info("Registration run finished",
		"ok", result.OK, "sent", result.Sent, "failed", result.Failed)

	event := models.RegistrationProcessedEvent{
		ReservationNumber: result.ReservationNumber,
		OK:                result.OK,
		Sent:              result.Sent,
		Failed:            result.Failed,
		Timestamp:         s.now(),
	}
	if err := s.publisher.Publish(models.EventRegistrationProcessed, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish registration processed event", "error", err)
	}
}

// Status aggregates the records of a reservation. No records reports
// PENDING with an empty breakdown.
func (s *RegistrationService) Status(ctx context.Context, reservation string) (*models.RegistrationSummary, error) {
	records, err := s.store.ListByReservation(ctx, reservation)
	if err != nil {
		return nil, err
	}

	summary := &models.RegistrationSummary{
		ReservationNumber: reservation,
		Overall:           models.OverallPending,
		Total:             len(records),
	}
	if len(records) == 0 {
		return summary, nil
	}

	var (
		anyError, anyPending bool
		primarySent          bool
		lastErrorAt          time.Time
	)
	for i := range records {
		rec := &records[i]
		switch rec.Status {
		case models.StatusError:
			anyError = true
		case models.StatusPending:
			anyPending = true
		}

		if rec.Role == models.RolePrimary {
			status := rec.Status
			summary.PrimaryStatus = &status
			summary.PrimaryCode = rec.AssignedCode
			primarySent = rec.Status == models.StatusSent
		} else {
			switch rec.Status {
			case models.StatusSent:
				summary.Secondary.Sent++
			case models.StatusPending:
				summary.Secondary.Pending++
			case models.StatusError:
				summary.Secondary.Error++
			}
		}

		if rec.LastAttemptAt != nil && (summary.LastAttemptAt == nil || rec.LastAttemptAt.After(*summary.LastAttemptAt)) {
			t := *rec.LastAttemptAt
			summary.LastAttemptAt = &t
		}
		if rec.ErrorMessage != nil && (summary.LastError == nil || rec.UpdatedAt.After(lastErrorAt)) {
			msg := *rec.ErrorMessage
			summary.LastError = &msg
			lastErrorAt = rec.UpdatedAt
		}
	}

	switch {
	case anyError:
		summary.Overall = models.OverallError
	case primarySent && !anyPending:
		summary.Overall = models.OverallOK
	}
	return summary, nil
}

// Retry moves every non-SENT record back to PENDING and queues a run.
// When the queue is full the records stay PENDING and Queued is false.
func (s *RegistrationService) Retry(ctx context.Context, reservation string) (*models.RetryResult, error) {
	records, err := s.store.ListByReservation(ctx, reservation)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NotFoundf("no registration records for reservation %s", reservation)
	}

	n, err := s.store.ResetUnsent(ctx, reservation)
	if err != nil {
		return nil, err
	}

	result := &models.RetryResult{ReservationNumber: reservation, Reset: n}
	if err := s.Enqueue(ctx, reservation); err != nil {
		logger.WithContext(ctx).Warn("Registration retry not queued", "reservation", reservation, "error", err)
		return result, nil
	}
	result.Queued = true
	return result, nil
}

// Enqueue schedules ProcessReservation on the background queue.
func (s *RegistrationService) Enqueue(ctx context.Context, reservation string) error {
	if s.queue == nil {
		return worker.ErrStopped
	}
	requestID := logger.RequestIDFromContext(ctx)
	return s.queue.Submit(worker.Task{
		Name: "registration:" + reservation,
		Run: func(ctx context.Context) error {
			if requestID != "" {
				ctx = logger.ContextWithRequestID(ctx, requestID)
			}
			res, err := s.ProcessReservation(ctx, reservation)
			if err != nil {
				return err
			}
			if res.Skipped {
				return nil
			}
			if !res.OK {
				return fmt.Errorf("reservation %s: %d record(s) failed: %s", reservation, res.Failed, res.Error)
			}
			return nil
		},
	})
}
