package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"hostelgate/internal/config"
	apperrors "hostelgate/internal/errors"
	"hostelgate/internal/external"
	"hostelgate/internal/logger"
	"hostelgate/internal/messaging"
	"hostelgate/internal/metrics"
	"hostelgate/internal/models"
)

const (
	defaultPinDigits = 6
	minPinDigits     = 6
	maxPinDigits     = 9
)

var pinPattern = regexp.MustCompile(`^[0-9]{6,9}$`)

type PinService struct {
	guests    GuestStore
	passcodes PasscodeStore
	locks     LockProvider
	rooms     config.RoomMap
	publisher messaging.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewPinService(guests GuestStore, passcodes PasscodeStore, locks LockProvider, rooms config.RoomMap, publisher messaging.Publisher, m *metrics.Metrics) *PinService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &PinService{
		guests:    guests,
		passcodes: passcodes,
		locks:     locks,
		rooms:     rooms,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

// ProvisionForRoom creates one PIN on every lock of a room. Per-lock provider
// failures are recorded and reported, not returned as errors.
func (s *PinService) ProvisionForRoom(ctx context.Context, req models.ProvisionRequest) (*models.ProvisionResult, error) {
	if strings.TrimSpace(req.RoomID) == "" {
		return nil, apperrors.Validationf("roomId is required")
	}
	if req.GuestRecordID == 0 && strings.TrimSpace(req.ReservationNumber) == "" {
		return nil, apperrors.Validationf("reservationNumber or guestRecordId is required")
	}
	if req.PIN != "" && !pinPattern.MatchString(req.PIN) {
		return nil, apperrors.Validationf("pin must be 6 to 9 digits")
	}
	digits := req.Digits
	if digits == 0 {
		digits = defaultPinDigits
	}
	if req.PIN == "" && (digits < minPinDigits || digits > maxPinDigits) {
		return nil, apperrors.Validationf("digits must be between %d and %d", minPinDigits, maxPinDigits)
	}

	guest, err := s.resolveGuest(ctx, req)
	if err != nil {
		return nil, err
	}

	room, ok := s.rooms.Lookup(req.RoomID)
	if !ok {
		return nil, apperrors.NotFoundf("room %s has no configured locks", req.RoomID)
	}

	pin := req.PIN
	if pin == "" {
		if pin, err = GeneratePIN(digits); err != nil {
			return nil, err
		}
	}

	targets, err := s.resolveLocks(ctx, room.Aliases)
	if err != nil {
		return nil, err
	}

	ctx = logger.ContextWithReservation(ctx, guest.ReservationNumber)
	log := logger.WithContext(ctx)
	label := guest.ReservationNumber + "-" + req.RoomID

	result := &models.ProvisionResult{
		PIN:     pin,
		Room:    room.Name,
		RoomID:  req.RoomID,
		Total:   len(targets),
		Results: make([]models.LockOutcome, 0, len(targets)),
	}

	for _, lock := range targets {
		outcome := s.provisionLock(ctx, guest.ID, lock, pin, label, req.StartAt, req.EndAt)
		s.metrics.PinAttempt(outcome.OK)
		if outcome.OK {
			result.Succeeded++
		} else {
			result.Failed++
			log.Warn("PIN creation failed on lock",
				"lock_id", lock.LockID, "lock_alias", lock.LockAlias, "error", outcome.Error)
		}
		result.Results = append(result.Results, outcome)
	}

	if result.Succeeded > 0 {
		if err := s.guests.UpdateLockPIN(ctx, guest.ID, pin); err != nil {
			log.Error("Failed to store lock PIN on guest record", "guest_id", guest.ID, "error", err)
		}
		event := models.PinsProvisionedEvent{
			GuestID:   guest.ID,
			RoomID:    req.RoomID,
			Total:     result.Total,
			Succeeded: result.Succeeded,
			Timestamp: s.now(),
		}
		if err := s.publisher.Publish(models.EventPinsProvisioned, event); err != nil {
			log.Error("Failed to publish pins provisioned event", "error", err)
		}
	}

	log.Info("PIN provisioning finished",
		"room", req.RoomID, "total", result.Total, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

func (s *PinService) resolveGuest(ctx context.Context, req models.ProvisionRequest) (*models.GuestRecord, error) {
	var (
		guest *models.GuestRecord
		err   error
	)
	if req.GuestRecordID != 0 {
		guest, err = s.guests.GetByID(ctx, req.GuestRecordID)
	} else {
		guest, err = s.guests.GetByReservation(ctx, strings.TrimSpace(req.ReservationNumber))
	}
	if err != nil {
		return nil, err
	}
	if guest == nil {
		return nil, apperrors.NotFoundf("guest record not found")
	}
	return guest, nil
}

// resolveLocks keeps the accessible locks whose alias equals one of aliases
// exactly. No normalization is applied to either side.
func (s *PinService) resolveLocks(ctx context.Context, aliases []string) ([]external.LockKey, error) {
	keys, err := s.locks.ListKeys(ctx)
	if err != nil {
		return nil, apperrors.Providerf("failed to list locks: %v", err)
	}
	if len(keys) == 0 {
		return nil, apperrors.Providerf("lock provider returned no accessible locks")
	}

	wanted := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		wanted[a] = true
	}
	seen := make(map[int64]bool)
	var targets []external.LockKey
	for _, k := range keys {
		if wanted[k.LockAlias] && !seen[k.LockID] {
			seen[k.LockID] = true
			targets = append(targets, k)
		}
	}
	if len(targets) == 0 {
		return nil, apperrors.NotFoundf("no locks found for these aliases: %s", strings.Join(aliases, ", "))
	}
	return targets, nil
}

func (s *PinService) provisionLock(ctx context.Context, guestID int64, lock external.LockKey, pin, label string, startAt, endAt int64) models.LockOutcome {
	outcome := models.LockOutcome{LockID: lock.LockID, LockAlias: lock.LockAlias}
	record := models.PasscodeRecord{
		GuestRecordID: guestID,
		LockID:        lock.LockID,
		LockAlias:     lock.LockAlias,
		PIN:           pin,
		StartAt:       time.UnixMilli(startAt),
		EndAt:         time.UnixMilli(endAt),
		State:         models.PasscodeStateActive,
	}

	resp, err := s.locks.AddPasscode(ctx, external.AddPasscodeRequest{
		LockID:  lock.LockID,
		PIN:     pin,
		Name:    label,
		StartAt: startAt,
		EndAt:   endAt,
	})
	switch {
	case err != nil:
		outcome.Error = err.Error()
		outcome.Result = map[string]any{"error": err.Error()}
		record.ProviderMessage = err.Error()
	case !resp.OK():
		outcome.Error = fmt.Sprintf("errcode=%d %s", resp.ErrCode(), resp.ErrMsg())
		outcome.Result = resp
		record.ProviderMessage = outcome.Error
	default:
		outcome.OK = true
		outcome.Result = resp
		if id, ok := resp.Int64("keyboardPwdId"); ok {
			outcome.PasscodeID = &id
			record.ProviderPasscodeID = &id
		}
		record.ProviderOK = true
		record.ProviderMessage = "ok"
	}

	if err := s.passcodes.Upsert(ctx, &record); err != nil {
		logger.WithContext(ctx).Error("Failed to persist passcode",
			"lock_id", lock.LockID, "error", err)
		if outcome.Error == "" {
			outcome.Error = "PIN created but not saved locally"
		}
	}
	return outcome
}

// ListAllPasscodes returns every lock on the account with its provider-side
// PINs. A lock whose listing fails is returned with Error set.
func (s *PinService) ListAllPasscodes(ctx context.Context) ([]models.LockPasscodes, error) {
	locks, err := s.locks.ListLocks(ctx)
	if err != nil {
		return nil, apperrors.Providerf("failed to list locks: %v", err)
	}

	out := make([]models.LockPasscodes, 0, len(locks))
	for _, l := range locks {
		entry := models.LockPasscodes{LockID: l.LockID, LockAlias: l.LockAlias, Passcodes: []models.ProviderPasscode{}}
		codes, err := s.locks.ListPasscodes(ctx, l.LockID)
		if err != nil {
			entry.Error = err.Error()
			out = append(out, entry)
			continue
		}
		for _, c := range codes {
			entry.Passcodes = append(entry.Passcodes, models.ProviderPasscode{
				PasscodeID: c.KeyboardPwdID,
				PIN:        c.KeyboardPwd,
				Name:       c.KeyboardPwdName,
				StartAt:    c.StartDate,
				EndAt:      c.EndDate,
				Status:     c.Status,
			})
		}
		out = append(out, entry)
	}
	return out, nil
}

// DeletePasscode removes a PIN on the provider and then its local row.
func (s *PinService) DeletePasscode(ctx context.Context, lockID, passcodeID int64) (*models.RevocationOutcome, error) {
	if lockID <= 0 || passcodeID <= 0 {
		return nil, apperrors.Validationf("lockId and passcodeId must be positive")
	}
	outcome := s.revoke(ctx, lockID, passcodeID)
	if !outcome.OK {
		return nil, apperrors.Providerf("lock provider did not delete the PIN: %s", outcome.Message)
	}
	if _, err := s.passcodes.DeleteByProviderID(ctx, lockID, passcodeID); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// RevokeForGuest deletes every provider-side PIN of a guest, best effort.
// Local rows are left to the caller.
func (s *PinService) RevokeForGuest(ctx context.Context, guestID int64) ([]models.RevocationOutcome, error) {
	records, err := s.passcodes.ListByGuest(ctx, guestID)
	if err != nil {
		return nil, err
	}
	outcomes := make([]models.RevocationOutcome, 0, len(records))
	for _, rec := range records {
		if rec.ProviderPasscodeID == nil {
			continue
		}
		outcomes = append(outcomes, s.revoke(ctx, rec.LockID, *rec.ProviderPasscodeID))
	}
	return outcomes, nil
}

// revoke treats a PIN that no longer appears on the lock as deleted.
func (s *PinService) revoke(ctx context.Context, lockID, passcodeID int64) models.RevocationOutcome {
	outcome := models.RevocationOutcome{LockID: lockID, PasscodeID: passcodeID}
	log := logger.WithContext(ctx).With("lock_id", lockID, "passcode_id", passcodeID)

	resp, err := s.locks.DeletePasscode(ctx, lockID, passcodeID)
	switch {
	case err != nil:
		outcome.Message = err.Error()
	case resp.OK():
		outcome.OK = true
		return outcome
	default:
		outcome.Message = fmt.Sprintf("errcode=%d %s", resp.ErrCode(), resp.ErrMsg())
	}

	if s.absentOnLock(ctx, lockID, passcodeID) {
		outcome.OK = true
		outcome.Message = "already removed on lock"
		return outcome
	}
	log.Warn("PIN revocation failed", "error", outcome.Message)
	return outcome
}

func (s *PinService) absentOnLock(ctx context.Context, lockID, passcodeID int64) bool {
	codes, err := s.locks.ListPasscodes(ctx, lockID)
	if err != nil {
		return false
	}
	for _, c := range codes {
		if c.KeyboardPwdID == passcodeID {
			return false
		}
	}
	return true
}

// GeneratePIN returns n uniformly random decimal digits.
func GeneratePIN(n int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate pin: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
