package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "hostelgate/internal/errors"
	"hostelgate/internal/logger"
	"hostelgate/internal/models"
)

const defaultSessionTTL = 48 * time.Hour

type SessionService struct {
	store       SessionStore
	frontendURL string
	ttl         time.Duration
	now         func() time.Time
}

func NewSessionService(store SessionStore, frontendURL string, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionService{
		store:       store,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		ttl:         ttl,
		now:         time.Now,
	}
}

// Create issues a fresh token for a reservation. An existing session for the
// same reservation is replaced and its old token stops working.
func (s *SessionService) Create(ctx context.Context, req models.CreateSessionRequest) (*models.SessionResponse, error) {
	reservation := strings.TrimSpace(req.ReservationNumber)
	if reservation == "" {
		return nil, apperrors.Validationf("reservationNumber is required")
	}
	payload := req.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	if !json.Valid(payload) {
		return nil, apperrors.Validationf("payload must be valid JSON")
	}

	session := &models.CheckinSession{
		ReservationNumber: reservation,
		Token:             uuid.NewString(),
		Payload:           payload,
		ExpiresAt:         s.now().Add(s.ttl),
	}
	if err := s.store.Upsert(ctx, session); err != nil {
		return nil, err
	}
	logger.WithContext(ctx).Info("Check-in session created",
		"reservation", reservation, "expires_at", session.ExpiresAt)
	return s.response(session), nil
}

// Get returns a live session. markUsed records the first time a guest opens
// the link; later opens keep the original timestamp.
func (s *SessionService) Get(ctx context.Context, token string, markUsed bool) (*models.SessionResponse, error) {
	session, err := s.live(ctx, token)
	if err != nil {
		return nil, err
	}
	if markUsed && session.FirstUsedAt == nil {
		used, err := s.store.MarkFirstUsed(ctx, token, s.now())
		if err != nil {
			return nil, err
		}
		session.FirstUsedAt = used
	}
	return s.response(session), nil
}

// SaveProgress replaces the stored payload and extends the expiry.
func (s *SessionService) SaveProgress(ctx context.Context, token string, payload json.RawMessage) (*models.SessionResponse, error) {
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, apperrors.Validationf("payload must be valid JSON")
	}
	now := s.now()
	ok, err := s.store.UpdatePayload(ctx, token, payload, now.Add(s.ttl), now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NotFoundf("session not found or expired")
	}
	return s.Get(ctx, token, false)
}

// Sweep deletes expired sessions and returns how many were removed.
func (s *SessionService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.WithContext(ctx).Info("Expired check-in sessions removed", "count", n)
	}
	return n, nil
}

func (s *SessionService) live(ctx context.Context, token string) (*models.CheckinSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.Validationf("token is required")
	}
	session, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Expired(s.now()) {
		return nil, apperrors.NotFoundf("session not found or expired")
	}
	return session, nil
}

func (s *SessionService) response(session *models.CheckinSession) *models.SessionResponse {
	return &models.SessionResponse{
		Token:             session.Token,
		ReservationNumber: session.ReservationNumber,
		ShareURL:          s.frontendURL + "/checkin?session=" + url.QueryEscape(session.Token),
		Payload:           session.Payload,
		ExpiresAt:         session.ExpiresAt,
		FirstUsedAt:       session.FirstUsedAt,
	}
}
