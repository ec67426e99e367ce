package service

import (
	"context"
	"encoding/json"
	"time"

	"hostelgate/internal/config"
	"hostelgate/internal/external"
	"hostelgate/internal/messaging"
	"hostelgate/internal/metrics"
	"hostelgate/internal/models"
	"hostelgate/internal/repository"
	"hostelgate/internal/worker"
)

type GuestStore interface {
	Create(ctx context.Context, g *models.GuestRecord) error
	GetByID(ctx context.Context, id int64) (*models.GuestRecord, error)
	GetByReservation(ctx context.Context, reservation string) (*models.GuestRecord, error)
	FindByDocument(ctx context.Context, number string) ([]models.GuestRecord, error)
	FindByContact(ctx context.Context, phoneDigits, email string) ([]models.GuestRecord, error)
	List(ctx context.Context, filter models.GuestFilter) ([]models.GuestRecord, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.GuestRecord, error)
	UpdateShareURL(ctx context.Context, id int64, shareURL string) (bool, error)
	UpdateLockPIN(ctx context.Context, id int64, pin string) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// GuestIndex is the optional full-text index used by admin search.
type GuestIndex interface {
	SearchIDs(ctx context.Context, filter models.GuestFilter) ([]int64, error)
}

type SessionStore interface {
	Upsert(ctx context.Context, s *models.CheckinSession) error
	GetByToken(ctx context.Context, token string) (*models.CheckinSession, error)
	UpdatePayload(ctx context.Context, token string, payload json.RawMessage, expiresAt, now time.Time) (bool, error)
	MarkFirstUsed(ctx context.Context, token string, at time.Time) (*time.Time, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type PasscodeStore interface {
	Upsert(ctx context.Context, p *models.PasscodeRecord) error
	ListByGuest(ctx context.Context, guestID int64) ([]models.PasscodeRecord, error)
	DeleteByGuest(ctx context.Context, guestID int64) (int64, error)
	DeleteByProviderID(ctx context.Context, lockID, passcodeID int64) (int64, error)
}

type RegistrationStore interface {
	CreateBatch(ctx context.Context, records []models.RegistrationRecord) error
	ListByReservation(ctx context.Context, reservation string) ([]models.RegistrationRecord, error)
	MarkAttempt(ctx context.Context, id int64, parentCode *string, payload json.RawMessage, at time.Time) error
	MarkSent(ctx context.Context, id int64, assignedCode *string, response json.RawMessage) error
	MarkError(ctx context.Context, id int64, message string, response json.RawMessage) error
	MarkUnsentError(ctx context.Context, reservation, message string) (int64, error)
	ResetUnsent(ctx context.Context, reservation string) (int64, error)
}

// LockProvider is the smart-lock cloud API.
type LockProvider interface {
	ListKeys(ctx context.Context) ([]external.LockKey, error)
	ListLocks(ctx context.Context) ([]external.Lock, error)
	ListPasscodes(ctx context.Context, lockID int64) ([]external.Passcode, error)
	AddPasscode(ctx context.Context, req external.AddPasscodeRequest) (external.Response, error)
	DeletePasscode(ctx context.Context, lockID, passcodeID int64) (external.Response, error)
}

// RegistrationAPI is the government registration API.
type RegistrationAPI interface {
	Submit(ctx context.Context, endpoint string, payload map[string]any) (*external.TRAResponse, error)
}

type BookingAPI interface {
	Configured() bool
	GetReservation(ctx context.Context, orderID string) (*external.BookingReservation, error)
	ListReservations(ctx context.Context) ([]external.BookingReservation, error)
}

type BookingCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any) error
}

type TaskQueue interface {
	Submit(task worker.Task) error
}

type Services struct {
	Guests        *GuestService
	Sessions      *SessionService
	Lookup        *LookupService
	Pins          *PinService
	Registrations *RegistrationService
}

// Deps are the collaborators shared by the services. Booking, Cache,
// Publisher and Metrics may be nil.
type Deps struct {
	Repos     *repository.Repositories
	Locks     LockProvider
	TRA       RegistrationAPI
	Booking   BookingAPI
	Cache     BookingCache
	Publisher messaging.Publisher
	Queue     TaskQueue
	Metrics   *metrics.Metrics
}

func NewServices(cfg *config.Config, deps Deps) *Services {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}

	var index GuestIndex
	if deps.Repos.GuestSearch != nil {
		index = deps.Repos.GuestSearch
	}

	registrations := NewRegistrationService(deps.Repos.Registrations, deps.TRA, cfg.TRA, deps.Queue, publisher, deps.Metrics)
	pins := NewPinService(deps.Repos.Guests, deps.Repos.Passcodes, deps.Locks, cfg.Rooms, publisher, deps.Metrics)
	guests := NewGuestService(deps.Repos.Guests, deps.Repos.Passcodes, index, pins, registrations, publisher, GuestOptions{
		FrontendURL: cfg.Checkin.FrontendURL,
		AutoSubmit:  cfg.Checkin.AutoSubmit,
	})
	sessions := NewSessionService(deps.Repos.Sessions, cfg.Checkin.FrontendURL, cfg.Checkin.SessionTTL)
	lookup := NewLookupService(deps.Repos.Guests, deps.Booking, deps.Cache)

	return &Services{
		Guests:        guests,
		Sessions:      sessions,
		Lookup:        lookup,
		Pins:          pins,
		Registrations: registrations,
	}
}
