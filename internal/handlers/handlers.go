package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hostelgate/internal/database"
	apperrors "hostelgate/internal/errors"
	"hostelgate/internal/logger"
	"hostelgate/internal/models"
	"hostelgate/internal/service"
	"hostelgate/internal/worker"
)

type GuestService interface {
	CheckIn(ctx context.Context, sub models.CheckinSubmission) (*models.CheckinResponse, error)
	List(ctx context.Context, filter models.GuestFilter) ([]models.GuestRecord, error)
	Get(ctx context.Context, id int64) (*models.GuestDetail, error)
	UpdateShareURL(ctx context.Context, id int64, shareURL string) (*models.GuestRecord, error)
	Delete(ctx context.Context, id int64) (*models.DeleteGuestResult, error)
}

type SessionService interface {
	Create(ctx context.Context, req models.CreateSessionRequest) (*models.SessionResponse, error)
	Get(ctx context.Context, token string, markUsed bool) (*models.SessionResponse, error)
	SaveProgress(ctx context.Context, token string, payload json.RawMessage) (*models.SessionResponse, error)
}

type LookupService interface {
	ByDocument(ctx context.Context, number string) (*models.LookupResult, error)
	ByReservation(ctx context.Context, code string) (*models.LookupResult, error)
	ByContact(ctx context.Context, phone, email string) (*models.LookupResult, error)
}

type PinService interface {
	ProvisionForRoom(ctx context.Context, req models.ProvisionRequest) (*models.ProvisionResult, error)
	ListAllPasscodes(ctx context.Context) ([]models.LockPasscodes, error)
	DeletePasscode(ctx context.Context, lockID, passcodeID int64) (*models.RevocationOutcome, error)
}

type RegistrationService interface {
	CreateFromGuestList(ctx context.Context, reservation string, guests []models.GuestInput, rctx models.RegistrationContext) ([]models.RegistrationRecord, error)
	ProcessReservation(ctx context.Context, reservation string) (*models.ProcessResult, error)
	Status(ctx context.Context, reservation string) (*models.RegistrationSummary, error)
	Retry(ctx context.Context, reservation string) (*models.RetryResult, error)
}

// HealthChecker is satisfied by *database.DB.
type HealthChecker interface {
	HealthCheck(ctx context.Context) database.HealthCheck
}

// SearchHealth is satisfied by *search.ElasticsearchClient.
type SearchHealth interface {
	HealthCheck(ctx context.Context) error
}

type QueueStats interface {
	Stats() worker.Stats
}

type Options struct {
	UploadDir string
	Health    HealthChecker
	Search    SearchHealth
	Queue     QueueStats
}

type Handlers struct {
	guests        GuestService
	sessions      SessionService
	lookup        LookupService
	pins          PinService
	registrations RegistrationService
	uploadDir     string
	health        HealthChecker
	search        SearchHealth
	queue         QueueStats
}

func NewHandlers(services *service.Services, opts Options) *Handlers {
	return &Handlers{
		guests:        services.Guests,
		sessions:      services.Sessions,
		lookup:        services.Lookup,
		pins:          services.Pins,
		registrations: services.Registrations,
		uploadDir:     opts.UploadDir,
		health:        opts.Health,
		search:        opts.Search,
		queue:         opts.Queue,
	}
}

// respondError maps service errors to HTTP statuses. Messages of typed
// errors are shown to the caller; anything else is logged and hidden.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrProvider):
		status = http.StatusBadGateway
	}

	_ = c.Error(err)
	if msg, ok := apperrors.Message(err); ok {
		c.JSON(status, gin.H{"error": msg})
		return
	}
	logger.WithContext(c.Request.Context()).Error("Request failed",
		"method", c.Request.Method, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func pathInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return v, true
}

// Health - GET /health
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"service": "hostelgate-api",
	}
	status := http.StatusOK

	if h.health != nil {
		db := h.health.HealthCheck(c.Request.Context())
		body["database"] = db
		if db.Status != "healthy" {
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	// Search is optional; a sick cluster degrades admin search only.
	if h.search != nil {
		if err := h.search.HealthCheck(c.Request.Context()); err != nil {
			body["search"] = gin.H{"status": "unhealthy", "error": err.Error()}
		} else {
			body["search"] = gin.H{"status": "healthy"}
		}
	}
	if h.queue != nil {
		body["queue"] = h.queue.Stats()
	}
	c.JSON(status, body)
}
