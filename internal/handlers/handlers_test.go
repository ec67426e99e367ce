package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostelgate/internal/database"
	apperrors "hostelgate/internal/errors"
	"hostelgate/internal/models"
	"hostelgate/internal/worker"
)

type stubGuests struct {
	lastSubmission models.CheckinSubmission
	lastFilter     models.GuestFilter
	checkInErr     error
}

func (s *stubGuests) CheckIn(_ context.Context, sub models.CheckinSubmission) (*models.CheckinResponse, error) {
	s.lastSubmission = sub
	if s.checkInErr != nil {
		return nil, s.checkInErr
	}
	return &models.CheckinResponse{ID: 1, ReservationNumber: sub.ReservationNumber, ShareURL: "https://x/checkin/" + sub.ReservationNumber}, nil
}

func (s *stubGuests) List(_ context.Context, filter models.GuestFilter) ([]models.GuestRecord, error) {
	s.lastFilter = filter
	return nil, nil
}

func (s *stubGuests) Get(_ context.Context, id int64) (*models.GuestDetail, error) {
	if id != 1 {
		return nil, apperrors.NotFoundf("guest %d not found", id)
	}
	return &models.GuestDetail{Guest: models.GuestRecord{ID: 1, ReservationNumber: "R1"}}, nil
}

func (s *stubGuests) UpdateShareURL(_ context.Context, id int64, shareURL string) (*models.GuestRecord, error) {
	return &models.GuestRecord{ID: id, ShareURL: &shareURL}, nil
}

func (s *stubGuests) Delete(_ context.Context, id int64) (*models.DeleteGuestResult, error) {
	return &models.DeleteGuestResult{ID: id, Revocations: []models.RevocationOutcome{}}, nil
}

type stubSessions struct {
	markUsed bool
}

func (s *stubSessions) Create(_ context.Context, req models.CreateSessionRequest) (*models.SessionResponse, error) {
	return &models.SessionResponse{Token: "tok", ReservationNumber: req.ReservationNumber}, nil
}

func (s *stubSessions) Get(_ context.Context, token string, markUsed bool) (*models.SessionResponse, error) {
	s.markUsed = markUsed
	if token != "tok" {
		return nil, apperrors.NotFoundf("session not found or expired")
	}
	return &models.SessionResponse{Token: token}, nil
}

func (s *stubSessions) SaveProgress(_ context.Context, token string, payload json.RawMessage) (*models.SessionResponse, error) {
	return &models.SessionResponse{Token: token, Payload: payload}, nil
}

type stubLookup struct{}

func (stubLookup) ByDocument(context.Context, string) (*models.LookupResult, error) {
	return nil, apperrors.NotFoundf("no guest with document")
}

func (stubLookup) ByReservation(context.Context, string) (*models.LookupResult, error) {
	return nil, apperrors.Providerf("booking API unavailable")
}

func (stubLookup) ByContact(_ context.Context, phone, email string) (*models.LookupResult, error) {
	return &models.LookupResult{Source: models.SourceLocal, Guests: []models.GuestRecord{{Phone: phone, Email: email}}}, nil
}

type stubPins struct {
	deleted [2]int64
}

func (s *stubPins) ProvisionForRoom(_ context.Context, req models.ProvisionRequest) (*models.ProvisionResult, error) {
	if req.RoomID == "99" {
		return nil, apperrors.NotFoundf("room 99 has no configured locks")
	}
	return &models.ProvisionResult{PIN: "123456", RoomID: req.RoomID, Total: 2, Succeeded: 1, Failed: 1}, nil
}

func (s *stubPins) ListAllPasscodes(context.Context) ([]models.LockPasscodes, error) {
	return []models.LockPasscodes{{LockID: 1, Passcodes: []models.ProviderPasscode{}}}, nil
}

func (s *stubPins) DeletePasscode(_ context.Context, lockID, passcodeID int64) (*models.RevocationOutcome, error) {
	s.deleted = [2]int64{lockID, passcodeID}
	return &models.RevocationOutcome{LockID: lockID, PasscodeID: passcodeID, OK: true}, nil
}

type stubRegistrations struct {
	guests []models.GuestInput
}

func (s *stubRegistrations) CreateFromGuestList(_ context.Context, reservation string, guests []models.GuestInput, _ models.RegistrationContext) ([]models.RegistrationRecord, error) {
	s.guests = guests
	return []models.RegistrationRecord{{ReservationNumber: reservation, Role: models.RolePrimary}}, nil
}

func (s *stubRegistrations) ProcessReservation(_ context.Context, reservation string) (*models.ProcessResult, error) {
	if reservation == "unconfigured" {
		return &models.ProcessResult{ReservationNumber: reservation}, apperrors.Configurationf("missing registration settings: TRA_TOKEN")
	}
	if reservation == "busy" {
		return &models.ProcessResult{ReservationNumber: reservation, Skipped: true}, nil
	}
	return &models.ProcessResult{ReservationNumber: reservation, OK: true, Sent: 2}, nil
}

func (s *stubRegistrations) Status(_ context.Context, reservation string) (*models.RegistrationSummary, error) {
	return &models.RegistrationSummary{ReservationNumber: reservation, Overall: models.OverallOK, Total: 2}, nil
}

func (s *stubRegistrations) Retry(_ context.Context, reservation string) (*models.RetryResult, error) {
	return &models.RetryResult{ReservationNumber: reservation, Reset: 1, Queued: true}, nil
}

type stubHealth struct {
	status string
}

func (s stubHealth) HealthCheck(context.Context) database.HealthCheck {
	return database.HealthCheck{Status: s.status}
}

type stubSearch struct{ err error }

func (s stubSearch) HealthCheck(context.Context) error { return s.err }

type stubQueue struct{}

func (stubQueue) Stats() worker.Stats { return worker.Stats{Submitted: 3} }

type testEnv struct {
	router        *gin.Engine
	guests        *stubGuests
	sessions      *stubSessions
	pins          *stubPins
	registrations *stubRegistrations
	uploadDir     string
}

func setupRouter(t *testing.T, dbStatus string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{
		guests:        &stubGuests{},
		sessions:      &stubSessions{},
		pins:          &stubPins{},
		registrations: &stubRegistrations{},
		uploadDir:     t.TempDir(),
	}
	h := &Handlers{
		guests:        env.guests,
		sessions:      env.sessions,
		lookup:        stubLookup{},
		pins:          env.pins,
		registrations: env.registrations,
		uploadDir:     env.uploadDir,
		health:        stubHealth{status: dbStatus},
		queue:         stubQueue{},
	}

	r := gin.New()
	r.GET("/health", h.Health)
	api := r.Group("/api")
	{
		api.POST("/checkin", h.CheckIn)

		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions/:token", h.GetSession)
		api.PUT("/sessions/:token", h.SaveSession)

		api.GET("/lookup/document/:number", h.LookupByDocument)
		api.GET("/lookup/reservation/:code", h.LookupByReservation)
		api.GET("/lookup/contact", h.LookupByContact)

		api.GET("/admin/guests", h.ListGuests)
		api.GET("/admin/guests/:id", h.GetGuest)
		api.PATCH("/admin/guests/:id/share-url", h.UpdateShareURL)
		api.DELETE("/admin/guests/:id", h.DeleteGuest)

		api.POST("/pins", h.ProvisionPins)
		api.GET("/pins", h.ListPins)
		api.DELETE("/pins/:lockId/:passcodeId", h.DeletePin)

		api.POST("/registrations/:reservation", h.CreateRegistrations)
		api.POST("/registrations/:reservation/process", h.ProcessRegistrations)
		api.GET("/registrations/:reservation/status", h.RegistrationStatus)
		api.POST("/registrations/:reservation/retry", h.RetryRegistrations)
	}
	env.router = r
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func multipartCheckin(t *testing.T, data string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	require.NoError(t, mw.WriteField("data", data))
	for name, content := range files {
		fw, err := mw.CreateFormFile("documents", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestCheckIn_Multipart(t *testing.T) {
	env := setupRouter(t, "healthy")
	body, contentType := multipartCheckin(t,
		`{"reservationNumber":"R1","nombre":"Ana Perez","doc":"123","companions":[{"fullName":"Pedro Gomez"}]}`,
		map[string]string{"passport.JPG": "fake image"})

	req, _ := http.NewRequest(http.MethodPost, "/api/checkin", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	sub := env.guests.lastSubmission
	assert.Equal(t, "R1", sub.ReservationNumber)
	assert.Equal(t, "Ana Perez", sub.Guest.FullName)
	require.Len(t, sub.Companions, 1)
	require.Len(t, sub.Documents, 1)
	assert.True(t, strings.HasSuffix(sub.Documents[0], ".jpg"))

	stored, err := os.ReadFile(filepath.Join(env.uploadDir, sub.Documents[0]))
	require.NoError(t, err)
	assert.Equal(t, "fake image", string(stored))
}

func TestCheckIn_JSONBody(t *testing.T) {
	env := setupRouter(t, "healthy")

	w := env.do(http.MethodPost, "/api/checkin", map[string]any{"fullName": "Ana Perez", "documentNumber": "123"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "123", env.guests.lastSubmission.Guest.DocumentNumber)
	assert.Empty(t, env.guests.lastSubmission.Documents)
}

func TestCheckIn_RejectsUnsupportedDocument(t *testing.T) {
	env := setupRouter(t, "healthy")
	body, contentType := multipartCheckin(t, `{"fullName":"Ana"}`, map[string]string{"script.exe": "MZ"})

	req, _ := http.NewRequest(http.MethodPost, "/api/checkin", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	entries, _ := os.ReadDir(env.uploadDir)
	assert.Empty(t, entries)
}

func TestCheckIn_ServiceRejectionRemovesUploads(t *testing.T) {
	env := setupRouter(t, "healthy")
	env.guests.checkInErr = apperrors.Validationf("documentNumber is required")
	body, contentType := multipartCheckin(t, `{"fullName":"Ana"}`, map[string]string{"id.png": "png"})

	req, _ := http.NewRequest(http.MethodPost, "/api/checkin", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "documentNumber is required", errorBody(t, w))
	entries, _ := os.ReadDir(env.uploadDir)
	assert.Empty(t, entries)
}

func TestCheckIn_InvalidJSON(t *testing.T) {
	env := setupRouter(t, "healthy")
	req, _ := http.NewRequest(http.MethodPost, "/api/checkin", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessions(t *testing.T) {
	env := setupRouter(t, "healthy")

	w := env.do(http.MethodPost, "/api/sessions", map[string]any{"reservationNumber": "R1"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodPost, "/api/sessions", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/sessions/tok?use=1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.sessions.markUsed)

	w = env.do(http.MethodGet, "/api/sessions/other", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.sessions.markUsed)

	w = env.do(http.MethodPut, "/api/sessions/tok", map[string]any{"payload": map[string]any{"step": 2}})
	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.JSONEq(t, `{"step":2}`, string(resp.Payload))
}

func TestLookupErrorMapping(t *testing.T) {
	env := setupRouter(t, "healthy")

	w := env.do(http.MethodGet, "/api/lookup/document/123", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/lookup/reservation/B-1", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "booking API unavailable", errorBody(t, w))

	w = env.do(http.MethodGet, "/api/lookup/contact?phone=300&email=a@b.c", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminGuests(t *testing.T) {
	env := setupRouter(t, "healthy")

	w := env.do(http.MethodGet, "/api/admin/guests?q=ana&limit=10&offset=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.GuestFilter{Query: "ana", Limit: 10, Offset: 5}, env.guests.lastFilter)
	assert.JSONEq(t, `{"guests":[]}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/admin/guests?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/admin/guests/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/admin/guests/2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/admin/guests/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPatch, "/api/admin/guests/1/share-url", map[string]any{"shareUrl": "https://s.example/x"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPatch, "/api/admin/guests/1/share-url", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, "/api/admin/guests/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPins(t *testing.T) {
	env := setupRouter(t, "healthy")

	w := env.do(http.MethodPost, "/api/pins", map[string]any{"roomId": "12", "reservationNumber": "R1", "startAt": 1, "endAt": 2})
	assert.Equal(t, http.StatusOK, w.Code)
	var res models.ProvisionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Failed)

	w = env.do(http.MethodPost, "/api/pins", map[string]any{"roomId": "99"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/pins", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, "/api/pins/5/77", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]int64{5, 77}, env.pins.deleted)

	w = env.do(http.MethodDelete, "/api/pins/5/x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrations(t *testing.T) {
	env := setupRouter(t, "healthy")

	w := env.do(http.MethodPost, "/api/registrations/R1", map[string]any{
		"guests": []map[string]any{{"nombre": "Ana Perez"}, {"fullName": "Pedro Gomez"}},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, env.registrations.guests, 2)
	assert.Equal(t, "Ana Perez", env.registrations.guests[0].FullName)

	w = env.do(http.MethodPost, "/api/registrations/R1/process", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/registrations/busy/process", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = env.do(http.MethodPost, "/api/registrations/unconfigured/process", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "missing registration settings: TRA_TOKEN", errorBody(t, w))

	w = env.do(http.MethodGet, "/api/registrations/R1/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/registrations/R1/retry", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRespondError_HidesUntypedErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) { respondError(c, errors.New("pq: connection refused")) })

	req, _ := http.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", errorBody(t, w))
}

func TestRespondError_Conflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/dup", func(c *gin.Context) { respondError(c, apperrors.Conflictf("reservation R1 already has a check-in")) })

	req, _ := http.NewRequest(http.MethodGet, "/dup", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHealth(t *testing.T) {
	env := setupRouter(t, "healthy")
	w := env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"submitted":3`)

	env = setupRouter(t, "unhealthy")
	w = env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth_SearchDoesNotDegradeStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handlers{
		health: stubHealth{status: "healthy"},
		search: stubSearch{err: errors.New("cluster red")},
	}
	r := gin.New()
	r.GET("/health", h.Health)

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"cluster red"`)
}
