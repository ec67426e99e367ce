package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hostelgate/internal/models"
)

// APIValidator runs a smoke pass over a live API: it creates a throwaway
// check-in, reads it back through every read path and removes it.
type APIValidator struct {
	baseURL string
	client  *http.Client
}

func NewAPIValidator(baseURL string) *APIValidator {
	return &APIValidator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (v *APIValidator) ValidateAll(ctx context.Context) error {
	slog.Info("Starting API validation", "base_url", v.baseURL)

	if err := v.validateHealth(ctx); err != nil {
		return fmt.Errorf("health validation failed: %w", err)
	}

	checkin, err := v.validateCheckIn(ctx)
	if err != nil {
		return fmt.Errorf("check-in validation failed: %w", err)
	}

	if err := v.validateSessions(ctx, checkin.ReservationNumber); err != nil {
		return fmt.Errorf("sessions validation failed: %w", err)
	}

	if err := v.validateAdmin(ctx, checkin); err != nil {
		return fmt.Errorf("admin validation failed: %w", err)
	}

	slog.Info("All endpoints passed validation")
	return nil
}

func (v *APIValidator) validateHealth(ctx context.Context) error {
	var body map[string]any
	if err := v.call(ctx, http.MethodGet, "/health", nil, http.StatusOK, &body); err != nil {
		return err
	}
	if body["status"] != "ok" {
		return fmt.Errorf("GET /health: expected status ok, got %v", body["status"])
	}
	return nil
}

func (v *APIValidator) validateCheckIn(ctx context.Context) (*models.CheckinResponse, error) {
	req := map[string]any{
		"fullName":       "Validation Guest",
		"documentNumber": "VAL-" + time.Now().UTC().Format("150405"),
		"documentType":   "PASSPORT",
	}
	var resp models.CheckinResponse
	if err := v.call(ctx, http.MethodPost, "/api/checkin", req, http.StatusCreated, &resp); err != nil {
		return nil, err
	}
	if resp.ID == 0 || resp.ReservationNumber == "" {
		return nil, fmt.Errorf("POST /api/checkin: expected id and reservation number, got %+v", resp)
	}

	var found models.LookupResult
	path := "/api/lookup/document/" + req["documentNumber"].(string)
	if err := v.call(ctx, http.MethodGet, path, nil, http.StatusOK, &found); err != nil {
		return nil, err
	}
	if len(found.Guests) == 0 {
		return nil, fmt.Errorf("GET %s: expected the new guest", path)
	}
	return &resp, nil
}

func (v *APIValidator) validateSessions(ctx context.Context, reservation string) error {
	var created models.SessionResponse
	req := map[string]any{"reservationNumber": reservation, "payload": map[string]any{"step": 1}}
	if err := v.call(ctx, http.MethodPost, "/api/sessions", req, http.StatusCreated, &created); err != nil {
		return err
	}
	if created.Token == "" {
		return fmt.Errorf("POST /api/sessions: expected a token")
	}

	path := "/api/sessions/" + created.Token
	if err := v.call(ctx, http.MethodPut, path, map[string]any{"payload": map[string]any{"step": 2}}, http.StatusOK, nil); err != nil {
		return err
	}

	var read models.SessionResponse
	if err := v.call(ctx, http.MethodGet, path+"?use=1", nil, http.StatusOK, &read); err != nil {
		return err
	}
	if read.FirstUsedAt == nil {
		return fmt.Errorf("GET %s?use=1: expected firstUsedAt to be set", path)
	}
	return nil
}

func (v *APIValidator) validateAdmin(ctx context.Context, checkin *models.CheckinResponse) error {
	if err := v.call(ctx, http.MethodGet, "/api/admin/guests?limit=5", nil, http.StatusOK, nil); err != nil {
		return err
	}

	path := fmt.Sprintf("/api/admin/guests/%d", checkin.ID)
	var detail models.GuestDetail
	if err := v.call(ctx, http.MethodGet, path, nil, http.StatusOK, &detail); err != nil {
		return err
	}
	if detail.Guest.ReservationNumber != checkin.ReservationNumber {
		return fmt.Errorf("GET %s: reservation mismatch", path)
	}

	if err := v.call(ctx, http.MethodGet, "/api/registrations/"+checkin.ReservationNumber+"/status", nil, http.StatusOK, nil); err != nil {
		return err
	}

	if err := v.call(ctx, http.MethodDelete, path, nil, http.StatusOK, nil); err != nil {
		return err
	}
	return v.call(ctx, http.MethodGet, path, nil, http.StatusNotFound, nil)
}

func (v *APIValidator) call(ctx context.Context, method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: expected %d, got %d: %s", method, path, want, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
	}
	slog.Info("Endpoint valid", "method", method, "path", path, "status", resp.StatusCode)
	return nil
}

// Run validates the API at baseURL and reports whether it passed.
func Run(ctx context.Context, baseURL string) error {
	return NewAPIValidator(baseURL).ValidateAll(ctx)
}
