package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type BookingConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// BookingReservation is a reservation in the booking provider's native shape.
type BookingReservation struct {
	ID        json.Number `json:"id"`
	OrderID   string      `json:"apiReference"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	Mobile    string      `json:"mobile"`
	Arrival   string      `json:"arrival"`
	Departure string      `json:"departure"`
	NumAdult  int         `json:"numAdult"`
	NumChild  int         `json:"numChild"`
	RoomName  string      `json:"roomName"`
	Status    string      `json:"status"`
}

type bookingEnvelope struct {
	Success bool                 `json:"success"`
	Data    []BookingReservation `json:"data"`
}

type BookingClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewBookingClient(cfg BookingConfig) *BookingClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &BookingClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether a booking API endpoint was provided.
func (bc *BookingClient) Configured() bool {
	return bc.baseURL != ""
}

func (bc *BookingClient) get(ctx context.Context, path string, query url.Values) ([]BookingReservation, error) {
	u := bc.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("token", bc.apiKey)

	resp, err := bc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query booking API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var env bookingEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return env.Data, nil
}

// GetReservation returns nil when the provider has no booking with that id.
func (bc *BookingClient) GetReservation(ctx context.Context, orderID string) (*BookingReservation, error) {
	q := url.Values{}
	q.Set("id", orderID)
	list, err := bc.get(ctx, "/bookings", q)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (bc *BookingClient) ListReservations(ctx context.Context) ([]BookingReservation, error) {
	return bc.get(ctx, "/bookings", nil)
}
