package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TRAConfig configures the government tourism-registration API. Missing
// values are reported per run instead of failing at startup.
type TRAConfig struct {
	BaseURL           string
	Token             string
	EstablishmentName string
	EstablishmentRNT  string
	RoomNumber        string
	AccommodationType string
	Cost              string
	PrimaryPath       string
	SecondaryPath     string

	DefaultResidenceCity   string
	DefaultOriginCity      string
	DefaultDestinationCity string

	Timeout time.Duration
}

// Missing lists the environment variables of required settings that are empty.
func (c TRAConfig) Missing() []string {
	required := []struct {
		name  string
		value string
	}{
		{"TRA_BASE_URL", c.BaseURL},
		{"TRA_TOKEN", c.Token},
		{"TRA_ESTABLISHMENT_NAME", c.EstablishmentName},
		{"TRA_ESTABLISHMENT_RNT", c.EstablishmentRNT},
		{"TRA_ROOM_NUMBER", c.RoomNumber},
		{"TRA_ACCOMMODATION_TYPE", c.AccommodationType},
		{"TRA_COST", c.Cost},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	return missing
}

// TRAResponse is a successful (2xx) answer of the registration API.
type TRAResponse struct {
	StatusCode int
	Body       json.RawMessage
}

type TRAClient struct {
	cfg        TRAConfig
	httpClient *http.Client
}

func NewTRAClient(cfg TRAConfig) *TRAClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 25 * time.Second
	}
	if cfg.PrimaryPath == "" {
		cfg.PrimaryPath = "/one"
	}
	if cfg.SecondaryPath == "" {
		cfg.SecondaryPath = "/two"
	}
	return &TRAClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *TRAClient) pathFor(endpoint string) (string, error) {
	switch endpoint {
	case "primary":
		return c.cfg.PrimaryPath, nil
	case "secondary":
		return c.cfg.SecondaryPath, nil
	}
	return "", fmt.Errorf("unknown registration endpoint %q", endpoint)
}

// Submit posts one guest payload. Non-2xx answers are returned as *HTTPError.
func (c *TRAClient) Submit(ctx context.Context, endpoint string, payload map[string]any) (*TRAResponse, error) {
	path, err := c.pathFor(endpoint)
	if err != nil {
		return nil, err
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	base := strings.TrimRight(c.cfg.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit registration: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: raw}
	}

	if !json.Valid(raw) {
		quoted, _ := json.Marshal(string(raw))
		raw = quoted
	}
	return &TRAResponse{StatusCode: resp.StatusCode, Body: raw}, nil
}
