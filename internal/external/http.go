package external

import "fmt"

// HTTPError is returned when a remote service answers with a non-2xx status.
// Body is kept verbatim so callers can persist it.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	body := string(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, body)
}
