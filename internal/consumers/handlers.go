package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/stan.go"

	"hostelgate/internal/models"
)

const handlerTimeout = 20 * time.Second

// GuestIndexer keeps the admin search index in step with guest records.
type GuestIndexer interface {
	Index(ctx context.Context, g *models.GuestRecord) error
	Delete(ctx context.Context, id int64) error
}

type Handlers struct {
	index GuestIndexer
}

func NewHandlers(index GuestIndexer) *Handlers {
	return &Handlers{index: index}
}

// errMalformed marks messages that can never be processed; they are acked
// so NATS Streaming stops redelivering them.
var errMalformed = errors.New("malformed event")

func isMalformed(err error) bool { return errors.Is(err, errMalformed) }

func (h *Handlers) HandleGuestCheckedIn(m *stan.Msg) {
	h.ack(m, h.guestCheckedIn)
}

func (h *Handlers) HandleGuestDeleted(m *stan.Msg) {
	h.ack(m, h.guestDeleted)
}

func (h *Handlers) guestCheckedIn(ctx context.Context, data []byte) error {
	var event models.GuestCheckedInEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if event.Guest.ID == 0 {
		return fmt.Errorf("%w: guest id missing", errMalformed)
	}

	if err := h.index.Index(ctx, &event.Guest); err != nil {
		return fmt.Errorf("failed to index guest %d: %w", event.Guest.ID, err)
	}
	slog.Info("Guest indexed", "guest_id", event.Guest.ID, "reservation", event.Guest.ReservationNumber)
	return nil
}

func (h *Handlers) guestDeleted(ctx context.Context, data []byte) error {
	var event models.GuestDeletedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	if err := h.index.Delete(ctx, event.GuestID); err != nil {
		return fmt.Errorf("failed to remove guest %d from index: %w", event.GuestID, err)
	}
	slog.Info("Guest removed from index", "guest_id", event.GuestID, "reservation", event.ReservationNumber)
	return nil
}

// ack runs fn and acknowledges the message unless fn failed with a
// retryable error; unacked messages come back after AckWait.
func (h *Handlers) ack(m *stan.Msg, fn func(ctx context.Context, data []byte) error) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := fn(ctx, m.Data); err != nil {
		if !isMalformed(err) {
			slog.Error("Event handling failed, awaiting redelivery",
				"subject", m.Subject, "sequence", m.Sequence, "error", err)
			return
		}
		slog.Error("Dropping malformed event", "subject", m.Subject, "sequence", m.Sequence, "error", err)
	}

	if err := m.Ack(); err != nil {
		slog.Error("Failed to ack message", "subject", m.Subject, "sequence", m.Sequence, "error", err)
	}
}
