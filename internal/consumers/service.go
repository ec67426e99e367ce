package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/stan.go"

	"hostelgate/internal/config"
	"hostelgate/internal/database"
	"hostelgate/internal/messaging"
	"hostelgate/internal/models"
	"hostelgate/internal/repository"
	"hostelgate/internal/search"
	"hostelgate/internal/service"
)

const queueGroup = "consumers"

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	sessions *service.SessionService
	handlers *Handlers
	subs     []stan.Subscription
}

// NewConsumerService connects Postgres and NATS. Elasticsearch is optional:
// without it the process only runs the session sweep.
func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	if !cfg.NATS.Enabled() {
		db.Close()
		return nil, fmt.Errorf("NATS_URL is required for the consumers process")
	}
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	repos := repository.NewRepositories(db)
	cs := &ConsumerService{
		db:       db,
		nats:     natsClient,
		sessions: service.NewSessionService(repos.Sessions, cfg.Checkin.FrontendURL, cfg.Checkin.SessionTTL),
	}

	if cfg.Elasticsearch.Enabled() {
		es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, guest indexing disabled", "error", err)
		} else {
			cs.handlers = NewHandlers(repository.NewGuestSearchRepository(es))
		}
	}

	return cs, nil
}

// Sessions is used by the sweep job.
func (cs *ConsumerService) Sessions() *service.SessionService {
	return cs.sessions
}

func (cs *ConsumerService) Start() error {
	if cs.handlers == nil {
		slog.Info("No search index configured, skipping subscriptions")
		return nil
	}

	slog.Info("Starting NATS consumers...")

	subscriptions := []struct {
		subject string
		handler stan.MsgHandler
	}{
		{models.EventGuestCheckedIn, cs.handlers.HandleGuestCheckedIn},
		{models.EventGuestDeleted, cs.handlers.HandleGuestDeleted},
	}
	for _, s := range subscriptions {
		sub, err := cs.nats.SubscribeQueue(s.subject, queueGroup, s.handler)
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully", "subscriptions", len(cs.subs))
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		// Close keeps the durable subscription so pending events survive restarts.
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
