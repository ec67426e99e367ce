package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"hostelgate/internal/cache"
	"hostelgate/internal/config"
	"hostelgate/internal/database"
	"hostelgate/internal/external"
	"hostelgate/internal/handlers"
	"hostelgate/internal/messaging"
	"hostelgate/internal/metrics"
	"hostelgate/internal/middleware"
	"hostelgate/internal/repository"
	"hostelgate/internal/search"
	"hostelgate/internal/service"
	"hostelgate/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	search   *search.ElasticsearchClient
	queue    *worker.Queue
	stopJobs context.CancelFunc
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	services *service.Services
}

// NewServer connects every backing service and builds the router.
// NATS, Valkey and Elasticsearch are optional and skipped when their
// address is not configured.
func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	s := &Server{
		config:   cfg,
		db:       db,
		registry: registry,
		metrics:  m,
	}

	deps := service.Deps{Metrics: m}

	if cfg.NATS.Enabled() {
		natsClient, err := messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			slog.Warn("NATS unavailable, events disabled", "error", err)
		} else {
			s.nats = natsClient
			deps.Publisher = natsClient
		}
	}

	if cfg.Valkey.Enabled() {
		valkey, err := cache.NewValkeyClient(cfg.Valkey)
		if err != nil {
			slog.Warn("Valkey unavailable, booking cache disabled", "error", err)
		} else {
			s.valkey = valkey
			deps.Cache = valkey
		}
	}

	repos := repository.NewRepositories(db)
	if cfg.Elasticsearch.Enabled() {
		es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, admin search uses SQL", "error", err)
		} else {
			s.search = es
			repos = repository.NewRepositoriesWithElasticsearch(db, es)
		}
	}
	deps.Repos = repos

	deps.Locks = external.NewTTLockClient(cfg.TTLock, external.WithRefreshHook(m.TokenRefreshed))
	deps.TRA = external.NewTRAClient(cfg.TRA)
	deps.Booking = external.NewBookingClient(cfg.Booking)

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	s.stopJobs = stopJobs
	s.queue = worker.New(cfg.Worker.QueueSize, cfg.Worker.Workers, m.WorkerTask)
	s.queue.Start(jobsCtx)
	deps.Queue = s.queue

	s.services = service.NewServices(cfg, deps)

	s.router = gin.New()
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.Metrics(m))
	s.router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	s.setupRoutes()
	return s, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	c.ExposeHeaders = []string{"X-Request-ID"}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func (s *Server) setupRoutes() {
	opts := handlers.Options{
		UploadDir: s.config.Checkin.UploadDir,
		Health:    s.db,
		Queue:     s.queue,
	}
	if s.search != nil {
		opts.Search = s.search
	}
	h := handlers.NewHandlers(s.services, opts)

	api := s.router.Group("/api")
	{
		api.POST("/checkin", h.CheckIn)

		sessions := api.Group("/sessions")
		{
			sessions.POST("", h.CreateSession)
			sessions.GET("/:token", h.GetSession)
			sessions.PUT("/:token", h.SaveSession)
		}

		lookup := api.Group("/lookup")
		{
			lookup.GET("/document/:number", h.LookupByDocument)
			lookup.GET("/reservation/:code", h.LookupByReservation)
			lookup.GET("/contact", h.LookupByContact)
		}

		admin := api.Group("/admin/guests")
		{
			admin.GET("", h.ListGuests)
			admin.GET("/:id", h.GetGuest)
			admin.PATCH("/:id/share-url", h.UpdateShareURL)
			admin.DELETE("/:id", h.DeleteGuest)
		}

		pins := api.Group("/pins")
		{
			pins.POST("", h.ProvisionPins)
			pins.GET("", h.ListPins)
			pins.DELETE("/:lockId/:passcodeId", h.DeletePin)
		}

		registrations := api.Group("/registrations/:reservation")
		{
			registrations.POST("", h.CreateRegistrations)
			registrations.GET("/status", h.RegistrationStatus)
			registrations.POST("/retry", h.RetryRegistrations)
			registrations.POST("/process", h.ProcessRegistrations)
		}
	}

	s.router.GET("/health", h.Health)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the handler for the validator and tests.
func (s *Server) GetRouter() http.Handler {
	return s.router
}

// Cleanup drains background work and closes connections.
func (s *Server) Cleanup() error {
	if s.queue != nil {
		s.queue.Stop()
	}
	if s.stopJobs != nil {
		s.stopJobs()
	}

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}
	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}
	return nil
}
