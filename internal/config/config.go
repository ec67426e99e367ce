package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"hostelgate/internal/cache"
	"hostelgate/internal/database"
	"hostelgate/internal/external"
	"hostelgate/internal/messaging"
)

// Config holds every setting of the api and consumers processes.
type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	LogFormat   string
	CORSOrigins []string

	Database      database.Config
	NATS          messaging.Config
	Valkey        cache.Config
	Elasticsearch ElasticsearchConfig
	TTLock        external.TTLockConfig
	TRA           external.TRAConfig
	Booking       external.BookingConfig
	Rooms         RoomMap

	Checkin CheckinConfig
	Worker  WorkerConfig
}

type CheckinConfig struct {
	FrontendURL          string
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	UploadDir            string
	AutoSubmit           bool
}

type WorkerConfig struct {
	Workers   int
	QueueSize int
}

// Load reads configuration from the environment, falling back to defaults.
func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8081"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		CORSOrigins: parseList(os.Getenv("CORS_ORIGINS"), []string{"*"}),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "hostelgate"),
			Password:           getEnv("DB_PASSWORD", "hostelgate"),
			DBName:             getEnv("DB_NAME", "hostelgate"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       os.Getenv("NATS_URL"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "hostelgate"),
			ClientID:  getEnv("NATS_CLIENT_ID", "hostelgate-api"),
		},

		Valkey: cache.Config{
			Addr:     os.Getenv("VALKEY_ADDR"),
			Password: os.Getenv("VALKEY_PASSWORD"),
			TTL:      getEnvDuration("BOOKING_CACHE_TTL", 5*time.Minute),
		},

		Elasticsearch: LoadElasticsearchConfig(),

		TTLock: external.TTLockConfig{
			BaseURL:      getEnv("TTLOCK_BASE_URL", "https://euapi.ttlock.com"),
			ClientID:     os.Getenv("TTLOCK_CLIENT_ID"),
			ClientSecret: os.Getenv("TTLOCK_CLIENT_SECRET"),
			Username:     os.Getenv("TTLOCK_USERNAME"),
			Password:     os.Getenv("TTLOCK_PASSWORD"),
			Timeout:      time.Duration(getEnvInt("TTLOCK_TIMEOUT_SEC", 20)) * time.Second,
		},

		TRA: external.TRAConfig{
			BaseURL:                os.Getenv("TRA_BASE_URL"),
			Token:                  os.Getenv("TRA_TOKEN"),
			EstablishmentName:      os.Getenv("TRA_ESTABLISHMENT_NAME"),
			EstablishmentRNT:       os.Getenv("TRA_ESTABLISHMENT_RNT"),
			RoomNumber:             os.Getenv("TRA_ROOM_NUMBER"),
			AccommodationType:      os.Getenv("TRA_ACCOMMODATION_TYPE"),
			Cost:                   os.Getenv("TRA_COST"),
			PrimaryPath:            getEnv("TRA_PRIMARY_PATH", "/one"),
			SecondaryPath:          getEnv("TRA_SECONDARY_PATH", "/two"),
			DefaultResidenceCity:   os.Getenv("TRA_DEFAULT_RESIDENCE_CITY"),
			DefaultOriginCity:      os.Getenv("TRA_DEFAULT_ORIGIN_CITY"),
			DefaultDestinationCity: os.Getenv("TRA_DEFAULT_DESTINATION_CITY"),
			Timeout:                time.Duration(getEnvInt("TRA_TIMEOUT_SEC", 25)) * time.Second,
		},

		Booking: external.BookingConfig{
			BaseURL: os.Getenv("BOOKING_API_URL"),
			APIKey:  os.Getenv("BOOKING_API_KEY"),
			Timeout: time.Duration(getEnvInt("BOOKING_TIMEOUT_SEC", 20)) * time.Second,
		},

		Checkin: CheckinConfig{
			FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:3000"),
			SessionTTL:           getEnvDuration("SESSION_TTL", 48*time.Hour),
			SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Hour),
			UploadDir:            getEnv("UPLOAD_DIR", "./uploads"),
			AutoSubmit:           getEnvBool("TRA_AUTO_SUBMIT", false),
		},

		Worker: WorkerConfig{
			Workers:   getEnvInt("WORKER_COUNT", 2),
			QueueSize: getEnvInt("WORKER_QUEUE_SIZE", 64),
		},
	}

	cfg.Rooms = LoadRoomMap()
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseList(raw string, def []string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
