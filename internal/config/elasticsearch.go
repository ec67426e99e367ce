package config

import (
	"os"
	"strconv"
	"time"
)

// ElasticsearchConfig configures the guest search index. An empty URL
// disables indexing and admin search falls back to SQL.
type ElasticsearchConfig struct {
	URL        string
	Index      string
	Username   string
	Password   string
	MaxRetries int
	Timeout    time.Duration
}

// Enabled reports whether an Elasticsearch endpoint was configured.
func (c ElasticsearchConfig) Enabled() bool { return c.URL != "" }

// LoadElasticsearchConfig reads the ELASTICSEARCH_* variables. An empty URL disables search.
func LoadElasticsearchConfig() ElasticsearchConfig {
	maxRetries := 3
	if val := os.Getenv("ELASTICSEARCH_MAX_RETRIES"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			maxRetries = parsed
		}
	}

	return ElasticsearchConfig{
		URL:        os.Getenv("ELASTICSEARCH_URL"),
		Index:      getEnv("ELASTICSEARCH_INDEX", "guests"),
		Username:   os.Getenv("ELASTICSEARCH_USERNAME"),
		Password:   os.Getenv("ELASTICSEARCH_PASSWORD"),
		MaxRetries: maxRetries,
		Timeout:    getEnvDuration("ELASTICSEARCH_TIMEOUT", 10*time.Second),
	}
}
