package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

type Config struct {
	Addr     string
	Password string
	TTL      time.Duration
}

// Enabled reports whether a Valkey address was configured.
func (c Config) Enabled() bool { return c.Addr != "" }

// ValkeyClient caches booking API answers as JSON strings with a fixed TTL.
type ValkeyClient struct {
	client rueidis.Client
	ttl    time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:      []string{cfg.Addr},
		Password:         cfg.Password,
		ConnWriteTimeout: 2 * time.Second,
		DisableCache:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ValkeyClient{client: client, ttl: ttl}, nil
}

// GetJSON decodes the cached value into dest. A miss returns false and no error.
func (v *ValkeyClient) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := v.client.Do(ctx, v.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("cache lookup error: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("invalid cached value for %s: %w", key, err)
	}
	return true, nil
}

func (v *ValkeyClient) SetJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	seconds := int64(v.ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	cmd := v.client.B().Setex().Key(key).Seconds(seconds).Value(rueidis.BinaryString(raw)).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("cache write error: %w", err)
	}
	return nil
}

func (v *ValkeyClient) Close() error {
	v.client.Close()
	return nil
}
