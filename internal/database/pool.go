package database

import (
	"context"
	"log/slog"
	"time"
)

const (
	pingTimeout        = 5 * time.Second
	busyPoolRatio      = 0.9
	slowWaitThreshold  = time.Second
	idleClosedWarnings = 1000
)

// PoolStats is the JSON view of sql.DBStats reported by /health.
type PoolStats struct {
	MaxOpenConns      int           `json:"max_open_connections"`
	OpenConns         int           `json:"open_connections"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

type HealthCheck struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	Stats        PoolStats     `json:"stats"`
	Timestamp    time.Time     `json:"timestamp"`
}

func (db *DB) GetPoolStats() PoolStats {
	s := db.Stats()
	return PoolStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

// HealthCheck pings the database and attaches pool pressure warnings.
func (db *DB) HealthCheck(ctx context.Context) HealthCheck {
	start := time.Now()
	stats := db.GetPoolStats()
	hc := HealthCheck{
		Status:    "healthy",
		Timestamp: start,
		Stats:     stats,
		Warnings:  poolWarnings(stats),
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err := db.PingContext(pingCtx)
	hc.ResponseTime = time.Since(start)
	if err != nil {
		hc.Status = "unhealthy"
		hc.Error = err.Error()
		slog.Error("Database health check failed", "error", err)
	}
	for _, w := range hc.Warnings {
		slog.Warn("Database pool pressure", "warning", w,
			"in_use", stats.InUse, "max_open", stats.MaxOpenConns, "wait_count", stats.WaitCount)
	}
	return hc
}

func poolWarnings(s PoolStats) []string {
	var out []string
	if s.MaxOpenConns > 0 && float64(s.InUse) > float64(s.MaxOpenConns)*busyPoolRatio {
		out = append(out, "connection pool nearly exhausted")
	}
	if s.WaitCount > 0 && s.WaitDuration > slowWaitThreshold {
		out = append(out, "queries are waiting for connections")
	}
	if s.MaxIdleClosed > idleClosedWarnings {
		out = append(out, "idle connections are churning")
	}
	return out
}
