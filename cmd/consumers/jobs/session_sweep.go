package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultSweepInterval = time.Hour

// Sweeper deletes check-in sessions whose expiry has passed.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// SessionSweepJob removes expired check-in sessions on a fixed interval.
type SessionSweepJob struct {
	sessions Sweeper
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSessionSweepJob(sessions Sweeper, interval time.Duration) *SessionSweepJob {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &SessionSweepJob{
		sessions: sessions,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval.
func (j *SessionSweepJob) Start(ctx context.Context) {
	slog.Info("Starting session sweep job", "check_interval", j.interval.String())

	j.ticker = time.NewTicker(j.interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.sweep(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.sweep(ctx)
			case <-ctx.Done():
				slog.Info("Session sweep job stopped")
				return
			case <-j.done:
				slog.Info("Session sweep job stopped")
				return
			}
		}
	}()
}

// Stop halts the ticker and waits for a sweep in progress.
func (j *SessionSweepJob) Stop() {
	j.stopOnce.Do(func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.done)
	})
	j.wg.Wait()
}

func (j *SessionSweepJob) sweep(ctx context.Context) {
	start := time.Now()
	deleted, err := j.sessions.Sweep(ctx)
	if err != nil {
		slog.Error("Failed to sweep expired sessions", "error", err)
		return
	}
	if deleted == 0 {
		slog.Debug("No expired sessions found")
		return
	}
	slog.Info("Expired sessions removed",
		"count", deleted,
		"elapsed_time", time.Since(start).String())
}
