package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsSubmittedTasks(t *testing.T) {
	q := New(8, 2, nil)
	q.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Submit(Task{Name: "count", Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}
	q.Stop()

	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, Stats{Submitted: 5, Completed: 5}, q.Stats())
}

func TestQueueFullDropsWithoutBlocking(t *testing.T) {
	var (
		mu       sync.Mutex
		outcomes []string
	)
	q := New(1, 1, func(outcome string) {
		mu.Lock()
		outcomes = append(outcomes, outcome)
		mu.Unlock()
	})

	noop := Task{Name: "noop", Run: func(context.Context) error { return nil }}
	require.NoError(t, q.Submit(noop))
	assert.ErrorIs(t, q.Submit(noop), ErrQueueFull)

	q.Start(context.Background())
	q.Stop()

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Submitted)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Dropped)
	assert.ElementsMatch(t, []string{"dropped", "completed"}, outcomes)
}

func TestQueueCountsFailuresAndPanics(t *testing.T) {
	q := New(4, 1, nil)
	q.Start(context.Background())

	require.NoError(t, q.Submit(Task{Name: "fails", Run: func(context.Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, q.Submit(Task{Name: "panics", Run: func(context.Context) error {
		panic("unexpected")
	}}))
	require.NoError(t, q.Submit(Task{Name: "ok", Run: func(context.Context) error { return nil }}))
	q.Stop()

	stats := q.Stats()
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(1), stats.Completed)
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := New(1, 1, nil)
	q.Start(context.Background())
	q.Stop()
	q.Stop()

	err := q.Submit(Task{Name: "late", Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrStopped)
}
