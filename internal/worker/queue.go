package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"hostelgate/internal/logger"
)

var (
	ErrQueueFull = errors.New("worker queue is full")
	ErrStopped   = errors.New("worker queue is stopped")
)

// Task is a unit of background work. Name appears in logs.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// Observer is told about every finished or dropped task.
type Observer func(outcome string)

// Queue is a bounded FIFO drained by a fixed number of workers.
// Submit never blocks.
type Queue struct {
	tasks   chan Task
	workers int
	observe Observer

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func New(size, workers int, observe Observer) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	if observe == nil {
		observe = func(string) {}
	}
	return &Queue{
		tasks:   make(chan Task, size),
		workers: workers,
		observe: observe,
	}
}

// Start launches the workers. Tasks run with ctx.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func(id int) {
			defer q.wg.Done()
			for task := range q.tasks {
				q.run(ctx, id, task)
			}
		}(i)
	}
	slog.Info("Worker queue started", "workers", q.workers, "capacity", cap(q.tasks))
}

func (q *Queue) run(ctx context.Context, workerID int, task Task) {
	start := time.Now()
	err := safeRun(ctx, task)
	duration := time.Since(start)

	log := logger.WithFields("task", task.Name, "worker", workerID, "duration_ms", duration.Milliseconds())
	if err != nil {
		q.failed.Add(1)
		q.observe("failed")
		log.Error("Background task failed", "error", err)
		return
	}
	q.completed.Add(1)
	q.observe("completed")
	log.Info("Background task completed")
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.Run(ctx)
}

// Submit enqueues task or returns ErrQueueFull / ErrStopped immediately.
func (q *Queue) Submit(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		return ErrStopped
	}
	select {
	case q.tasks <- task:
		q.submitted.Add(1)
		return nil
	default:
		q.dropped.Add(1)
		q.observe("dropped")
		slog.Warn("Worker queue full, task dropped", "task", task.Name)
		return ErrQueueFull
	}
}

// Stop refuses new tasks, drains the queue and waits for the workers.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.tasks)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
	}
}
