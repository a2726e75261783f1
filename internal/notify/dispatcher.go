package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexbotov/arcade/internal/metrics"
)

const defaultTaskTimeout = 10 * time.Second

// Task is one unit of background work
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher runs tasks on a fixed pool of workers fed by a bounded queue
type Dispatcher struct {
	tasks       chan Task
	workers     int
	taskTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics

	// mu orders Submit against shutdown so nothing lands after the drain
	mu      sync.Mutex
	stopped bool
}

// NewDispatcher creates a dispatcher; call Run to start its workers
func NewDispatcher(workers, queueSize int, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		tasks:       make(chan Task, queueSize),
		workers:     workers,
		taskTimeout: defaultTaskTimeout,
		logger:      logger.With("component", "notify"),
		metrics:     m,
	}
}

// Submit enqueues t without blocking. It returns false when the queue is
// full or the dispatcher has stopped; the task is then dropped.
func (d *Dispatcher) Submit(t Task) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		d.metrics.RecordNotifyDropped()
		return false
	}
	select {
	case d.tasks <- t:
		return true
	default:
		d.metrics.RecordNotifyDropped()
		return false
	}
}

// Run processes tasks until ctx is cancelled, then drains what is queued
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-d.tasks:
					d.execute(t)
				}
			}
		}()
	}
	wg.Wait()

	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	for {
		select {
		case t := <-d.tasks:
			d.execute(t)
		default:
			return nil
		}
	}
}

func (d *Dispatcher) execute(t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification task panicked", "task", t.Name, "panic", fmt.Sprint(r))
			d.metrics.RecordNotifyFailure(t.Name)
		}
	}()

	if err := t.Run(ctx); err != nil {
		d.logger.Error("notification failed", "task", t.Name, "error", err)
		d.metrics.RecordNotifyFailure(t.Name)
	}
}
