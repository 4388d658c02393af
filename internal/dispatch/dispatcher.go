// internal/dispatch/dispatcher.go

// Package dispatch runs fire-and-forget background tasks on a fixed pool of workers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	custom_errors "spygit/internal/errors"
	"spygit/internal/metrics"
	"spygit/pkg/logger/sl"
)

var (
	ErrQueueFull = errors.New("dispatch queue is full")
	ErrStopped   = errors.New("dispatcher is stopped")
)

// Task is a unit of background work. Run receives a context that is not tied to the
// request that queued the task.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Options struct {
	Workers       int
	QueueSize     int
	MaxRetries    int
	RetryInterval time.Duration
	TaskTimeout   time.Duration
}

type Dispatcher struct {
	queue  chan Task
	opts   Options
	logger *slog.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func New(opts Options, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:  make(chan Task, max(opts.QueueSize, 1)),
		opts:   opts,
		logger: logger.With("component", "dispatcher"),
	}
}

// Start launches the workers. Tasks inherit values, not cancellation, from ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	workers := max(d.opts.Workers, 1)

	d.logger.Info("Starting dispatcher", "workers", workers, "queue_size", cap(d.queue))
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(base, i)
	}
}

// Dispatch queues a task without blocking.
func (d *Dispatcher) Dispatch(task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrStopped
	}

	select {
	case d.queue <- task:
		metrics.DispatchQueueDepth.Inc()
		return nil
	default:
		metrics.DispatchTasksTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: %s", ErrQueueFull, task.Name)
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish or ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Dispatcher drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for task := range d.queue {
		metrics.DispatchQueueDepth.Dec()
		if err := d.run(ctx, task); err != nil {
			metrics.DispatchTasksTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
			d.logger.Error("Background task failed", "task", task.Name, "worker", id, sl.Err(err))
			continue
		}
		metrics.DispatchTasksTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	}
}

// run executes task, retrying rate-limited failures with exponential backoff.
func (d *Dispatcher) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()

	if d.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.TaskTimeout)
		defer cancel()
	}

	operation := func() error {
		err := task.Run(ctx)
		if err != nil && !errors.Is(err, custom_errors.ErrRateLimited) {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	if d.opts.RetryInterval > 0 {
		eb.InitialInterval = d.opts.RetryInterval
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(max(d.opts.MaxRetries, 0))), ctx)

	notify := func(err error, wait time.Duration) {
		d.logger.Warn("Retrying rate-limited task", "task", task.Name, "wait", wait.String(), sl.Err(err))
	}

	return backoff.RetryNotify(operation, b, notify)
}
