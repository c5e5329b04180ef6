package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Enqueuer pushes named jobs onto a queue.
type Enqueuer struct {
	queue    Queue
	name     string
	now      func() time.Time
	observer Observer
	logger   zerolog.Logger
}

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithQueueName sets the queue jobs are pushed to.
func WithQueueName(name string) EnqueuerOption {
	return func(e *Enqueuer) { e.name = name }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) EnqueuerOption {
	return func(e *Enqueuer) { e.now = now }
}

// WithEnqueueObserver reports enqueued jobs.
func WithEnqueueObserver(o Observer) EnqueuerOption {
	return func(e *Enqueuer) { e.observer = o }
}

// WithEnqueueLogger sets the logger.
func WithEnqueueLogger(l zerolog.Logger) EnqueuerOption {
	return func(e *Enqueuer) { e.logger = l }
}

// NewEnqueuer creates an Enqueuer over q.
func NewEnqueuer(q Queue, opts ...EnqueuerOption) *Enqueuer {
	e := &Enqueuer{
		queue:  q,
		name:   DefaultQueue,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue schedules name for immediate delivery.
func (e *Enqueuer) Enqueue(ctx context.Context, name string, args ...any) (Job, error) {
	return e.push(ctx, "now", time.Time{}, name, args)
}

// EnqueueAt schedules name for delivery at at. A time in the past is
// delivered immediately.
func (e *Enqueuer) EnqueueAt(ctx context.Context, at time.Time, name string, args ...any) (Job, error) {
	return e.push(ctx, "at", at, name, args)
}

// EnqueueIn schedules name for delivery after d.
func (e *Enqueuer) EnqueueIn(ctx context.Context, d time.Duration, name string, args ...any) (Job, error) {
	return e.push(ctx, "in", e.now().Add(d), name, args)
}

func (e *Enqueuer) push(ctx context.Context, mode string, at time.Time, name string, args []any) (Job, error) {
	if name == "" {
		return Job{}, fmt.Errorf("enqueue: job name is required")
	}

	normalized, err := normalizeArgs(args)
	if err != nil {
		return Job{}, fmt.Errorf("enqueue %s: %w", name, err)
	}

	now := e.now()
	job := Job{
		ID:         uuid.NewString(),
		Name:       name,
		Queue:      e.name,
		Args:       normalized,
		EnqueuedAt: now.UTC(),
	}
	if !at.IsZero() && at.After(now) {
		job.RunAt = at.UTC()
	}

	if err := e.queue.Push(ctx, job); err != nil {
		return Job{}, fmt.Errorf("enqueue %s: %w", name, err)
	}

	if e.observer != nil {
		e.observer.ObserveEnqueue(name, mode)
	}
	e.logger.Debug().
		Str("job", name).
		Str("id", job.ID).
		Str("queue", job.Queue).
		Dur("delay", job.Delay(now)).
		Msg("job enqueued")

	return job, nil
}
