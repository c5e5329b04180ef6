package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler performs one job.
type Handler func(ctx context.Context, job Job) error

// Dispatcher runs jobs by name.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	queue       Queue
	name        string
	maxAttempts int
	backoff     func(attempt int) time.Duration
	now         func() time.Time
	observer    Observer
	logger      zerolog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchQueue sets the queue to consume.
func WithDispatchQueue(name string) DispatcherOption {
	return func(d *Dispatcher) { d.name = name }
}

// WithMaxAttempts bounds retries. A job failing this many times is dropped.
func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxAttempts = n }
}

// WithBackoff sets the delay before retry attempt n (starting at 1).
func WithBackoff(f func(attempt int) time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.backoff = f }
}

// WithDispatchObserver reports processed jobs.
func WithDispatchObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithDispatchLogger sets the logger.
func WithDispatchLogger(l zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a Dispatcher consuming q.
func NewDispatcher(q Queue, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers:    make(map[string]Handler),
		queue:       q,
		name:        DefaultQueue,
		maxAttempts: 3,
		backoff:     func(attempt int) time.Duration { return time.Duration(attempt*attempt) * time.Second },
		now:         time.Now,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle registers h for jobs called name.
func (d *Dispatcher) Handle(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("handle %q: name and handler are required", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[name]; exists {
		return fmt.Errorf("handler for job %q already registered", name)
	}
	d.handlers[name] = h
	return nil
}

// Names lists the registered job names.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	return names
}

// Perform runs the handler for job without touching the queue.
func (d *Dispatcher) Perform(ctx context.Context, job Job) error {
	d.mu.RLock()
	h, ok := d.handlers[job.Name]
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, job.Name)
	}
	return h(ctx, job)
}

// Run consumes the queue until ctx is done. Failed jobs are retried with
// backoff until they reach the attempt limit; unknown jobs are dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info().Str("queue", d.name).Int("handlers", len(d.Names())).Msg("dispatcher started")
	defer d.logger.Info().Str("queue", d.name).Msg("dispatcher stopped")

	for {
		job, err := d.queue.Pop(ctx, d.name)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrClosed) {
				return err
			}
			d.logger.Error().Err(err).Str("queue", d.name).Msg("pop job")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		d.process(ctx, job)
	}
}

func (d *Dispatcher) process(ctx context.Context, job Job) {
	log := d.logger.With().Str("job", job.Name).Str("id", job.ID).Logger()

	job.Attempts++
	err := d.Perform(ctx, job)

	switch {
	case err == nil:
		d.observe(job.Name, "success")
		if ackErr := d.queue.Ack(ctx, job); ackErr != nil {
			log.Error().Err(ackErr).Msg("ack job")
		}
		log.Debug().Int("attempts", job.Attempts).Msg("job done")

	case errors.Is(err, ErrUnknownJob) || job.Attempts >= d.maxAttempts:
		d.observe(job.Name, "dropped")
		if ackErr := d.queue.Ack(ctx, job); ackErr != nil {
			log.Error().Err(ackErr).Msg("ack job")
		}
		log.Error().Err(err).Int("attempts", job.Attempts).Msg("job dropped")

	default:
		d.observe(job.Name, "retry")
		at := d.now().Add(d.backoff(job.Attempts))
		if retryErr := d.queue.Retry(ctx, job, at); retryErr != nil {
			log.Error().Err(retryErr).Msg("retry job")
		}
		log.Warn().Err(err).Int("attempts", job.Attempts).Time("retry_at", at).Msg("job failed")
	}
}

func (d *Dispatcher) observe(name, status string) {
	if d.observer != nil {
		d.observer.ObserveJob(name, status)
	}
}
