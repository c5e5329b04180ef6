// Package jobs defers work to a queue.
//
// An Enqueuer turns a job name and arguments into a Job and pushes it,
// either for immediate delivery or for delivery at a later time. A
// Dispatcher pops jobs and runs the handler registered under the job's
// name. Queue backends live in adapters.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "default"

// ReloadSchema is the job that re-reads table columns. Its optional
// argument is a model name; without one every root model reloads.
const ReloadSchema = "schema.reload"

var (
	// ErrUnknownJob is returned when no handler is registered for a job name.
	ErrUnknownJob = errors.New("unknown job")

	// ErrSerialization is returned when job arguments cannot be encoded.
	ErrSerialization = errors.New("job arguments are not serializable")

	// ErrClosed is returned by a queue after Close.
	ErrClosed = errors.New("queue is closed")
)

// Job is one unit of deferred work.
type Job struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Queue string `json:"queue"`

	// Args hold JSON-decoded values: numbers arrive as float64.
	Args []any `json:"args,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`

	// RunAt is zero for immediate jobs.
	RunAt time.Time `json:"run_at,omitempty"`

	Attempts int `json:"attempts,omitempty"`
}

// Scheduled reports whether the job waits for RunAt.
func (j Job) Scheduled() bool { return !j.RunAt.IsZero() }

// Delay returns how long the job still has to wait at now, never negative.
func (j Job) Delay(now time.Time) time.Duration {
	if j.RunAt.IsZero() || !j.RunAt.After(now) {
		return 0
	}
	return j.RunAt.Sub(now)
}

// Queue is a job backend.
type Queue interface {
	// Push stores a job. Jobs with a RunAt in the future become ready at
	// RunAt, all others are ready immediately.
	Push(ctx context.Context, job Job) error

	// Pop blocks until a job on queue is ready or ctx is done.
	Pop(ctx context.Context, queue string) (Job, error)

	// Ack marks a popped job as done.
	Ack(ctx context.Context, job Job) error

	// Retry returns a popped job to its queue, ready at the given time.
	Retry(ctx context.Context, job Job, at time.Time) error

	// Len counts ready and scheduled jobs on queue.
	Len(ctx context.Context, queue string) (int64, error)

	Close() error
}

// Observer is notified of job activity.
type Observer interface {
	ObserveEnqueue(name, mode string)
	ObserveJob(name, status string)
}

// normalizeArgs round-trips args through JSON so that every backend hands
// handlers the same value shapes.
func normalizeArgs(args []any) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	var out []any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return out, nil
}
