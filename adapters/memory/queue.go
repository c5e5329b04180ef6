// Package memory provides an in-process job queue.
//
// Suitable for development, tests and single-instance deployments: jobs are
// lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/artpar/typemap/core/jobs"
)

// Queue is an in-memory jobs.Queue.
type Queue struct {
	mu     sync.Mutex
	queues map[string]*queueData
	closed bool
	now    func() time.Time
}

type queueData struct {
	ready    []jobs.Job
	delayed  []jobs.Job // sorted by RunAt
	inflight map[string]jobs.Job

	// wake is closed and replaced whenever the queue changes.
	wake chan struct{}
}

func newQueueData() *queueData {
	return &queueData{
		inflight: make(map[string]jobs.Job),
		wake:     make(chan struct{}),
	}
}

func (q *queueData) signal() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// promote moves delayed jobs that are due onto the ready list.
func (q *queueData) promote(now time.Time) {
	n := 0
	for n < len(q.delayed) && !q.delayed[n].RunAt.After(now) {
		n++
	}
	if n == 0 {
		return
	}
	q.ready = append(q.ready, q.delayed[:n]...)
	q.delayed = append([]jobs.Job(nil), q.delayed[n:]...)
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		queues: make(map[string]*queueData),
		now:    time.Now,
	}
}

// getQueue must be called with q.mu held.
func (q *Queue) getQueue(name string) *queueData {
	if name == "" {
		name = jobs.DefaultQueue
	}
	data, ok := q.queues[name]
	if !ok {
		data = newQueueData()
		q.queues[name] = data
	}
	return data
}

// Push stores job. A RunAt in the future delays delivery until then.
func (q *Queue) Push(_ context.Context, job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return jobs.ErrClosed
	}
	if job.ID == "" {
		return fmt.Errorf("push %s: job has no id", job.Name)
	}

	data := q.getQueue(job.Queue)
	q.insert(data, job)
	data.signal()
	return nil
}

func (q *Queue) insert(data *queueData, job jobs.Job) {
	if job.RunAt.After(q.now()) {
		i := sort.Search(len(data.delayed), func(i int) bool {
			return data.delayed[i].RunAt.After(job.RunAt)
		})
		data.delayed = append(data.delayed, jobs.Job{})
		copy(data.delayed[i+1:], data.delayed[i:])
		data.delayed[i] = job
		return
	}
	data.ready = append(data.ready, job)
}

// Pop blocks until a job on name is ready, ctx is done or the queue closes.
func (q *Queue) Pop(ctx context.Context, name string) (jobs.Job, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return jobs.Job{}, jobs.ErrClosed
		}

		data := q.getQueue(name)
		now := q.now()
		data.promote(now)

		if len(data.ready) > 0 {
			job := data.ready[0]
			data.ready = data.ready[1:]
			data.inflight[job.ID] = job
			q.mu.Unlock()
			return job, nil
		}

		wake := data.wake
		var timer *time.Timer
		var due <-chan time.Time
		if len(data.delayed) > 0 {
			timer = time.NewTimer(data.delayed[0].RunAt.Sub(now))
			due = timer.C
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return jobs.Job{}, ctx.Err()
		case <-wake:
		case <-due:
		}
		stopTimer(timer)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// Ack forgets a popped job.
func (q *Queue) Ack(_ context.Context, job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.getQueue(job.Queue).inflight, job.ID)
	return nil
}

// Retry puts a popped job back, ready at at.
func (q *Queue) Retry(_ context.Context, job jobs.Job, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return jobs.ErrClosed
	}

	data := q.getQueue(job.Queue)
	delete(data.inflight, job.ID)
	job.RunAt = at
	q.insert(data, job)
	data.signal()
	return nil
}

// Len counts ready and delayed jobs on name.
func (q *Queue) Len(_ context.Context, name string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	data := q.getQueue(name)
	return int64(len(data.ready) + len(data.delayed)), nil
}

// Inflight counts popped jobs that were neither acked nor retried.
func (q *Queue) Inflight(name string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.getQueue(name).inflight)
}

// Close wakes all waiting consumers. Later calls fail with jobs.ErrClosed.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for _, data := range q.queues {
		data.signal()
	}
	return nil
}
