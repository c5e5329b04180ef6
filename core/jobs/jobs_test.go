package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// sliceQueue is an in-process Queue that never blocks.
type sliceQueue struct {
	mu      sync.Mutex
	pushed  []Job
	acked   []Job
	retried []Job
	pushErr error
}

func (q *sliceQueue) Push(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pushErr != nil {
		return q.pushErr
	}
	q.pushed = append(q.pushed, job)
	return nil
}

func (q *sliceQueue) Pop(ctx context.Context, _ string) (Job, error) {
	for {
		q.mu.Lock()
		if len(q.pushed) > 0 {
			job := q.pushed[0]
			q.pushed = q.pushed[1:]
			q.mu.Unlock()
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (q *sliceQueue) Ack(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, job)
	return nil
}

func (q *sliceQueue) Retry(_ context.Context, job Job, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.RunAt = at
	q.retried = append(q.retried, job)
	return nil
}

func (q *sliceQueue) Len(context.Context, string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pushed)), nil
}

func (q *sliceQueue) Close() error { return nil }

type recordingObserver struct {
	mu       sync.Mutex
	enqueued []string
	statuses []string
}

func (o *recordingObserver) ObserveEnqueue(name, mode string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enqueued = append(o.enqueued, name+":"+mode)
}

func (o *recordingObserver) ObserveJob(name, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, name+":"+status)
}

func fixedClock() func() time.Time {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestJob_Delay(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		runAt time.Time
		want  time.Duration
	}{
		{"immediate", time.Time{}, 0},
		{"past", now.Add(-time.Minute), 0},
		{"future", now.Add(90 * time.Second), 90 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := Job{RunAt: tt.runAt}
			if got := job.Delay(now); got != tt.want {
				t.Errorf("Delay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnqueuer_Enqueue(t *testing.T) {
	q := &sliceQueue{}
	obs := &recordingObserver{}
	e := NewEnqueuer(q, WithClock(fixedClock()), WithQueueName("mailers"), WithEnqueueObserver(obs))

	job, err := e.Enqueue(context.Background(), "deliver", "welcome", 3)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if job.ID == "" {
		t.Error("Enqueue() should assign an ID")
	}
	if job.Queue != "mailers" {
		t.Errorf("Queue = %q, want mailers", job.Queue)
	}
	if job.Scheduled() {
		t.Error("Enqueue() should not schedule the job")
	}
	if len(job.Args) != 2 || job.Args[0] != "welcome" || job.Args[1] != float64(3) {
		t.Errorf("Args = %#v, want [welcome 3]", job.Args)
	}
	if len(q.pushed) != 1 || q.pushed[0].ID != job.ID {
		t.Errorf("pushed = %v, want the enqueued job", q.pushed)
	}
	if len(obs.enqueued) != 1 || obs.enqueued[0] != "deliver:now" {
		t.Errorf("observed = %v, want [deliver:now]", obs.enqueued)
	}
}

func TestEnqueuer_EnqueueAt(t *testing.T) {
	clock := fixedClock()
	q := &sliceQueue{}
	e := NewEnqueuer(q, WithClock(clock))

	at := clock().Add(time.Hour)
	job, err := e.EnqueueAt(context.Background(), at, "reload")
	if err != nil {
		t.Fatalf("EnqueueAt() error = %v", err)
	}
	if !job.RunAt.Equal(at) {
		t.Errorf("RunAt = %v, want %v", job.RunAt, at)
	}
	if got := job.Delay(clock()); got != time.Hour {
		t.Errorf("Delay() = %v, want 1h", got)
	}

	past, err := e.EnqueueAt(context.Background(), clock().Add(-time.Hour), "reload")
	if err != nil {
		t.Fatalf("EnqueueAt(past) error = %v", err)
	}
	if past.Scheduled() {
		t.Error("a past timestamp should be delivered immediately")
	}
}

func TestEnqueuer_EnqueueIn(t *testing.T) {
	clock := fixedClock()
	q := &sliceQueue{}
	e := NewEnqueuer(q, WithClock(clock))

	job, err := e.EnqueueIn(context.Background(), 5*time.Minute, "reload", "User")
	if err != nil {
		t.Fatalf("EnqueueIn() error = %v", err)
	}
	if want := clock().Add(5 * time.Minute); !job.RunAt.Equal(want) {
		t.Errorf("RunAt = %v, want %v", job.RunAt, want)
	}
}

func TestEnqueuer_Errors(t *testing.T) {
	q := &sliceQueue{}
	e := NewEnqueuer(q)

	if _, err := e.Enqueue(context.Background(), ""); err == nil {
		t.Error("Enqueue() with no name should fail")
	}

	if _, err := e.Enqueue(context.Background(), "bad", make(chan int)); !errors.Is(err, ErrSerialization) {
		t.Errorf("Enqueue(chan) error = %v, want ErrSerialization", err)
	}

	q.pushErr = errors.New("down")
	if _, err := e.Enqueue(context.Background(), "reload"); err == nil {
		t.Error("Enqueue() should surface queue errors")
	}
	if len(q.pushed) != 0 {
		t.Errorf("pushed = %v, want nothing", q.pushed)
	}
}

func TestDispatcher_Handle(t *testing.T) {
	d := NewDispatcher(&sliceQueue{})

	noop := func(context.Context, Job) error { return nil }
	if err := d.Handle("reload", noop); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if err := d.Handle("reload", noop); err == nil {
		t.Error("Handle() should reject a duplicate name")
	}
	if err := d.Handle("", noop); err == nil {
		t.Error("Handle() should reject an empty name")
	}
	if err := d.Handle("x", nil); err == nil {
		t.Error("Handle() should reject a nil handler")
	}
	if names := d.Names(); len(names) != 1 || names[0] != "reload" {
		t.Errorf("Names() = %v, want [reload]", names)
	}
}

func TestDispatcher_Perform(t *testing.T) {
	d := NewDispatcher(&sliceQueue{})

	var got []any
	d.Handle("reload", func(_ context.Context, job Job) error {
		got = job.Args
		return nil
	})

	if err := d.Perform(context.Background(), Job{Name: "reload", Args: []any{"User"}}); err != nil {
		t.Fatalf("Perform() error = %v", err)
	}
	if len(got) != 1 || got[0] != "User" {
		t.Errorf("handler args = %v, want [User]", got)
	}

	if err := d.Perform(context.Background(), Job{Name: "missing"}); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Perform(missing) error = %v, want ErrUnknownJob", err)
	}
}

func TestDispatcher_Run(t *testing.T) {
	q := &sliceQueue{}
	obs := &recordingObserver{}
	d := NewDispatcher(q,
		WithMaxAttempts(2),
		WithBackoff(func(int) time.Duration { return time.Minute }),
		WithDispatchObserver(obs),
	)

	done := make(chan string, 4)
	d.Handle("ok", func(context.Context, Job) error {
		done <- "ok"
		return nil
	})
	d.Handle("fail", func(context.Context, Job) error {
		done <- "fail"
		return errors.New("boom")
	})

	q.Push(context.Background(), Job{ID: "1", Name: "ok"})
	q.Push(context.Background(), Job{ID: "2", Name: "fail"})
	q.Push(context.Background(), Job{ID: "3", Name: "fail", Attempts: 1})
	q.Push(context.Background(), Job{ID: "4", Name: "unknown"})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- d.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		q.mu.Lock()
		settled := len(q.acked)+len(q.retried) == 4
		q.mu.Unlock()
		if settled || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-stopped; err != nil {
		t.Errorf("Run() error = %v", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.retried) != 1 || q.retried[0].ID != "2" || q.retried[0].Attempts != 1 {
		t.Errorf("retried = %v, want job 2 after one attempt", q.retried)
	}
	if len(q.acked) != 3 {
		t.Errorf("acked = %d jobs, want 3", len(q.acked))
	}

	want := []string{"ok:success", "fail:retry", "fail:dropped", "unknown:dropped"}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", obs.statuses, want)
	}
	for i := range want {
		if obs.statuses[i] != want[i] {
			t.Errorf("statuses[%d] = %q, want %q", i, obs.statuses[i], want[i])
		}
	}
}
