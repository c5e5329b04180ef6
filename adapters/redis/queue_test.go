package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/artpar/typemap/core/jobs"
)

// setupQueue connects to TYPEMAP_TEST_REDIS_ADDR and isolates the test under
// its own key prefix.
func setupQueue(t *testing.T) *Queue {
	t.Helper()

	addr := os.Getenv("TYPEMAP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TYPEMAP_TEST_REDIS_ADDR not set")
	}

	prefix := "typemap:test:" + t.Name() + ":" + time.Now().Format("150405.000000")
	q, err := Open(context.Background(), Config{
		Addr:         addr,
		Prefix:       prefix,
		PollInterval: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := q.client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			q.client.Del(ctx, keys...)
		}
		q.Close()
	})
	return q
}

func TestQueue_Keys(t *testing.T) {
	q := New(goredis.NewClient(&goredis.Options{Addr: "localhost:0"}), Config{})
	defer q.client.Close()

	if got := q.readyKey(""); got != "typemap:jobs:default:ready" {
		t.Errorf("readyKey() = %q", got)
	}
	if got := q.delayedKey("mailers"); got != "typemap:jobs:mailers:delayed" {
		t.Errorf("delayedKey() = %q", got)
	}
	if got := q.processingKey("mailers"); got != "typemap:jobs:mailers:processing" {
		t.Errorf("processingKey() = %q", got)
	}
	if q.poll != time.Second {
		t.Errorf("poll = %v, want 1s default", q.poll)
	}
}

func TestQueue_PushPopAck(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	if err := q.Push(ctx, jobs.Job{ID: "1", Name: "reload", Args: []any{"User"}}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	job, err := q.Pop(ctx, jobs.DefaultQueue)
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	if job.ID != "1" || job.Name != "reload" || job.Args[0] != "User" {
		t.Errorf("Pop() = %+v", job)
	}

	if n, _ := q.client.LLen(ctx, q.processingKey(jobs.DefaultQueue)).Result(); n != 1 {
		t.Errorf("processing = %d, want 1", n)
	}
	if err := q.Ack(ctx, job); err != nil {
		t.Fatalf("Ack() error = %v", err)
	}
	if n, _ := q.client.LLen(ctx, q.processingKey(jobs.DefaultQueue)).Result(); n != 0 {
		t.Errorf("processing after Ack = %d, want 0", n)
	}
}

func TestQueue_Delayed(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	q.Push(ctx, jobs.Job{ID: "later", RunAt: time.Now().Add(time.Hour)})
	q.Push(ctx, jobs.Job{ID: "soon", RunAt: time.Now().Add(100 * time.Millisecond)})

	if n, _ := q.Len(ctx, jobs.DefaultQueue); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}

	popCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	job, err := q.Pop(popCtx, jobs.DefaultQueue)
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	if job.ID != "soon" {
		t.Errorf("Pop() = %s, want soon", job.ID)
	}
	if time.Now().Before(job.RunAt) {
		t.Error("Pop() returned a job before it was due")
	}
}

func TestQueue_Retry(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	q.Push(ctx, jobs.Job{ID: "1"})
	job, err := q.Pop(ctx, jobs.DefaultQueue)
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}

	if err := q.Retry(ctx, job, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if n, _ := q.client.ZCard(ctx, q.delayedKey(jobs.DefaultQueue)).Result(); n != 1 {
		t.Errorf("delayed = %d, want 1", n)
	}
	if n, _ := q.client.LLen(ctx, q.processingKey(jobs.DefaultQueue)).Result(); n != 0 {
		t.Errorf("processing = %d, want 0", n)
	}
}

func TestQueue_PopHonoursContext(t *testing.T) {
	q := setupQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	if _, err := q.Pop(ctx, jobs.DefaultQueue); err == nil {
		t.Error("Pop() on an empty queue should fail when ctx expires")
	}
}
