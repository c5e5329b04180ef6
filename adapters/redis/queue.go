// Package redis provides a jobs.Queue backed by Redis.
//
// Each queue uses three keys under a common prefix:
//
//	<prefix>:<queue>:ready       list of encoded jobs, consumed from the right
//	<prefix>:<queue>:delayed     sorted set of encoded jobs scored by RunAt (unix ms)
//	<prefix>:<queue>:processing  list of jobs popped but not yet acked
//
// Due delayed jobs are moved to the ready list by a Lua script before each
// blocking pop, so several consumers can share a queue.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/artpar/typemap/core/jobs"
)

// DefaultPrefix namespaces queue keys.
const DefaultPrefix = "typemap:jobs"

// promoteScript moves up to ARGV[2] due members of KEYS[1] onto KEYS[2].
var promoteScript = goredis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
	redis.call('ZREM', KEYS[1], member)
	redis.call('LPUSH', KEYS[2], member)
end
return #due
`)

// Config configures a Queue.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int

	// Prefix namespaces keys; defaults to DefaultPrefix.
	Prefix string

	// PollInterval bounds how long a pop blocks before re-checking delayed
	// jobs. Defaults to one second.
	PollInterval time.Duration
}

// Queue is a Redis jobs.Queue.
type Queue struct {
	client *goredis.Client
	prefix string
	poll   time.Duration
	now    func() time.Time

	mu       sync.Mutex
	inflight map[string]string // job ID -> encoded job in the processing list
	owned    bool
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Queue, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	q := New(client, cfg)
	q.owned = true
	return q, nil
}

// New wraps an existing client. Close does not close a client passed here.
func New(client *goredis.Client, cfg Config) *Queue {
	q := &Queue{
		client:   client,
		prefix:   cfg.Prefix,
		poll:     cfg.PollInterval,
		now:      time.Now,
		inflight: make(map[string]string),
	}
	if q.prefix == "" {
		q.prefix = DefaultPrefix
	}
	if q.poll <= 0 {
		q.poll = time.Second
	}
	return q
}

// Client returns the underlying client.
func (q *Queue) Client() *goredis.Client { return q.client }

func (q *Queue) readyKey(queue string) string      { return q.key(queue, "ready") }
func (q *Queue) delayedKey(queue string) string    { return q.key(queue, "delayed") }
func (q *Queue) processingKey(queue string) string { return q.key(queue, "processing") }

func (q *Queue) key(queue, kind string) string {
	if queue == "" {
		queue = jobs.DefaultQueue
	}
	return q.prefix + ":" + queue + ":" + kind
}

// Push stores job on the ready list, or on the delayed set when RunAt is in
// the future.
func (q *Queue) Push(ctx context.Context, job jobs.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	return q.push(ctx, job, string(data))
}

func (q *Queue) push(ctx context.Context, job jobs.Job, payload string) error {
	if job.RunAt.After(q.now()) {
		err := q.client.ZAdd(ctx, q.delayedKey(job.Queue), goredis.Z{
			Score:  float64(job.RunAt.UnixMilli()),
			Member: payload,
		}).Err()
		if err != nil {
			return fmt.Errorf("schedule job %s: %w", job.ID, err)
		}
		return nil
	}

	if err := q.client.LPush(ctx, q.readyKey(job.Queue), payload).Err(); err != nil {
		return fmt.Errorf("push job %s: %w", job.ID, err)
	}
	return nil
}

// Pop promotes due delayed jobs, then blocks on the ready list for up to the
// poll interval, repeating until a job arrives or ctx is done.
func (q *Queue) Pop(ctx context.Context, queue string) (jobs.Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return jobs.Job{}, err
		}

		if _, err := q.Promote(ctx, queue); err != nil {
			return jobs.Job{}, err
		}

		payload, err := q.client.BLMove(ctx, q.readyKey(queue), q.processingKey(queue), "RIGHT", "LEFT", q.poll).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return jobs.Job{}, ctx.Err()
			}
			return jobs.Job{}, fmt.Errorf("pop %s: %w", queue, err)
		}

		var job jobs.Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			// Unreadable payloads would block the queue forever.
			q.client.LRem(ctx, q.processingKey(queue), 1, payload)
			return jobs.Job{}, fmt.Errorf("decode job on %s: %w", queue, err)
		}

		q.mu.Lock()
		q.inflight[job.ID] = payload
		q.mu.Unlock()

		return job, nil
	}
}

// Promote moves due delayed jobs on queue to its ready list and returns how
// many moved.
func (q *Queue) Promote(ctx context.Context, queue string) (int64, error) {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	n, err := promoteScript.Run(ctx, q.client,
		[]string{q.delayedKey(queue), q.readyKey(queue)}, now, 100).Int64()
	if err != nil {
		return 0, fmt.Errorf("promote %s: %w", queue, err)
	}
	return n, nil
}

func (q *Queue) release(job jobs.Job) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	payload, ok := q.inflight[job.ID]
	delete(q.inflight, job.ID)
	return payload, ok
}

// Ack removes a popped job from the processing list.
func (q *Queue) Ack(ctx context.Context, job jobs.Job) error {
	payload, ok := q.release(job)
	if !ok {
		return nil
	}
	if err := q.client.LRem(ctx, q.processingKey(job.Queue), 1, payload).Err(); err != nil {
		return fmt.Errorf("ack job %s: %w", job.ID, err)
	}
	return nil
}

// Retry removes a popped job from the processing list and schedules it again.
func (q *Queue) Retry(ctx context.Context, job jobs.Job, at time.Time) error {
	if payload, ok := q.release(job); ok {
		if err := q.client.LRem(ctx, q.processingKey(job.Queue), 1, payload).Err(); err != nil {
			return fmt.Errorf("retry job %s: %w", job.ID, err)
		}
	}
	job.RunAt = at
	return q.Push(ctx, job)
}

// Len counts ready and delayed jobs on queue.
func (q *Queue) Len(ctx context.Context, queue string) (int64, error) {
	pipe := q.client.Pipeline()
	ready := pipe.LLen(ctx, q.readyKey(queue))
	delayed := pipe.ZCard(ctx, q.delayedKey(queue))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("len %s: %w", queue, err)
	}
	return ready.Val() + delayed.Val(), nil
}

// Close closes the client if Open created it.
func (q *Queue) Close() error {
	if !q.owned {
		return nil
	}
	return q.client.Close()
}
