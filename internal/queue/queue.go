// Package queue is an in-memory FIFO job runner with bounded retries.
//
// Jobs are processed strictly in insertion order by at most one drain goroutine
// per queue. Nothing is persisted: pending jobs are lost on process exit.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is a unit of work. Handlers receive a copy; the queue owns the lifecycle fields.
type Job struct {
	ID         string
	Payload    any
	CreatedAt  time.Time
	Status     Status
	Attempts   int
	Error      string
	FinishedAt time.Time
}

// Handler processes one attempt of a job. Returning Permanent(err) stops retrying.
type Handler func(ctx context.Context, job Job) error

type Options struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// OnDone observes every job once it reaches a terminal status.
	OnDone func(Job)

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	out := o
	if out.InitialInterval <= 0 {
		out.InitialInterval = 500 * time.Millisecond
	}
	if out.MaxInterval <= 0 {
		out.MaxInterval = 30 * time.Second
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

var ErrClosed = errors.New("queue: closed")

// Permanent marks a handler error as not worth retrying.
func Permanent(err error) error { return backoff.Permanent(err) }

type Queue struct {
	name    string
	handler Handler
	opts    Options
	log     *slog.Logger
	clock   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	jobs     []*Job
	draining bool
	closed   bool
}

func New(name string, h Handler, opts Options) *Queue {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		name:    name,
		handler: h,
		opts:    opts,
		log:     opts.Logger.With("queue", name),
		clock:   time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (q *Queue) Name() string { return q.name }

// Enqueue appends a job and starts a drain if none is running.
func (q *Queue) Enqueue(payload any) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return Job{}, ErrClosed
	}
	job := &Job{
		ID:        uuid.NewString(),
		Payload:   payload,
		CreatedAt: q.clock().UTC(),
		Status:    StatusPending,
	}
	q.jobs = append(q.jobs, job)

	if !q.draining {
		q.draining = true
		q.wg.Add(1)
		go q.drain()
	}
	return *job, nil
}

// Len is the number of jobs waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close stops intake and waits for the current drain to finish. If ctx ends first
// the running job's context is canceled and ctx.Err() is returned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *Queue) drain() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		q.run(job)
	}
}

func (q *Queue) run(job *Job) {
	job.Status = StatusRunning

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.opts.InitialInterval
	b.MaxInterval = q.opts.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(b, q.opts.MaxRetries), q.ctx)

	err := backoff.Retry(func() error {
		job.Attempts++
		return q.handler(q.ctx, *job)
	}, policy)

	job.FinishedAt = q.clock().UTC()
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		q.log.Error("job failed", "job_id", job.ID, "attempts", job.Attempts, "err", err)
	} else {
		job.Status = StatusCompleted
		q.log.Debug("job completed", "job_id", job.ID, "attempts", job.Attempts)
	}

	if q.opts.OnDone != nil {
		q.opts.OnDone(*job)
	}
}
