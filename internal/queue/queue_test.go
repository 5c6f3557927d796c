package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, done <-chan Job, n int) []Job {
	t.Helper()
	out := make([]Job, 0, n)
	for len(out) < n {
		select {
		case j := <-done:
			out = append(out, j)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d/%d jobs", len(out), n)
		}
	}
	return out
}

func TestQueue_ProcessesInInsertionOrder(t *testing.T) {
	done := make(chan Job, 10)
	var mu sync.Mutex
	var seen []int

	q := New("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job.Payload.(int))
		mu.Unlock()
		return nil
	}, Options{OnDone: func(j Job) { done <- j }})

	for i := 1; i <= 5; i++ {
		job, err := q.Enqueue(i)
		require.NoError(t, err)
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, StatusPending, job.Status)
	}

	jobs := collect(t, done, 5)
	for _, j := range jobs {
		assert.Equal(t, StatusCompleted, j.Status)
		assert.Equal(t, 1, j.Attempts)
	}
	mu.Lock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
	mu.Unlock()
	require.NoError(t, q.Close(context.Background()))
}

func TestQueue_SingleDrainAtATime(t *testing.T) {
	done := make(chan Job, 20)
	var running, peak int32

	q := New("test", func(ctx context.Context, job Job) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	}, Options{OnDone: func(j Job) { done <- j }})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = q.Enqueue(i)
		}(i)
	}
	wg.Wait()

	collect(t, done, 20)
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	done := make(chan Job, 1)
	var calls int32

	q := New("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("upstream hiccup")
		}
		return nil
	}, Options{MaxRetries: 3, InitialInterval: time.Millisecond, OnDone: func(j Job) { done <- j }})

	_, err := q.Enqueue("x")
	require.NoError(t, err)

	j := collect(t, done, 1)[0]
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Equal(t, 3, j.Attempts)
	assert.Empty(t, j.Error)
}

func TestQueue_FailsAfterBoundedRetries(t *testing.T) {
	done := make(chan Job, 1)

	q := New("test", func(ctx context.Context, job Job) error {
		return errors.New("still broken")
	}, Options{MaxRetries: 2, InitialInterval: time.Millisecond, OnDone: func(j Job) { done <- j }})

	_, err := q.Enqueue("x")
	require.NoError(t, err)

	j := collect(t, done, 1)[0]
	assert.Equal(t, StatusFailed, j.Status)
	assert.Equal(t, 3, j.Attempts)
	assert.Equal(t, "still broken", j.Error)
	assert.False(t, j.FinishedAt.IsZero())
}

func TestQueue_PermanentErrorSkipsRetries(t *testing.T) {
	done := make(chan Job, 1)

	q := New("test", func(ctx context.Context, job Job) error {
		return Permanent(errors.New("contact does not exist"))
	}, Options{MaxRetries: 5, InitialInterval: time.Millisecond, OnDone: func(j Job) { done <- j }})

	_, err := q.Enqueue("x")
	require.NoError(t, err)

	j := collect(t, done, 1)[0]
	assert.Equal(t, StatusFailed, j.Status)
	assert.Equal(t, 1, j.Attempts)
}

func TestQueue_CloseRejectsNewJobs(t *testing.T) {
	q := New("test", func(ctx context.Context, job Job) error { return nil }, Options{})
	require.NoError(t, q.Close(context.Background()))

	_, err := q.Enqueue("x")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_CloseTimesOutOnStuckJob(t *testing.T) {
	started := make(chan struct{})
	q := New("test", func(ctx context.Context, job Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, Options{})

	_, err := q.Enqueue("x")
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)
}
