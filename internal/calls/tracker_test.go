package calls

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTracker_StartStopRemove(t *testing.T) {
	tr := NewTracker()
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	tr.clock = func() time.Time { return now }

	c := tr.Start("+4915112345678", "outbound", "501")
	if c.Status != CallStatusActive || c.ID == "" {
		t.Fatalf("unexpected call: %+v", c)
	}
	if got, ok := tr.Get(c.ID); !ok || got.PhoneNumber != "+4915112345678" {
		t.Fatalf("expected call to be tracked")
	}

	now = now.Add(95*time.Second + 600*time.Millisecond)
	ended, err := tr.Stop(c.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if ended.DurationSeconds != 95 {
		t.Fatalf("expected 95s, got %d", ended.DurationSeconds)
	}
	if ended.Status != CallStatusCompleted || ended.EndTime == nil {
		t.Fatalf("expected completed call with end time: %+v", ended)
	}
	if tr.Active() != 0 {
		t.Fatalf("expected no active calls after stop")
	}

	tr.Remove(c.ID)
	if _, ok := tr.Get(c.ID); ok {
		t.Fatalf("expected call to be forgotten")
	}
}

func TestTracker_StopUnknown(t *testing.T) {
	tr := NewTracker()
	if _, err := tr.Stop("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTracker_StopWhileEnding(t *testing.T) {
	tr := NewTracker()
	c := tr.Start("1", "inbound", "")
	if _, err := tr.Stop(c.ID); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if _, err := tr.Stop(c.ID); !errors.Is(err, ErrEnding) {
		t.Fatalf("expected ErrEnding on second stop, got %v", err)
	}
}

func TestTracker_ReleaseKeepsFrozenDuration(t *testing.T) {
	tr := NewTracker()
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	tr.clock = func() time.Time { return now }

	c := tr.Start("1", "inbound", "")
	now = now.Add(30 * time.Second)
	first, err := tr.Stop(c.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	tr.Release(c.ID)

	now = now.Add(time.Hour)
	retry, err := tr.Stop(c.ID)
	if err != nil {
		t.Fatalf("stop after release: %v", err)
	}
	if retry.DurationSeconds != 30 || !retry.EndTime.Equal(*first.EndTime) {
		t.Fatalf("expected the first end to stick, got %+v", retry)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := tr.Start("1", "inbound", "")
			if _, err := tr.Stop(c.ID); err == nil {
				tr.Remove(c.ID)
			}
		}()
	}
	wg.Wait()
	if tr.Active() != 0 {
		t.Fatalf("expected no active calls, got %d", tr.Active())
	}
}
