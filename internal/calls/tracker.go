package calls

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("calls: call not found")
	// ErrEnding means another request is already logging this call.
	ErrEnding = errors.New("calls: call is already ending")
)

type entry struct {
	call   Call
	ending bool
}

// Tracker keeps live calls keyed by id. Safe for concurrent use.
//
// Ending a call is two-phase: Stop freezes the end time and duration, then the
// caller either Removes the call once it is logged or Releases it so a later
// Stop can retry with the same frozen duration.
type Tracker struct {
	mu    sync.Mutex
	calls map[string]*entry
	clock func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{calls: make(map[string]*entry), clock: time.Now}
}

// Start registers a new active call.
func (t *Tracker) Start(phoneNumber, direction, contactID string) Call {
	c := Call{
		ID:          uuid.NewString(),
		PhoneNumber: phoneNumber,
		Direction:   direction,
		ContactID:   contactID,
		Status:      CallStatusActive,
		StartTime:   t.clock().UTC(),
	}

	t.mu.Lock()
	t.calls[c.ID] = &entry{call: c}
	t.mu.Unlock()
	return c
}

// Stop marks the call completed and claims it for logging. The first Stop fixes
// the end time; later ones after a Release return the same snapshot.
func (t *Tracker) Stop(id string) (Call, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	if e.ending {
		return Call{}, ErrEnding
	}
	if e.call.EndTime == nil {
		end := t.clock().UTC()
		e.call.EndTime = &end
		e.call.DurationSeconds = int(end.Sub(e.call.StartTime) / time.Second)
		e.call.Status = CallStatusCompleted
	}
	e.ending = true
	return e.call, nil
}

// Release hands a stopped call back after a failed attempt to log it.
func (t *Tracker) Release(id string) {
	t.mu.Lock()
	if e, ok := t.calls[id]; ok {
		e.ending = false
	}
	t.mu.Unlock()
}

// Remove forgets a call once it has been logged.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	delete(t.calls, id)
	t.mu.Unlock()
}

func (t *Tracker) Get(id string) (Call, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.calls[id]
	if !ok {
		return Call{}, false
	}
	return e.call, true
}

// Active returns the number of calls still in progress.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.calls {
		if e.call.Status == CallStatusActive {
			n++
		}
	}
	return n
}
