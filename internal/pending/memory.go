package pending

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryTracker is an in-memory Tracker for tests and early development.
type MemoryTracker struct {
	mu      sync.Mutex
	entries map[string]Call
	window  time.Duration

	now func() time.Time
}

func NewMemoryTracker(window time.Duration) *MemoryTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryTracker{
		entries: map[string]Call{},
		window:  window,
		now:     time.Now,
	}
}

func (t *MemoryTracker) Create(ctx context.Context, userID, toNumber string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[toNumber] = Call{
		ID:        uuid.NewString(),
		UserID:    userID,
		ToNumber:  toNumber,
		CreatedAt: t.now().UTC(),
	}
	return nil
}

func (t *MemoryTracker) Consume(ctx context.Context, toNumber string) (Call, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[toNumber]
	if !ok {
		return Call{}, false, nil
	}
	delete(t.entries, toNumber)
	if t.now().Sub(entry.CreatedAt) > t.window {
		return Call{}, false, nil
	}
	return entry, true, nil
}

// SetNow overrides the clock for window tests.
func (t *MemoryTracker) SetNow(now func() time.Time) { t.now = now }
