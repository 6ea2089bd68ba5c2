package rate

import (
	"context"
	"sync"
	"time"
)

// Counter is the sliding-window counter contract the risk assessor consumes.
// Hit records one request for principal and returns the count accumulated in
// the current window, including the one just recorded.
type Counter interface {
	Hit(ctx context.Context, principal string) (int, error)
}

type windowEntry struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// MemoryWindow is the in-process sliding-window counter. State is owned by
// the instance — no package-level maps — so two assessors never share
// counters by accident.
type MemoryWindow struct {
	window  time.Duration
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

// NewMemoryWindow creates a [MemoryWindow] with the given window length.
func NewMemoryWindow(window time.Duration) *MemoryWindow {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryWindow{
		window:  window,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// Hit implements [Counter]. A hit after the window has elapsed resets the
// counter to 1 and restamps the window start.
func (w *MemoryWindow) Hit(_ context.Context, principal string) (int, error) {
	w.mu.Lock()
	entry, ok := w.entries[principal]
	if !ok {
		entry = &windowEntry{}
		w.entries[principal] = entry
	}
	w.mu.Unlock()

	now := w.now()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.windowStart.IsZero() || now.Sub(entry.windowStart) >= w.window {
		entry.windowStart = now
		entry.count = 1
		return 1, nil
	}

	entry.count++
	return entry.count, nil
}

// Sweep drops entries whose window elapsed before cutoff. Callers run it
// opportunistically; correctness does not depend on it, only memory use.
func (w *MemoryWindow) Sweep(cutoff time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for principal, entry := range w.entries {
		entry.mu.Lock()
		stale := !entry.windowStart.IsZero() && cutoff.Sub(entry.windowStart) >= w.window
		entry.mu.Unlock()
		if stale {
			delete(w.entries, principal)
		}
	}
}
