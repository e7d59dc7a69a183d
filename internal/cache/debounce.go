package cache

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the short stale-serve window applied per
// logical subject. A UI re-analyzing every second gets the previous
// result back instead of issuing another vision call.
const DefaultDebounceWindow = 3 * time.Second

type debounceEntry struct {
	value any
	at    time.Time
}

// Debouncer serves the last known result for a logical subject when a
// new request arrives within a short window of the previous one, even
// without an exact cache-key match. Safe for concurrent use.
type Debouncer struct {
	mu     sync.Mutex
	last   map[string]debounceEntry
	window time.Duration
	now    func() time.Time
}

// NewDebouncer creates a Debouncer with the given stale-serve window.
// A zero window selects DefaultDebounceWindow; now may be nil for the
// wall clock.
func NewDebouncer(window time.Duration, now func() time.Time) *Debouncer {
	if window == 0 {
		window = DefaultDebounceWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Debouncer{
		last:   make(map[string]debounceEntry),
		window: window,
		now:    now,
	}
}

// Recent returns the last recorded value for subject if it was recorded
// within the window.
func (d *Debouncer) Recent(subject string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.last[subject]
	if !ok || d.now().Sub(e.at) > d.window {
		return nil, false
	}
	return e.value, true
}

// Record notes the latest result for subject.
func (d *Debouncer) Record(subject string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last[subject] = debounceEntry{value: value, at: d.now()}
}
