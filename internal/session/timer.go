package session

import (
	"log/slog"
	"sync"
	"time"
)

// ExpiryTimer manages one cancellable delayed task per user key. Arming a
// key always replaces any existing timer for it, so at most one timer is
// live per user at any time.
type ExpiryTimer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewExpiryTimer creates an empty keyed timer set.
func NewExpiryTimer() *ExpiryTimer {
	slog.Debug("Creating ExpiryTimer")
	return &ExpiryTimer{timers: make(map[string]*time.Timer)}
}

// Arm schedules fn to run after delay for the given key, cancelling any
// timer previously armed for that key. The callback runs on the timer
// goroutine; it must re-check session presence itself, since the session
// may have been cleared between arming and firing.
func (t *ExpiryTimer) Arm(key string, delay time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.timers[key]; ok {
		existing.Stop()
	}

	// Stop on an already-expired timer returns false and its callback
	// still runs; the callback must verify it is still the tracked timer
	// for the key before touching the map or firing, or it would tear
	// down a replacement armed in the window before it took the lock.
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		if current, ok := t.timers[key]; !ok || current != timer {
			t.mu.Unlock()
			slog.Debug("ExpiryTimer fire superseded", "key", key)
			return
		}
		delete(t.timers, key)
		t.mu.Unlock()

		slog.Debug("ExpiryTimer fired", "key", key, "delay", delay)
		fn()
	})
	t.timers[key] = timer
	slog.Debug("ExpiryTimer armed", "key", key, "delay", delay)
}

// Cancel stops and removes the timer for a key. Cancelling an absent key is
// a no-op.
func (t *ExpiryTimer) Cancel(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.timers[key]; ok {
		existing.Stop()
		delete(t.timers, key)
		slog.Debug("ExpiryTimer cancelled", "key", key)
		return
	}
	slog.Debug("ExpiryTimer Cancel: timer not found", "key", key)
}

// Stop cancels all armed timers.
func (t *ExpiryTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	slog.Debug("ExpiryTimer stopping all timers", "count", len(t.timers))
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}

// ActiveCount returns the number of currently armed timers.
func (t *ExpiryTimer) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
