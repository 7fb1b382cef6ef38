package gatekeep

import (
	"sync"
	"time"
)

type fixedWindowState struct {
	count       int64
	windowStart time.Time
}

// fixedWindow counts requests per key inside fixed intervals. The known
// boundary weakness (up to 2x burst across a window edge) is accepted;
// the global ceiling uses this algorithm for its O(1) state.
type fixedWindow struct {
	mu          sync.Mutex
	states      map[string]*fixedWindowState
	maxRequests int64
	window      time.Duration
	now         func() time.Time
}

func newFixedWindow(maxRequests int64, window time.Duration, now func() time.Time) *fixedWindow {
	return &fixedWindow{
		states:      make(map[string]*fixedWindowState),
		maxRequests: maxRequests,
		window:      window,
		now:         now,
	}
}

func (f *fixedWindow) check(key string) Decision {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	state, ok := f.states[key]
	if !ok || now.Sub(state.windowStart) >= f.window {
		state = &fixedWindowState{windowStart: now}
		f.states[key] = state
	}

	reset := f.window - now.Sub(state.windowStart)
	if reset < 0 {
		reset = 0
	}

	if state.count < f.maxRequests {
		state.count++
		return Decision{
			Allowed:    true,
			Remaining:  f.maxRequests - state.count,
			ResetAfter: reset,
			Limit:      f.maxRequests,
		}
	}

	return Decision{
		Allowed:    false,
		Remaining:  0,
		ResetAfter: reset,
		Limit:      f.maxRequests,
	}
}
