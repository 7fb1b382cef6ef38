package gatekeep

import (
	"sync"
	"time"
)

type slidingWindowState struct {
	timestamps []time.Time
}

// slidingWindow keeps a log of request timestamps per key and admits while
// fewer than maxRequests fall inside the rolling window. Memory is
// O(maxRequests) per key.
type slidingWindow struct {
	mu          sync.Mutex
	states      map[string]*slidingWindowState
	maxRequests int64
	window      time.Duration
	now         func() time.Time
}

func newSlidingWindow(maxRequests int64, window time.Duration, now func() time.Time) *slidingWindow {
	return &slidingWindow{
		states:      make(map[string]*slidingWindowState),
		maxRequests: maxRequests,
		window:      window,
		now:         now,
	}
}

func (s *slidingWindow) check(key string) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[key]
	if !ok {
		state = &slidingWindowState{}
		s.states[key] = state
	}

	now := s.now()

	// Evict timestamps that fell out of the window.
	cutoff := 0
	for cutoff < len(state.timestamps) && now.Sub(state.timestamps[cutoff]) >= s.window {
		cutoff++
	}
	state.timestamps = state.timestamps[cutoff:]

	if int64(len(state.timestamps)) < s.maxRequests {
		state.timestamps = append(state.timestamps, now)
		reset := s.window
		if oldest := state.timestamps[0]; oldest.Before(now) {
			reset = s.window - now.Sub(oldest)
		}
		return Decision{
			Allowed:    true,
			Remaining:  s.maxRequests - int64(len(state.timestamps)),
			ResetAfter: reset,
			Limit:      s.maxRequests,
		}
	}

	reset := s.window - now.Sub(state.timestamps[0])
	if reset < 0 {
		reset = 0
	}
	return Decision{
		Allowed:    false,
		Remaining:  0,
		ResetAfter: reset,
		Limit:      s.maxRequests,
	}
}
