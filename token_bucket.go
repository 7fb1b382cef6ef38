package gatekeep

import (
	"math"
	"sync"
	"time"
)

type tokenBucketState struct {
	tokens     float64
	lastRefill time.Time
}

// tokenBucket admits requests while tokens remain, refilling continuously
// at refillRate tokens per second up to capacity. First-seen keys start
// with a full bucket, so a new client can burst capacity requests at once.
type tokenBucket struct {
	mu         sync.Mutex
	states     map[string]*tokenBucketState
	capacity   int64
	refillRate float64
	now        func() time.Time
}

func newTokenBucket(capacity int64, refillRate float64, now func() time.Time) *tokenBucket {
	return &tokenBucket{
		states:     make(map[string]*tokenBucketState),
		capacity:   capacity,
		refillRate: refillRate,
		now:        now,
	}
}

func (t *tokenBucket) check(key string) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	state, ok := t.states[key]
	if !ok {
		state = &tokenBucketState{
			tokens:     float64(t.capacity),
			lastRefill: now,
		}
		t.states[key] = state
	}

	// A wall-clock jump backwards must not drain the bucket.
	elapsed := now.Sub(state.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	state.tokens = math.Min(float64(t.capacity), state.tokens+elapsed*t.refillRate)
	state.lastRefill = now

	if state.tokens >= 1 {
		state.tokens--
		var reset time.Duration
		if state.tokens <= 0 {
			reset = ceilSeconds(1 / t.refillRate)
		}
		return Decision{
			Allowed:    true,
			Remaining:  int64(math.Floor(state.tokens)),
			ResetAfter: reset,
			Limit:      t.capacity,
		}
	}

	return Decision{
		Allowed:    false,
		Remaining:  0,
		ResetAfter: ceilSeconds((1 - state.tokens) / t.refillRate),
		Limit:      t.capacity,
	}
}

// ceilSeconds converts a duration in seconds to a Duration rounded up to
// the next millisecond.
func ceilSeconds(s float64) time.Duration {
	return time.Duration(math.Ceil(s*1000)) * time.Millisecond
}
