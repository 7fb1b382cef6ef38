package gatekeep

import (
	"fmt"
	"time"
)

// Algorithm selects the rate limiting algorithm for a tier.
type Algorithm string

const (
	AlgoTokenBucket   Algorithm = "tokenBucket"
	AlgoSlidingWindow Algorithm = "slidingWindow"
	AlgoFixedWindow   Algorithm = "fixedWindow"
	AlgoNone          Algorithm = "none"
)

// Unlimited is the sentinel Limit/Remaining value for tiers without a cap.
const Unlimited int64 = -1

// globalKey is the sentinel state key for the global fixed-window ceiling.
const globalKey = "__global__"

// TierConfig is a named rate-limit policy assigned to credentials.
//
// tokenBucket requires MaxRequests (burst capacity) and RefillRate
// (tokens per second). slidingWindow and fixedWindow require MaxRequests
// and WindowMs. none disables per-tier limiting.
type TierConfig struct {
	Algorithm   Algorithm `json:"algorithm"`
	MaxRequests int64     `json:"maxRequests,omitempty"`
	WindowMs    int64     `json:"windowMs,omitempty"`
	RefillRate  float64   `json:"refillRate,omitempty"`
}

// Validate checks that the tier carries the parameters its algorithm needs.
func (t TierConfig) Validate() error {
	switch t.Algorithm {
	case AlgoTokenBucket:
		if t.MaxRequests <= 0 || t.RefillRate <= 0 {
			return fmt.Errorf("gatekeep: tokenBucket requires positive maxRequests and refillRate")
		}
	case AlgoSlidingWindow, AlgoFixedWindow:
		if t.MaxRequests <= 0 || t.WindowMs <= 0 {
			return fmt.Errorf("gatekeep: %s requires positive maxRequests and windowMs", t.Algorithm)
		}
	case AlgoNone:
	default:
		return fmt.Errorf("gatekeep: unknown algorithm %q", t.Algorithm)
	}
	return nil
}

// Window returns the tier window as a Duration.
func (t TierConfig) Window() time.Duration {
	return time.Duration(t.WindowMs) * time.Millisecond
}

// WindowLimit is a fixed-window cap shared by all clients.
type WindowLimit struct {
	MaxRequests int64 `json:"maxRequests"`
	WindowMs    int64 `json:"windowMs"`
}

// Window returns the cap window as a Duration.
func (w WindowLimit) Window() time.Duration {
	return time.Duration(w.WindowMs) * time.Millisecond
}

// LimitsConfig is the full rate-limit configuration: the tier table, the
// tier applied when a request resolves to no known tier, and the global
// ceiling applied before any tier check.
type LimitsConfig struct {
	Tiers       map[string]TierConfig `json:"tiers"`
	DefaultTier string                `json:"defaultTier"`
	GlobalLimit WindowLimit           `json:"globalLimit"`
}

// Validate checks every tier and the DefaultTier reference.
func (c LimitsConfig) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("gatekeep: at least one tier is required")
	}
	for name, tier := range c.Tiers {
		if err := tier.Validate(); err != nil {
			return fmt.Errorf("tier %q: %w", name, err)
		}
	}
	if _, ok := c.Tiers[c.DefaultTier]; !ok {
		return fmt.Errorf("gatekeep: defaultTier %q is not a configured tier", c.DefaultTier)
	}
	if c.GlobalLimit.MaxRequests > 0 && c.GlobalLimit.WindowMs <= 0 {
		return fmt.Errorf("gatekeep: globalLimit requires positive windowMs")
	}
	return nil
}

// DefaultLimits returns the built-in tier table used when no policy file
// is configured: free (sliding window 100/min), pro (token bucket, 500
// burst at 50/s), enterprise (token bucket, 5000 burst at 500/s),
// unlimited (no per-tier cap), with a global ceiling of 2000/min.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		Tiers: map[string]TierConfig{
			"free":       {Algorithm: AlgoSlidingWindow, MaxRequests: 100, WindowMs: 60_000},
			"pro":        {Algorithm: AlgoTokenBucket, MaxRequests: 500, RefillRate: 50},
			"enterprise": {Algorithm: AlgoTokenBucket, MaxRequests: 5000, RefillRate: 500},
			"unlimited":  {Algorithm: AlgoNone},
		},
		DefaultTier: "free",
		GlobalLimit: WindowLimit{MaxRequests: 2000, WindowMs: 60_000},
	}
}

// Decision is the outcome of one admission check.
//
// Remaining and Limit are -1 (Unlimited) when the resolved tier has no
// cap. ResetAfter is how long the caller should wait before the state
// that caused a denial relaxes; it is zero for unconstrained admissions.
type Decision struct {
	Allowed    bool
	Remaining  int64
	ResetAfter time.Duration
	Limit      int64

	// Algorithm is the metrics label of the algorithm that produced the
	// decision ("token_bucket", "sliding_window", "fixed_window",
	// "global", or "none").
	Algorithm string
}

// Checker is the admission contract consumed by the HTTP middleware and
// the metrics instrumentation wrapper.
type Checker interface {
	Check(ip, tier string) Decision
}
