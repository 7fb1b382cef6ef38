package gatekeep

import (
	"sync/atomic"
	"time"
)

// Metrics label values for the algorithms.
const (
	LabelTokenBucket   = "token_bucket"
	LabelSlidingWindow = "sliding_window"
	LabelFixedWindow   = "fixed_window"
	LabelGlobal        = "global"
	LabelNone          = "none"
)

type tierLimiter interface {
	check(key string) Decision
}

// Engine dispatches admission checks to the configured algorithms.
//
// Every request first consumes one unit from the global fixed-window
// ceiling, then from the resolved tier's limiter. Per-tier state is
// segregated, so two tiers sharing an algorithm never share counters for
// the same IP. Rejections from either stage increment the hit counter.
type Engine struct {
	cfg      LimitsConfig
	global   *fixedWindow
	limiters map[string]tierLimiter
	algos    map[string]string
	hits     atomic.Int64
}

// EngineOption configures an Engine.
type EngineOption func(*engineConfig)

type engineConfig struct {
	now func() time.Time
}

// WithClock overrides the time source. Used by tests to cross window
// boundaries without sleeping.
func WithClock(now func() time.Time) EngineOption {
	return func(c *engineConfig) { c.now = now }
}

// NewEngine validates cfg and builds the per-tier limiter instances.
func NewEngine(cfg LimitsConfig, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ec := &engineConfig{now: time.Now}
	for _, o := range opts {
		o(ec)
	}

	e := &Engine{
		cfg:      cfg,
		limiters: make(map[string]tierLimiter),
		algos:    make(map[string]string),
	}
	if cfg.GlobalLimit.MaxRequests > 0 {
		e.global = newFixedWindow(cfg.GlobalLimit.MaxRequests, cfg.GlobalLimit.Window(), ec.now)
	}
	for name, tier := range cfg.Tiers {
		switch tier.Algorithm {
		case AlgoTokenBucket:
			e.limiters[name] = newTokenBucket(tier.MaxRequests, tier.RefillRate, ec.now)
			e.algos[name] = LabelTokenBucket
		case AlgoSlidingWindow:
			e.limiters[name] = newSlidingWindow(tier.MaxRequests, tier.Window(), ec.now)
			e.algos[name] = LabelSlidingWindow
		case AlgoFixedWindow:
			e.limiters[name] = newFixedWindow(tier.MaxRequests, tier.Window(), ec.now)
			e.algos[name] = LabelFixedWindow
		}
	}
	return e, nil
}

// Check runs one admission for ip under the named tier. Unknown tier
// names fall back to the default tier; tiers with algorithm "none" admit
// with the Unlimited sentinel. Check never rejects for internal reasons.
func (e *Engine) Check(ip, tier string) Decision {
	if e.global != nil {
		if d := e.global.check(globalKey); !d.Allowed {
			e.hits.Add(1)
			d.Algorithm = LabelGlobal
			return d
		}
	}

	name := tier
	if _, ok := e.cfg.Tiers[name]; !ok {
		name = e.cfg.DefaultTier
	}
	limiter, ok := e.limiters[name]
	if !ok {
		// Algorithm "none", or a tier the constructor could not build:
		// fail open.
		return Decision{Allowed: true, Remaining: Unlimited, Limit: Unlimited, Algorithm: LabelNone}
	}

	d := limiter.check(ip)
	d.Algorithm = e.algos[name]
	if !d.Allowed {
		e.hits.Add(1)
	}
	return d
}

// Hits returns the number of rejections since start (tier and global).
func (e *Engine) Hits() int64 {
	return e.hits.Load()
}

// Limits returns the configuration the engine was built with.
func (e *Engine) Limits() LimitsConfig {
	return e.cfg
}
