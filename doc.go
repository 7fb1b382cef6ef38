// Package gatekeep implements the request-admission engine of an in-process
// API gateway: per-tier rate limiting with three algorithms, a global
// fixed-window ceiling, and IP allow/block rules.
//
// # Algorithms
//
//   - Token Bucket — steady refill, burst-friendly
//   - Sliding Window Log — precise, stores every timestamp
//   - Fixed Window Counter — simple, fixed intervals (also backs the
//     global ceiling)
//
// All state is in-memory, keyed by client IP and segregated per tier.
// There is no external backend on purpose: the gateway targets
// single-instance deployments, and admission state resetting on restart is
// a documented property, not a gap.
//
// # Quick Start
//
//	engine, err := gatekeep.NewEngine(gatekeep.DefaultLimits())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	d := engine.Check("203.0.113.7", "free")
//	if d.Allowed {
//	    // serve request
//	}
//
// A Decision carries Allowed, Remaining, Limit, and ResetAfter. Limit and
// Remaining of -1 mean the tier is unlimited. Tiers that cannot be
// resolved, or whose configuration is malformed, admit the request: the
// engine fails open.
//
// HTTP integration lives in the middleware subpackage; streaming request
// analytics in analytics; credential and device authentication in auth and
// device.
package gatekeep
