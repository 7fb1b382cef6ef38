// Package middleware provides the gateway's gin admission pipeline.
//
// Stages run in a fixed order: request logger, authentication, IP filter,
// rate limit. Each stage may short-circuit with a structured JSON error;
// the logger always records the response regardless of which stage
// rejected. Internal limiter failures admit the request (fail open).
//
//	api := router.Group("/api",
//	    middleware.RequestLogger(loggerCfg),
//	    middleware.Auth(resolver, collector),
//	    middleware.IPFilter(rules),
//	    middleware.RateLimit(checker),
//	)
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/krishna-kudari/gatekeep/auth"
)

// identityKey is the gin context key for the request identity.
const identityKey = "gatekeep.identity"

// SetIdentity attaches the resolved identity to the request context.
func SetIdentity(c *gin.Context, id auth.Identity) {
	c.Set(identityKey, id)
}

// GetIdentity returns the identity set by the auth stage. Requests that
// never reached the auth stage resolve to an anonymous identity keyed by
// client IP.
func GetIdentity(c *gin.Context) auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}
	return auth.Identity{ClientID: c.ClientIP(), Tier: "free"}
}
