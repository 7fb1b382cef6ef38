package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/krishna-kudari/gatekeep"
)

// RateLimit runs the admission check for the request identity's tier.
// When the resolved tier has a cap, X-RateLimit-* headers are set on both
// admissions and denials; denials get 429 with a retryAfter hint in
// seconds. A panicking checker admits the request.
func RateLimit(checker gatekeep.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		d := safeCheck(checker, c.ClientIP(), id.Tier)

		if d.Limit > 0 {
			remaining := d.Remaining
			if remaining < 0 {
				remaining = 0
			}
			c.Header("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(ceilSeconds(d), 10))
		}

		if !d.Allowed {
			retry := ceilSeconds(d)
			c.Header("Retry-After", strconv.FormatInt(retry, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Rate limit exceeded",
				"retryAfter": retry,
			})
			return
		}
		c.Next()
	}
}

// safeCheck admits on any checker panic: an internal limiter failure must
// never reject traffic.
func safeCheck(checker gatekeep.Checker, ip, tier string) (d gatekeep.Decision) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Limiter panic; admitting request")
			d = gatekeep.Decision{
				Allowed:   true,
				Remaining: gatekeep.Unlimited,
				Limit:     gatekeep.Unlimited,
				Algorithm: gatekeep.LabelNone,
			}
		}
	}()
	return checker.Check(ip, tier)
}

func ceilSeconds(d gatekeep.Decision) int64 {
	return int64(math.Ceil(d.ResetAfter.Seconds()))
}
