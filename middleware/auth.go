package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/krishna-kudari/gatekeep/auth"
	"github.com/krishna-kudari/gatekeep/metrics"
)

// apiKeyHeader and apiKeyQuery are the credential inputs, examined in
// that order; the first non-empty value is the candidate.
const (
	apiKeyHeader = "X-API-Key"
	apiKeyQuery  = "apiKey"
)

// Auth resolves the request identity and stores it in the context.
// Failures abort with 401 and the resolver's message as {"error": ...}.
// collector may be nil.
func Auth(resolver *auth.Resolver, collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		candidate := c.GetHeader(apiKeyHeader)
		if candidate == "" {
			candidate = c.Query(apiKeyQuery)
		}

		method := "none"
		switch {
		case candidate == "":
		case auth.IsTOTPKey(candidate):
			method = "totp"
		default:
			method = "static"
		}

		id, err := resolver.Resolve(candidate, c.ClientIP())
		if err != nil {
			collector.ObserveAuth(method, "rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		collector.ObserveAuth(method, "ok")
		SetIdentity(c, id)
		c.Next()
	}
}
