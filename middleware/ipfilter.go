package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/krishna-kudari/gatekeep"
)

// IPFilter applies the static allow/block rules. Rejections are 403 with
// the rule's message as {"error": ...}.
func IPFilter(rules gatekeep.IPRules) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, reason := rules.Allowed(c.ClientIP()); !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": reason})
			return
		}
		c.Next()
	}
}
