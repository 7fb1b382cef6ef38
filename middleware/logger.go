package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/krishna-kudari/gatekeep/analytics"
	"github.com/krishna-kudari/gatekeep/logging"
)

// LoggerConfig wires the request logger to its sinks. Buffer is required;
// File is optional.
type LoggerConfig struct {
	Buffer  *analytics.Buffer
	File    *logging.FileLogger
	Service string
}

// RequestLogger records every completed request: one analytics record, an
// optional JSONL file line, and a zerolog event. It runs first in the
// pipeline and fires on response completion, so rejections from later
// stages are logged too, in response-completion order per connection.
func RequestLogger(cfg LoggerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		id := GetIdentity(c)
		status := c.Writer.Status()
		ms := float64(elapsed.Microseconds()) / 1000

		cfg.Buffer.Add(analytics.Record{
			Timestamp:     time.Now(),
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
			StatusCode:    status,
			ResponseTime:  ms,
			ClientID:      id.ClientID,
			IP:            c.ClientIP(),
			APIKey:        id.Credential,
			Authenticated: id.Authenticated,
		})

		if cfg.File != nil {
			cfg.File.Log(logging.Request{
				Method:        c.Request.Method,
				Path:          c.Request.URL.Path,
				StatusCode:    status,
				ResponseTime:  ms,
				ClientID:      id.ClientID,
				IP:            c.ClientIP(),
				Authenticated: id.Authenticated,
			})
		}

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("elapsed", elapsed).
			Str("client_id", id.ClientID).
			Msg("Request completed")
	}
}
