package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/krishna-kudari/gatekeep/device"
)

func (g *Gateway) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, g.buffer.Snapshot(g.engine.Hits()))
}

func (g *Gateway) handleConfig(c *gin.Context) {
	stats := g.buffer.Snapshot(g.engine.Hits())
	c.JSON(http.StatusOK, gin.H{
		"rateLimits":    g.policy.RateLimits,
		"ipRules":       g.policy.IPRules,
		"activeKeys":    g.creds.ActiveCount(),
		"activeKeyUses": stats.ActiveKeyUses,
	})
}

func (g *Gateway) handleCreateKey(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
		Tier string `json:"tier"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	cred, err := g.creds.Create(body.Name, body.Tier)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create key"})
		return
	}
	c.JSON(http.StatusCreated, cred)
}

func (g *Gateway) handleRevokeKey(c *gin.Context) {
	id := c.Param("id")
	if !g.creds.Revoke(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (g *Gateway) handleLogs(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	logs := g.buffer.Newest()
	if offset > len(logs) {
		offset = len(logs)
	}
	end := offset + limit
	if end > len(logs) {
		end = len(logs)
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":   logs[offset:end],
		"limit":  limit,
		"offset": offset,
	})
}

func (g *Gateway) handleRegisterDevice(c *gin.Context) {
	var body struct {
		BrowserID string `json:"browserId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.BrowserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "browserId is required"})
		return
	}

	entry, err := g.devices.Register(body.BrowserID, c.ClientIP(), c.Request.UserAgent())
	switch {
	case errors.Is(err, device.ErrInvalidBrowserID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, device.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "retryAfter": 60})
	case errors.Is(err, device.ErrDeviceLimit):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"browserId":    entry.BrowserID,
			"sharedSecret": entry.SharedSecret,
			"expiresAt":    entry.ExpiresAt,
		})
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
