package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Security adds standard response security headers.
func Security() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Header("Server", "")
		c.Next()
	}
}

// RateLimit is a simple in-memory per-IP rate limiter, bounding how fast
// an operator console can hammer the form-POST endpoint. It is not a
// substitute for the UDP path's best-effort policy — HTTP is a distinct
// inbound surface with its own client pool.
func RateLimit() gin.HandlerFunc {
	var mu sync.Mutex
	clients := make(map[string][]time.Time)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		now := time.Now()

		mu.Lock()
		var recent []time.Time
		for _, t := range clients[clientIP] {
			if now.Sub(t) < time.Minute {
				recent = append(recent, t)
			}
		}
		if len(recent) >= 100 {
			mu.Unlock()
			c.JSON(429, gin.H{
				"error":   "rate limit exceeded",
				"message": "too many requests, try again later",
			})
			c.Abort()
			return
		}
		clients[clientIP] = append(recent, now)
		mu.Unlock()

		c.Next()
	}
}
