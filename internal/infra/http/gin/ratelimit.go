package ginserver

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	gin "github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles the public API per client IP.
type RateLimiter struct {
	PerMinute int
	Burst     int
	Logger    *slog.Logger
	Now       func() time.Time

	mu       sync.Mutex
	limiters map[string]*clientLimiter
	swept    time.Time
}

func NewRateLimiter(perMinute int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{PerMinute: perMinute, Burst: perMinute, Logger: logger}
}

func (l *RateLimiter) Handle(c *gin.Context) {
	if l.PerMinute <= 0 {
		c.Next()
		return
	}
	ip := c.ClientIP()
	if !l.limiterFor(ip).Allow() {
		if l.Logger != nil {
			l.Logger.Warn("rate limit exceeded", "client_ip", ip)
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again later"})
		return
	}
	c.Next()
}

func (l *RateLimiter) limiterFor(ip string) *rate.Limiter {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limiters == nil {
		l.limiters = make(map[string]*clientLimiter)
	}
	if now.Sub(l.swept) > limiterIdleTTL {
		for key, entry := range l.limiters {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(l.limiters, key)
			}
		}
		l.swept = now
	}
	entry, ok := l.limiters[ip]
	if !ok {
		burst := l.Burst
		if burst <= 0 {
			burst = 1
		}
		entry = &clientLimiter{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.PerMinute)), burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (l *RateLimiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}
