package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket per client address.
type RateLimitConfig struct {
	RequestsPerSecond int
	BurstSize         int
	CleanupInterval   time.Duration
}

// DefaultRateLimit covers the upgrade and health routes of the relay.
var DefaultRateLimit = RateLimitConfig{
	RequestsPerSecond: 30,
	BurstSize:         50,
	CleanupInterval:   5 * time.Minute,
}

// IPRateLimiter hands out one limiter per client address.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	config   RateLimitConfig

	stop     chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter starts a limiter set. Stop ends its cleanup goroutine.
func NewIPRateLimiter(config RateLimitConfig) *IPRateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimit.CleanupInterval
	}
	l := &IPRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
		stop:     make(chan struct{}),
	}
	go l.cleanupRoutine()
	return l
}

// Limiter returns the limiter for ip, creating it on first use.
func (l *IPRateLimiter) Limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.BurstSize)
		l.limiters[ip] = limiter
	}
	return limiter
}

func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *IPRateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *IPRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep forgets limiters whose bucket has refilled, i.e. idle clients.
func (l *IPRateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, limiter := range l.limiters {
		if limiter.Tokens() >= float64(l.config.BurstSize) {
			delete(l.limiters, ip)
		}
	}
}

// clientIP prefers proxy headers, then the socket address.
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if real := strings.TrimSpace(c.GetHeader("X-Real-IP")); real != "" && net.ParseIP(real) != nil {
		return real
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

// RateLimit rejects requests over the caller's budget with 429.
func RateLimit(limiter *IPRateLimiter, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		ip := clientIP(c)
		if !limiter.Limiter(ip).Allow() {
			log.Debug("rate limited", zap.String("ip", ip), zap.String("path", c.FullPath()))
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
