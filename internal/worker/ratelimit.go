package worker

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const cleanupIdleDuration = 10 * time.Minute

// identityWindow holds the recent-call timestamps for one caller identity
// within a sliding one-minute window.
type identityWindow struct {
	mu        sync.Mutex
	calls     []time.Time
	lastSeen  time.Time
}

// RateLimiter enforces a per-identity sliding-window request budget,
// mirroring the timestamp-filter approach used to rate-limit order
// submission, generalised from a single global window to one window per
// caller identity and from a fixed per-minute cap to a configurable one.
type RateLimiter struct {
	perMinute int
	mu        sync.Mutex
	windows   map[string]*identityWindow
}

// NewRateLimiter builds a limiter allowing perMinute calls per identity
// per rolling 60-second window. perMinute <= 0 disables the limiter.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{
		perMinute: perMinute,
		windows:   make(map[string]*identityWindow),
	}
	if perMinute > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

func (rl *RateLimiter) allow(identity string) bool {
	if rl.perMinute <= 0 {
		return true
	}

	rl.mu.Lock()
	w, ok := rl.windows[identity]
	if !ok {
		w = &identityWindow{}
		rl.windows[identity] = w
	}
	rl.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	recent := w.calls[:0]
	for _, ts := range w.calls {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)
	w.calls = recent
	w.lastSeen = now

	return len(recent) <= rl.perMinute
}

// Middleware enforces the limit keyed on the caller's remote address.
// The health endpoint is expected to be registered outside this
// middleware's route group so that liveness checks are never throttled.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupIdleDuration)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-cleanupIdleDuration)
		rl.mu.Lock()
		for id, w := range rl.windows {
			w.mu.Lock()
			idle := w.lastSeen.Before(cutoff)
			w.mu.Unlock()
			if idle {
				delete(rl.windows, id)
			}
		}
		rl.mu.Unlock()
	}
}
