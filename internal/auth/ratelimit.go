package auth

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/config"
)

// RateLimiter throttles login failures per client IP and email.
//
// Failures are kept as timestamps; once MaxAttempts of them fall inside the
// trailing window the pair is refused until the lockout expires. It is an
// in-memory guard in front of the per-account lockout kept in the database.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*loginFailures
	cfg      RateLimitConfig
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type loginFailures struct {
	at          []time.Time
	lockedUntil time.Time
}

// RateLimitConfig contains configuration for the rate limiter.
type RateLimitConfig struct {
	MaxAttempts     int           // failures inside the window before lockout (default: 5)
	WindowDuration  time.Duration // trailing window (default: 15m)
	LockoutDuration time.Duration // default: 30m
	CleanupInterval time.Duration // default: 5m
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:     5,
		WindowDuration:  15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimitConfigFrom derives limiter settings from the auth config.
func RateLimitConfigFrom(cfg config.Auth) RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:     cfg.MaxLoginAttempts,
		WindowDuration:  cfg.RateLimitWindow,
		LockoutDuration: cfg.LockoutDuration,
	}
}

// NewRateLimiter starts a limiter and its cleanup goroutine. Call Stop to
// release it.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = defaults.WindowDuration
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = defaults.LockoutDuration
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}

	rl := &RateLimiter{
		clients: make(map[string]*loginFailures),
		cfg:     cfg,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine. It may be called more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func limiterKey(ip, email string) string {
	return ip + "|" + strings.ToLower(strings.TrimSpace(email))
}

// Allow reports whether a login from ip for email may proceed and, when it
// may not, how long the caller should wait.
func (rl *RateLimiter) Allow(ip, email string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.clients[limiterKey(ip, email)]
	if !ok {
		return true, 0
	}
	if now.Before(rec.lockedUntil) {
		return false, rec.lockedUntil.Sub(now)
	}
	return true, 0
}

// RecordFailure notes a failed login and reports whether the pair is now
// locked out, with the lockout length.
func (rl *RateLimiter) RecordFailure(ip, email string) (bool, time.Duration) {
	now := rl.now()
	key := limiterKey(ip, email)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.clients[key]
	if !ok {
		rec = &loginFailures{}
		rl.clients[key] = rec
	}
	rec.prune(now.Add(-rl.cfg.WindowDuration))
	rec.at = append(rec.at, now)

	if len(rec.at) >= rl.cfg.MaxAttempts {
		rec.lockedUntil = now.Add(rl.cfg.LockoutDuration)
		rec.at = nil
		return true, rl.cfg.LockoutDuration
	}
	return false, 0
}

// RecordSuccess forgets the failures of the pair.
func (rl *RateLimiter) RecordSuccess(ip, email string) {
	rl.mu.Lock()
	delete(rl.clients, limiterKey(ip, email))
	rl.mu.Unlock()
}

// prune drops failures at or before cutoff.
func (r *loginFailures) prune(cutoff time.Time) {
	i := 0
	for i < len(r.at) && !r.at[i].After(cutoff) {
		i++
	}
	r.at = r.at[i:]
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	now := rl.now()
	cutoff := now.Add(-rl.cfg.WindowDuration)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, rec := range rl.clients {
		rec.prune(cutoff)
		if len(rec.at) == 0 && !now.Before(rec.lockedUntil) {
			delete(rl.clients, key)
		}
	}
}

// RespondThrottled rejects a login with 429 and a Retry-After header.
func RespondThrottled(c *gin.Context, retryAfter time.Duration) {
	c.Header("Retry-After", RetryAfterSeconds(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": "too many login attempts, please try again later",
		"code":  "rate_limited",
	})
}

// RetryAfterSeconds formats a wait for the Retry-After header, rounding up.
func RetryAfterSeconds(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
