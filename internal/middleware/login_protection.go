// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/olegiv/firebook/internal/auth"
	"github.com/olegiv/firebook/internal/cache"
)

// LoginProtection provides combined IP rate limiting and account lockout
// protection. Failure counters live in a cache.Cache so several worker
// processes share them when the cache is Redis.
type LoginProtection struct {
	// IP-based rate limiting (per process)
	ipLimiters *limiterCache[string]

	// Account-based lockout tracking
	store cache.Cache

	maxFailedAttempts int           // Lock account after this many failures
	lockoutDuration   time.Duration // Base lockout duration (doubles with each lockout)
	attemptWindow     time.Duration // Window to count failed attempts
	now               func() time.Time
}

// LoginProtectionConfig holds configuration for login protection.
type LoginProtectionConfig struct {
	// IPRateLimit is requests per second per IP (default: 0.5 = 1 request per 2 seconds)
	IPRateLimit float64
	// IPBurst is the maximum burst size for IP rate limiting (default: 5)
	IPBurst int
	// MaxFailedAttempts before account lockout (default: 5)
	MaxFailedAttempts int
	// LockoutDuration is base lockout time, doubles with each lockout (default: 15 minutes)
	LockoutDuration time.Duration
	// AttemptWindow is the time window for counting failed attempts (default: 15 minutes)
	AttemptWindow time.Duration
}

// DefaultLoginProtectionConfig returns sensible defaults.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

const maxLockout = 24 * time.Hour

// NewLoginProtection creates a new login protection instance.
func NewLoginProtection(c cache.Cache, cfg LoginProtectionConfig) *LoginProtection {
	def := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = def.IPRateLimit
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = def.IPBurst
	}
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = def.AttemptWindow
	}

	return &LoginProtection{
		ipLimiters:        newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		store:             c,
		maxFailedAttempts: cfg.MaxFailedAttempts,
		lockoutDuration:   cfg.LockoutDuration,
		attemptWindow:     cfg.AttemptWindow,
		now:               time.Now,
	}
}

// accountKey hashes the username so arbitrary input yields a bounded key.
func accountKey(kind, username string) string {
	sum := sha256.Sum256([]byte(username))
	return "login:" + kind + ":" + hex.EncodeToString(sum[:16])
}

// CheckIPRateLimit checks if the IP is rate limited.
// Returns true if the request should be allowed.
func (lp *LoginProtection) CheckIPRateLimit(ip string) bool {
	return lp.ipLimiters.get(ip).Allow()
}

// IsAccountLocked checks if an account is currently locked.
// Returns (locked, remainingTime). Cache failures leave the account unlocked.
func (lp *LoginProtection) IsAccountLocked(ctx context.Context, username string) (bool, time.Duration) {
	b, err := lp.store.Get(ctx, accountKey("lock", username))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Error("login protection cache read failed", "error", err)
		}
		return false, 0
	}
	until, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return false, 0
	}
	if remaining := until.Sub(lp.now()); remaining > 0 {
		return true, remaining
	}
	return false, 0
}

// RecordFailedAttempt records a failed login attempt.
// Returns (locked, lockDuration) if the account is now locked.
func (lp *LoginProtection) RecordFailedAttempt(ctx context.Context, username string) (bool, time.Duration) {
	count, err := lp.store.Incr(ctx, accountKey("fail", username), lp.attemptWindow)
	if err != nil {
		slog.Error("login protection cache write failed", "error", err)
		return false, 0
	}
	slog.Debug("login attempt recorded", "count", count)
	if count < int64(lp.maxFailedAttempts) {
		return false, 0
	}

	lockouts, err := lp.store.Incr(ctx, accountKey("lockouts", username), maxLockout)
	if err != nil {
		lockouts = 1
	}
	// Exponential backoff, capped at 24 hours
	lockDuration := lp.lockoutDuration
	for i := int64(1); i < lockouts; i++ {
		lockDuration *= 2
		if lockDuration >= maxLockout {
			lockDuration = maxLockout
			break
		}
	}

	until := lp.now().Add(lockDuration)
	if err := lp.store.Set(ctx, accountKey("lock", username), []byte(until.Format(time.RFC3339Nano)), lockDuration); err != nil {
		slog.Error("login protection cache write failed", "error", err)
	}
	_ = lp.store.Delete(ctx, accountKey("fail", username))

	slog.Warn("account locked due to failed attempts",
		"category", "auth",
		"username", username,
		"lockouts", lockouts,
		"duration", lockDuration,
	)
	return true, lockDuration
}

// RecordSuccessfulLogin clears failed attempt tracking for an account.
func (lp *LoginProtection) RecordSuccessfulLogin(ctx context.Context, username string) {
	if err := lp.store.Delete(ctx,
		accountKey("fail", username),
		accountKey("lockouts", username),
		accountKey("lock", username),
	); err != nil {
		slog.Error("login protection cache delete failed", "error", err)
	}
}

// GetRemainingAttempts returns the number of remaining attempts before lockout.
func (lp *LoginProtection) GetRemainingAttempts(ctx context.Context, username string) int {
	b, err := lp.store.Get(ctx, accountKey("fail", username))
	if err != nil {
		return lp.maxFailedAttempts
	}
	count, _ := strconv.Atoi(string(b))
	if remaining := lp.maxFailedAttempts - count; remaining > 0 {
		return remaining
	}
	return 0
}

// Middleware returns HTTP middleware for IP rate limiting on login.
// This should be applied to the login and password-reset POST routes.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			if !lp.CheckIPRateLimit(ip) {
				slog.Warn("login rate limit exceeded", "category", "auth", "ip", ip)
				WriteAPIError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again later.", nil)
				return
			}
			if lp.ipLimiters.clearIfExceeds(10000) {
				slog.Info("cleared IP rate limiters due to size")
			}

			next.ServeHTTP(w, r)
		})
	}
}

var _ auth.LoginGuard = (*LoginProtection)(nil)
