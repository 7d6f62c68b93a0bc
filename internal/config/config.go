// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/olegiv/firebook/internal/cryptobox"
)

// Session store backends.
const (
	SessionStoreFile  = "file"
	SessionStoreRedis = "redis"
)

// knownWeakKeys contains example keys that must be rejected in production.
var knownWeakKeys = []string{
	strings.Repeat("0", 64),
	strings.Repeat("00112233445566778899aabbccddeeff", 2),
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	EncryptionKey string        `env:"FIREBOOK_ENCRYPTION_KEY,required"`
	DataDir       string        `env:"FIREBOOK_DATA_DIR" envDefault:"./data"`
	LockTimeout   time.Duration `env:"FIREBOOK_LOCK_TIMEOUT" envDefault:"5s"`

	// LegacyPlaintext accepts collection files written without the integrity
	// tag. The next write of each collection adds the tag.
	LegacyPlaintext bool `env:"FIREBOOK_LEGACY_PLAINTEXT" envDefault:"false"`

	// Sessions and tokens, in seconds.
	SessionLifetime    int    `env:"FIREBOOK_SESSION_LIFETIME" envDefault:"86400"`
	SessionIdleTimeout int    `env:"FIREBOOK_SESSION_IDLE_TIMEOUT" envDefault:"3600"` // 0 disables
	RememberMeLifetime int    `env:"FIREBOOK_REMEMBER_ME_LIFETIME" envDefault:"2592000"`
	PasswordResetTTL   int    `env:"FIREBOOK_PASSWORD_RESET_TTL" envDefault:"3600"`
	SessionStore       string `env:"FIREBOOK_SESSION_STORE" envDefault:"file"`

	// Redis is shared by sessions and login protection counters.
	RedisURL     string `env:"FIREBOOK_REDIS_URL"`
	CachePrefix  string `env:"FIREBOOK_CACHE_PREFIX" envDefault:"firebook:"`
	CacheMaxSize int    `env:"FIREBOOK_CACHE_MAX_SIZE" envDefault:"10000"`

	ServerHost     string   `env:"FIREBOOK_SERVER_HOST" envDefault:"localhost"`
	ServerPort     int      `env:"FIREBOOK_SERVER_PORT" envDefault:"8080"`
	Env            string   `env:"FIREBOOK_ENV" envDefault:"development"`
	TrustedOrigins []string `env:"FIREBOOK_TRUSTED_ORIGINS" envSeparator:","`
	APIRateLimit   float64  `env:"FIREBOOK_API_RATE_LIMIT" envDefault:"20"` // requests/second per IP, 0 disables
	APIRateBurst   int      `env:"FIREBOOK_API_RATE_BURST" envDefault:"40"`

	LogLevel      string `env:"FIREBOOK_LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"FIREBOOK_LOG_FILE"`
	LogMaxSizeMB  int    `env:"FIREBOOK_LOG_MAX_SIZE_MB" envDefault:"50"`
	LogMaxBackups int    `env:"FIREBOOK_LOG_MAX_BACKUPS" envDefault:"5"`

	// First-run seed; skipped when the password is empty.
	AdminUsername string `env:"FIREBOOK_ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"FIREBOOK_ADMIN_PASSWORD"`
	AdminEmail    string `env:"FIREBOOK_ADMIN_EMAIL"`
}

// CryptoOptions returns the cryptobox options selected by the config.
func (c Config) CryptoOptions() []cryptobox.Option {
	if c.LegacyPlaintext {
		return []cryptobox.Option{cryptobox.WithLegacyPlaintext()}
	}
	return nil
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedis returns true if Redis is configured.
func (c Config) UseRedis() bool {
	return c.RedisURL != ""
}

// Key decodes the encryption key.
func (c Config) Key() ([]byte, error) {
	return hex.DecodeString(c.EncryptionKey)
}

// SessionLifetimeDuration returns the absolute session lifetime.
func (c Config) SessionLifetimeDuration() time.Duration {
	return time.Duration(c.SessionLifetime) * time.Second
}

// SessionIdleDuration returns the idle timeout, zero when disabled.
func (c Config) SessionIdleDuration() time.Duration {
	return time.Duration(c.SessionIdleTimeout) * time.Second
}

// RememberMeDuration returns the remember-me token lifetime.
func (c Config) RememberMeDuration() time.Duration {
	return time.Duration(c.RememberMeLifetime) * time.Second
}

// PasswordResetDuration returns the reset token TTL.
func (c Config) PasswordResetDuration() time.Duration {
	return time.Duration(c.PasswordResetTTL) * time.Second
}

// String omits secrets.
func (c Config) String() string {
	return fmt.Sprintf("env=%s addr=%s data=%s sessions=%s redis=%t",
		c.Env, c.ServerAddr(), c.DataDir, c.SessionStore, c.UseRedis())
}

// Load parses environment variables and returns a validated Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	key, err := hex.DecodeString(c.EncryptionKey)
	switch {
	case len(c.EncryptionKey) != 64:
		errs = append(errs, fmt.Errorf("FIREBOOK_ENCRYPTION_KEY must be 64 hex characters, got %d; "+
			"generate one with: firebook -genkey", len(c.EncryptionKey)))
	case err != nil || len(key) != 32:
		errs = append(errs, errors.New("FIREBOOK_ENCRYPTION_KEY is not valid hex"))
	case !c.IsDevelopment() && isWeakKey(c.EncryptionKey):
		errs = append(errs, errors.New("FIREBOOK_ENCRYPTION_KEY is a known example value and must not be used"))
	}

	for _, v := range []struct {
		name  string
		value int
	}{
		{"FIREBOOK_SESSION_LIFETIME", c.SessionLifetime},
		{"FIREBOOK_REMEMBER_ME_LIFETIME", c.RememberMeLifetime},
		{"FIREBOOK_PASSWORD_RESET_TTL", c.PasswordResetTTL},
		{"FIREBOOK_SERVER_PORT", c.ServerPort},
	} {
		if v.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", v.name))
		}
	}
	if c.SessionIdleTimeout < 0 {
		errs = append(errs, errors.New("FIREBOOK_SESSION_IDLE_TIMEOUT must not be negative"))
	}
	if c.APIRateLimit < 0 || (c.APIRateLimit > 0 && c.APIRateBurst <= 0) {
		errs = append(errs, errors.New("FIREBOOK_API_RATE_LIMIT must not be negative and needs a positive FIREBOOK_API_RATE_BURST"))
	}
	if c.LockTimeout <= 0 {
		errs = append(errs, errors.New("FIREBOOK_LOCK_TIMEOUT must be positive"))
	}

	switch c.SessionStore {
	case SessionStoreFile:
	case SessionStoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("FIREBOOK_REDIS_URL is required when FIREBOOK_SESSION_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("FIREBOOK_SESSION_STORE must be %q or %q, got %q",
			SessionStoreFile, SessionStoreRedis, c.SessionStore))
	}

	return errors.Join(errs...)
}

func isWeakKey(k string) bool {
	k = strings.ToLower(k)
	for _, weak := range knownWeakKeys {
		if k == weak {
			return true
		}
	}
	return false
}
