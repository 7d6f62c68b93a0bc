// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session manages server-side sessions and remember-me tokens.
package session

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

// Session keys holding the authenticated identity.
const (
	KeyUserID     = "user_id"
	KeyUsername   = "username"
	KeyRole       = "role"
	KeyLocationID = "location_id"
)

// Cookie names.
const (
	CookieName       = "firebook_session"
	SecureCookieName = "__Host-session"
)

// Config holds session settings.
type Config struct {
	// Lifetime is the absolute session lifetime.
	Lifetime time.Duration
	// IdleTimeout expires sessions without activity. Zero disables it.
	IdleTimeout time.Duration
	// IsDev disables Secure cookies for plain-HTTP development.
	IsDev bool
}

// DefaultConfig returns the default session settings.
func DefaultConfig(isDev bool) Config {
	return Config{
		Lifetime:    24 * time.Hour,
		IdleTimeout: time.Hour,
		IsDev:       isDev,
	}
}

// New creates a new session manager backed by store.
func New(store scs.Store, cfg Config) *scs.SessionManager {
	sm := scs.New()
	sm.Store = store

	if cfg.Lifetime > 0 {
		sm.Lifetime = cfg.Lifetime
	}
	sm.IdleTimeout = cfg.IdleTimeout

	sm.Cookie.Name = CookieName
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !cfg.IsDev // Secure cookies in production only
	if !cfg.IsDev {
		sm.Cookie.Name = SecureCookieName
	}

	return sm
}
