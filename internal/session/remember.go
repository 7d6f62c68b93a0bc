// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mileusna/useragent"

	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/store"
)

// Remember-me cookie names.
const (
	RememberCookieName       = "firebook_remember"
	SecureRememberCookieName = "__Host-remember"
)

const (
	selectorBytes  = 12
	validatorBytes = 32
)

var (
	// ErrTokenInvalid is returned for unknown, malformed or expired
	// remember-me tokens. It matches store.ErrNotFound.
	ErrTokenInvalid = fmt.Errorf("remember-me token invalid: %w", store.ErrNotFound)

	// ErrTokenReused is returned when a known selector arrives with the wrong
	// validator. All of the user's tokens are revoked. It matches
	// ErrTokenInvalid.
	ErrTokenReused = fmt.Errorf("remember-me token reused: %w", ErrTokenInvalid)
)

// Issued is a freshly issued remember-me token. Value goes into the cookie
// and is never stored.
type Issued struct {
	Value     string
	UserID    string
	ExpiresAt time.Time
}

// RememberMe issues, verifies and rotates long-lived login tokens.
type RememberMe struct {
	tokens   *store.Collection[model.RememberToken, *model.RememberToken]
	lifetime time.Duration
	isDev    bool
	logger   *slog.Logger
	now      func() time.Time
}

// NewRememberMe creates a token manager on top of s.
func NewRememberMe(s *store.Store, lifetime time.Duration, isDev bool, logger *slog.Logger) *RememberMe {
	if lifetime <= 0 {
		lifetime = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RememberMe{
		tokens:   store.NewCollection[model.RememberToken](s, store.RememberTokens),
		lifetime: lifetime,
		isDev:    isDev,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (m *RememberMe) SetClock(now func() time.Time) {
	m.now = now
	m.tokens.SetClock(now)
}

// Lifetime returns the token lifetime.
func (m *RememberMe) Lifetime() time.Duration { return m.lifetime }

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashValidator(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// splitValue parses "selector:validator".
func splitValue(value string) (selector, validator string, ok bool) {
	selector, validator, ok = strings.Cut(value, ":")
	if !ok || selector == "" || validator == "" {
		return "", "", false
	}
	return selector, validator, true
}

// DeviceLabel summarises a User-Agent header, e.g. "Firefox on Linux".
func DeviceLabel(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	ua := useragent.Parse(userAgent)
	switch {
	case ua.Name != "" && ua.OS != "":
		return ua.Name + " on " + ua.OS
	case ua.Name != "":
		return ua.Name
	default:
		return ua.OS
	}
}

func (m *RememberMe) newToken(userID, userAgent string) (model.RememberToken, Issued, error) {
	selector, err := randomToken(selectorBytes)
	if err != nil {
		return model.RememberToken{}, Issued{}, err
	}
	validator, err := randomToken(validatorBytes)
	if err != nil {
		return model.RememberToken{}, Issued{}, err
	}
	now := m.now().UTC()
	tok := model.RememberToken{
		ID:            selector,
		UserID:        userID,
		ValidatorHash: hashValidator(validator),
		Device:        DeviceLabel(userAgent),
		CreatedAt:     now,
		ExpiresAt:     now.Add(m.lifetime),
	}
	return tok, Issued{Value: selector + ":" + validator, UserID: userID, ExpiresAt: tok.ExpiresAt}, nil
}

// Issue creates a new token for userID.
func (m *RememberMe) Issue(ctx context.Context, userID, userAgent string) (*Issued, error) {
	tok, issued, err := m.newToken(userID, userAgent)
	if err != nil {
		return nil, fmt.Errorf("generating remember-me token: %w", err)
	}
	if _, err := m.tokens.Create(ctx, tok); err != nil {
		return nil, err
	}
	return &issued, nil
}

// Rotate verifies value and replaces it with a new token for the same user
// under one collection lock. The old token can never be used again.
func (m *RememberMe) Rotate(ctx context.Context, value, userAgent string) (*Issued, error) {
	selector, validator, ok := splitValue(value)
	if !ok {
		return nil, ErrTokenInvalid
	}

	var issued Issued
	var verifyErr error
	err := m.tokens.Mutate(ctx, func(docs []model.RememberToken) ([]model.RememberToken, error) {
		now := m.now()
		idx := -1
		for i := range docs {
			if docs[i].ID == selector {
				idx = i
				break
			}
		}
		if idx < 0 {
			verifyErr = ErrTokenInvalid
			return nil, store.ErrUnchanged
		}

		found := docs[idx]
		if found.Expired(now) {
			verifyErr = ErrTokenInvalid
			return append(docs[:idx], docs[idx+1:]...), nil
		}

		if subtle.ConstantTimeCompare([]byte(found.ValidatorHash), []byte(hashValidator(validator))) != 1 {
			verifyErr = ErrTokenReused
			kept := docs[:0]
			for _, d := range docs {
				if d.UserID != found.UserID {
					kept = append(kept, d)
				}
			}
			return kept, nil
		}

		next, iss, err := m.newToken(found.UserID, userAgent)
		if err != nil {
			return nil, err
		}
		issued = iss
		docs[idx] = next
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	if verifyErr != nil {
		if errors.Is(verifyErr, ErrTokenReused) {
			m.logger.Warn("remember-me token reuse detected, revoked all tokens for user",
				"category", model.EventCategoryAuth, "selector", selector)
		}
		return nil, verifyErr
	}
	return &issued, nil
}

// Revoke deletes the token identified by value, if it exists.
func (m *RememberMe) Revoke(ctx context.Context, value string) error {
	selector, _, ok := splitValue(value)
	if !ok {
		return nil
	}
	_, err := m.tokens.DeleteWhere(ctx, func(t *model.RememberToken) bool { return t.ID == selector })
	return err
}

// RevokeUser deletes every token of a user.
func (m *RememberMe) RevokeUser(ctx context.Context, userID string) (int, error) {
	return m.tokens.DeleteWhere(ctx, func(t *model.RememberToken) bool { return t.UserID == userID })
}

// ListUser returns a user's tokens, without validator material.
func (m *RememberMe) ListUser(ctx context.Context, userID string) ([]model.RememberToken, error) {
	tokens, err := m.tokens.List(ctx, func(t *model.RememberToken) bool { return t.UserID == userID })
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		tokens[i].ValidatorHash = ""
	}
	return tokens, nil
}

// Purge removes expired tokens.
func (m *RememberMe) Purge(ctx context.Context) (int, error) {
	now := m.now()
	return m.tokens.DeleteWhere(ctx, func(t *model.RememberToken) bool { return t.Expired(now) })
}

// CookieName returns the cookie name for the current mode.
func (m *RememberMe) CookieName() string {
	if m.isDev {
		return RememberCookieName
	}
	return SecureRememberCookieName
}

// ReadCookie returns the remember-me cookie value, or "".
func (m *RememberMe) ReadCookie(r *http.Request) string {
	c, err := r.Cookie(m.CookieName())
	if err != nil {
		return ""
	}
	return c.Value
}

// WriteCookie sets the remember-me cookie.
func (m *RememberMe) WriteCookie(w http.ResponseWriter, issued *Issued) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.CookieName(),
		Value:    issued.Value,
		Path:     "/",
		Expires:  issued.ExpiresAt,
		MaxAge:   int(time.Until(issued.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   !m.isDev,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the remember-me cookie.
func (m *RememberMe) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.CookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !m.isDev,
		SameSite: http.SameSiteLaxMode,
	})
}
