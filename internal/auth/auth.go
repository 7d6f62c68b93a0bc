// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package auth authenticates users, authorizes them by role and location,
// runs the password-reset workflow and manages user accounts. Passwords are
// hashed with argon2id; legacy bcrypt hashes are accepted and upgraded.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/session"
	"github.com/olegiv/firebook/internal/store"
)

// DefaultResetTTL is the lifetime of a password-reset token.
const DefaultResetTTL = time.Hour

// LoginGuard throttles sign-in attempts per username.
type LoginGuard interface {
	IsAccountLocked(ctx context.Context, username string) (bool, time.Duration)
	RecordFailedAttempt(ctx context.Context, username string) (bool, time.Duration)
	RecordSuccessfulLogin(ctx context.Context, username string)
}

// Config holds service settings.
type Config struct {
	ResetTTL time.Duration
}

// Service is the authentication and authorization service.
// Every ctx passed in must carry a session loaded by the session manager.
type Service struct {
	store    *store.Store
	users    *store.Collection[model.User, *model.User]
	resets   *store.Collection[model.PasswordReset, *model.PasswordReset]
	sessions *scs.SessionManager
	remember *session.RememberMe
	guard    LoginGuard
	resetTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service.
func New(s *store.Store, sm *scs.SessionManager, rm *session.RememberMe, cfg Config, logger *slog.Logger) *Service {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    s,
		users:    store.NewCollection[model.User](s, store.Users),
		resets:   store.NewCollection[model.PasswordReset](s, store.PasswordResets),
		sessions: sm,
		remember: rm,
		resetTTL: cfg.ResetTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// SetLoginGuard installs login throttling.
func (s *Service) SetLoginGuard(g LoginGuard) { s.guard = g }

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.users.SetClock(now)
	s.resets.SetClock(now)
}

// Sessions returns the session manager.
func (s *Service) Sessions() *scs.SessionManager { return s.sessions }

// RememberMe returns the remember-me token manager.
func (s *Service) RememberMe() *session.RememberMe { return s.remember }

// LoginResult is returned by Login and TryAutoLogin.
type LoginResult struct {
	Identity *Identity
	User     model.PublicUser
	// Remember is the new remember-me token to set as a cookie, if any.
	Remember *session.Issued
}

func (s *Service) findByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.users.Find(ctx, func(u *model.User) bool { return u.Username == username })
}

// Login verifies credentials and establishes an authenticated session.
// Unknown usernames and wrong passwords return the same ErrAuthentication.
func (s *Service) Login(ctx context.Context, username, password string, rememberMe bool, userAgent string) (*LoginResult, error) {
	if s.guard != nil {
		if locked, remaining := s.guard.IsAccountLocked(ctx, username); locked {
			s.logger.Warn("login attempt on locked account", "category", model.EventCategoryAuth, "username", username)
			return nil, &LockoutError{RetryAfter: remaining}
		}
	}

	user, err := s.findByUsername(ctx, username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	valid := false
	if user != nil {
		valid, err = CheckPassword(password, user.PasswordHash)
		if err != nil {
			s.logger.Error("stored password hash unreadable", "category", model.EventCategoryAuth, "user_id", user.ID, "error", err)
			valid = false
		}
	} else {
		_, _ = CheckPassword(password, dummyHash())
	}

	if !valid {
		s.logger.Warn("login failed", "category", model.EventCategoryAuth, "username", username)
		if s.guard != nil {
			if locked, d := s.guard.RecordFailedAttempt(ctx, username); locked {
				return nil, &LockoutError{RetryAfter: d}
			}
		}
		return nil, ErrAuthentication
	}

	if s.guard != nil {
		s.guard.RecordSuccessfulLogin(ctx, username)
	}

	rehash := NeedsRehash(user.PasswordHash)
	var newHash string
	if rehash {
		if newHash, err = HashPassword(password); err != nil {
			s.logger.Error("failed to rehash password", "user_id", user.ID, "error", err)
			rehash = false
		}
	}
	now := s.now().UTC()
	updated, err := s.users.Update(ctx, user.ID, func(u *model.User) error {
		if rehash && u.PasswordHash == user.PasswordHash {
			u.PasswordHash = newHash
		}
		u.LastLoginAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rehash {
		s.logger.Info("password hash upgraded", "category", model.EventCategoryAuth, "user_id", user.ID)
	}

	return s.establish(ctx, updated, rememberMe, userAgent)
}

// establish renews the session token and stores the identity.
func (s *Service) establish(ctx context.Context, user *model.User, rememberMe bool, userAgent string) (*LoginResult, error) {
	if err := s.sessions.RenewToken(ctx); err != nil {
		return nil, fmt.Errorf("renewing session token: %w", err)
	}
	id := IdentityOf(user)
	putIdentity(ctx, s.sessions, id)

	res := &LoginResult{Identity: id, User: user.Public()}
	if rememberMe && s.remember != nil {
		issued, err := s.remember.Issue(ctx, user.ID, userAgent)
		if err != nil {
			return nil, err
		}
		res.Remember = issued
	}

	s.logger.Info("user logged in", "category", model.EventCategoryAuth, "user_id", user.ID, "username", user.Username)
	return res, nil
}

// Logout destroys the session and revokes the presented remember-me token.
func (s *Service) Logout(ctx context.Context, rememberValue string) error {
	if id, ok := readIdentity(ctx, s.sessions); ok {
		s.logger.Info("user logged out", "category", model.EventCategoryAuth, "user_id", id.UserID)
	}
	if rememberValue != "" && s.remember != nil {
		if err := s.remember.Revoke(ctx, rememberValue); err != nil {
			s.logger.Error("failed to revoke remember-me token", "error", err)
		}
	}
	return s.sessions.Destroy(ctx)
}

// TryAutoLogin establishes a session from a remember-me token and rotates the
// token. The returned Remember must replace the client's cookie.
func (s *Service) TryAutoLogin(ctx context.Context, rememberValue, userAgent string) (*LoginResult, error) {
	if s.remember == nil || rememberValue == "" {
		return nil, ErrInvalidToken
	}
	issued, err := s.remember.Rotate(ctx, rememberValue, userAgent)
	if err != nil {
		if errors.Is(err, session.ErrTokenInvalid) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return nil, err
	}

	user, err := s.users.Get(ctx, issued.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_, _ = s.remember.RevokeUser(ctx, issued.UserID)
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	res, err := s.establish(ctx, user, false, userAgent)
	if err != nil {
		return nil, err
	}
	res.Remember = issued
	return res, nil
}

// IsAuthenticated reports whether the session carries an identity.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	_, ok := readIdentity(ctx, s.sessions)
	return ok
}

// Current returns the session identity or ErrAuthentication.
func (s *Service) Current(ctx context.Context) (*Identity, error) {
	id, ok := readIdentity(ctx, s.sessions)
	if !ok {
		return nil, ErrAuthentication
	}
	return id, nil
}

// GetUser loads the signed-in user and refreshes the session identity when
// the role or location changed since login. A deleted user ends the session.
func (s *Service) GetUser(ctx context.Context) (*model.User, error) {
	id, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("session references deleted user", "category", model.EventCategoryAuth, "user_id", id.UserID)
		_ = s.sessions.Destroy(ctx)
		return nil, ErrAuthentication
	}
	if err != nil {
		return nil, err
	}
	if fresh := IdentityOf(user); *fresh != *id {
		putIdentity(ctx, s.sessions, fresh)
	}
	return user, nil
}

// RequireRole returns the identity if it holds at least min.
func (s *Service) RequireRole(ctx context.Context, min model.Role) (*Identity, error) {
	id, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !id.HasRole(min) {
		s.logger.Warn("access denied", "category", model.EventCategoryAccess,
			"user_id", id.UserID, "role", id.Role, "required", min)
		return nil, ErrAuthorization
	}
	return id, nil
}

// RequireLocationAccess returns the identity if it may access data of
// locationID.
func (s *Service) RequireLocationAccess(ctx context.Context, locationID string) (*Identity, error) {
	id, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !id.CanAccess(locationID) {
		s.logger.Warn("location access denied", "category", model.EventCategoryAccess,
			"user_id", id.UserID, "location_id", locationID)
		return nil, ErrAuthorization
	}
	return id, nil
}

// Health checks that the users collection decrypts with the configured key.
// An error matching cryptobox.ErrCrypto means nobody can sign in.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Check(ctx, store.Users)
}
