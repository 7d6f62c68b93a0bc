// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/firebook/internal/store"
)

var (
	// ErrAuthentication is the single error for failed sign-in. It never
	// says whether the username exists.
	ErrAuthentication = errors.New("invalid username or password")

	// ErrAuthorization is returned when the role or location check fails.
	ErrAuthorization = errors.New("not authorized")

	// ErrDuplicate is returned when a username is already taken.
	ErrDuplicate = errors.New("username already exists")

	// ErrInvalidToken covers unknown, expired and consumed reset or
	// remember-me tokens. It matches store.ErrNotFound.
	ErrInvalidToken = fmt.Errorf("invalid or expired token: %w", store.ErrNotFound)

	// ErrResetIncomplete is returned when a reset token was consumed but the
	// new password could not be stored. The user must request a new link.
	ErrResetIncomplete = errors.New("reset token consumed but password not changed")

	// ErrTooManyAttempts is matched by *LockoutError.
	ErrTooManyAttempts = errors.New("too many failed login attempts")
)

// LockoutError reports a temporarily blocked login.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("%s, retry in %s", ErrTooManyAttempts, e.RetryAfter.Round(time.Second))
}

// Is reports ErrTooManyAttempts for any *LockoutError.
func (e *LockoutError) Is(target error) bool { return target == ErrTooManyAttempts }
