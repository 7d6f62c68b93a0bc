// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"regexp"
)

// Backend persists opaque collection blobs. Implementations own locking and
// crash safety; the Store above them owns encryption and decoding. Swapping the
// filesystem for an embedded key-value engine means writing another Backend.
type Backend interface {
	// Lock acquires the collection lock, shared or exclusive, waiting at most
	// the backend's configured timeout. The wait also ends when ctx is done.
	// Failure to acquire returns ErrLockTimeout.
	Lock(ctx context.Context, name string, exclusive bool) (Unlocker, error)

	// Load returns the stored blob, or nil when the collection has never been
	// written. Callers must hold the lock.
	Load(name string) ([]byte, error)

	// Save replaces the stored blob atomically. Callers must hold an
	// exclusive lock.
	Save(name string, blob []byte) error
}

// Unlocker releases a held lock.
type Unlocker interface {
	Unlock() error
}

// UnlockFunc adapts a function to Unlocker.
type UnlockFunc func() error

// Unlock calls f.
func (f UnlockFunc) Unlock() error { return f() }

var validName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateName rejects names that could escape the data directory.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
