// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store provides encrypted document collections over a pluggable
// Backend. Each collection is one blob holding the whole JSON array of its
// documents, encrypted with a cryptobox.Box.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/firebook/internal/cryptobox"
)

// Collection names.
const (
	Users          = "users"
	Locations      = "locations"
	Personnel      = "personnel"
	Vehicles       = "vehicles"
	Attendance     = "attendance"
	Missions       = "missions"
	PhoneNumbers   = "phone_numbers"
	Settings       = "settings"
	Sessions       = "sessions"
	RememberTokens = "remember_tokens"
	PasswordResets = "password_resets"
	Events         = "events"
)

// Store binds a Backend to the process-wide encryption key.
type Store struct {
	backend Backend
	box     *cryptobox.Box
	logger  *slog.Logger
}

// New creates a Store.
func New(backend Backend, box *cryptobox.Box, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, box: box, logger: logger}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// withLock runs fn while holding the named collection's lock. The lock is
// released on every exit path. Once acquired, fn runs to completion regardless
// of ctx.
func (s *Store) withLock(ctx context.Context, name string, exclusive bool, fn func() error) error {
	unlock, err := s.backend.Lock(ctx, name, exclusive)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			s.logger.Warn("collection lock timeout", "collection", name, "exclusive", exclusive)
		}
		return err
	}
	defer func() {
		if uerr := unlock.Unlock(); uerr != nil {
			s.logger.Error("failed to release collection lock", "collection", name, "error", uerr)
		}
	}()
	return fn()
}

// read returns the decrypted contents of a collection, or nil for a collection
// that was never written. Callers hold the lock.
func (s *Store) read(name string) ([]byte, error) {
	blob, err := s.backend.Load(name)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, nil
	}
	plain, err := s.box.Decrypt(blob)
	if err != nil {
		s.logger.Error("collection failed to decrypt", "collection", name, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, name, err)
	}
	return plain, nil
}

// write encrypts and saves plaintext. Callers hold the exclusive lock.
func (s *Store) write(name string, plain []byte) error {
	blob, err := s.box.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", name, err)
	}
	if err := s.backend.Save(name, blob); err != nil {
		return fmt.Errorf("saving %s: %w", name, err)
	}
	return nil
}

// Check loads and decrypts a collection without decoding its documents.
// A nil error means the collection is readable with the configured key.
func (s *Store) Check(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return s.withLock(ctx, name, false, func() error {
		_, err := s.read(name)
		return err
	})
}
