// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for the firebook project.
package testutil

import (
	"crypto/rand"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/olegiv/firebook/internal/cryptobox"
	"github.com/olegiv/firebook/internal/store"
)

// TestLogger creates a test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent creates a logger that discards everything.
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestKey returns a random 32-byte encryption key.
func TestKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, cryptobox.KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return key
}

// TestBox returns a Box with a random key.
func TestBox(t *testing.T) *cryptobox.Box {
	t.Helper()
	box, err := cryptobox.New(TestKey(t))
	if err != nil {
		t.Fatalf("cryptobox.New: %v", err)
	}
	return box
}

// TestStore creates a file-backed store in a temporary directory.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	backend, err := store.NewFileBackend(t.TempDir(), store.FileOptions{LockTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	return store.New(backend, TestBox(t), TestLoggerSilent())
}

// TestMemoryStore creates an in-memory store.
// Useful for tests that don't need the filesystem.
func TestMemoryStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(store.NewMemoryBackend(2*time.Second), TestBox(t), TestLoggerSilent())
}
