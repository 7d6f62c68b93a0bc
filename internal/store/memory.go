// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryBackend keeps blobs in process memory. Shared locks are taken
// exclusively. It is meant for tests and single-process tools.
type MemoryBackend struct {
	mu          sync.Mutex
	blobs       map[string][]byte
	locks       map[string]chan struct{}
	lockTimeout time.Duration
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend(lockTimeout time.Duration) *MemoryBackend {
	if lockTimeout <= 0 {
		lockTimeout = DefaultFileOptions().LockTimeout
	}
	return &MemoryBackend{
		blobs:       make(map[string][]byte),
		locks:       make(map[string]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

func (m *MemoryBackend) sem(name string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[name] = ch
	}
	return ch
}

// Lock implements Backend.
func (m *MemoryBackend) Lock(ctx context.Context, name string, _ bool) (Unlocker, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	sem := m.sem(name)

	timer := time.NewTimer(m.lockTimeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return UnlockFunc(func() error {
			<-sem
			return nil
		}), nil
	case <-timer.C:
	case <-ctx.Done():
	}
	return nil, fmt.Errorf("%w: %s", ErrLockTimeout, name)
}

// Load implements Backend.
func (m *MemoryBackend) Load(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[name]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), blob...), nil
}

// Save implements Backend.
func (m *MemoryBackend) Save(name string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = append([]byte(nil), blob...)
	return nil
}
