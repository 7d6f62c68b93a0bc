// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// File permission defaults: only the serving account may read data files.
const (
	DirPerm  os.FileMode = 0o700
	FilePerm os.FileMode = 0o600
)

// FileOptions configures a FileBackend.
type FileOptions struct {
	// LockTimeout bounds the wait for a collection lock (default 5s).
	LockTimeout time.Duration
	// RetryDelay is the polling interval while waiting (default 10ms).
	RetryDelay time.Duration
	// Extension is appended to collection names (default ".json").
	Extension string
}

// DefaultFileOptions returns the defaults used when fields are left zero.
func DefaultFileOptions() FileOptions {
	return FileOptions{
		LockTimeout: 5 * time.Second,
		RetryDelay:  10 * time.Millisecond,
		Extension:   ".json",
	}
}

// FileBackend keeps one file per collection in a directory. Locks are flock(2)
// advisory locks on a sibling ".<name>.lock" file, so they serialize writers
// across processes as well as goroutines. Writes go to a temp file in the same
// directory that is renamed over the target.
type FileBackend struct {
	dir         string
	lockTimeout time.Duration
	retryDelay  time.Duration
	ext         string

	// beforeRename runs after the temp file is complete and before it is
	// renamed into place. Tests use it to simulate a crash.
	beforeRename func(tmpPath string) error
}

// NewFileBackend creates the data directory if needed.
func NewFileBackend(dir string, opts FileOptions) (*FileBackend, error) {
	def := DefaultFileOptions()
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = def.LockTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.Extension == "" {
		opts.Extension = def.Extension
	}

	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &FileBackend{
		dir:         dir,
		lockTimeout: opts.LockTimeout,
		retryDelay:  opts.RetryDelay,
		ext:         opts.Extension,
	}, nil
}

// Dir returns the data directory.
func (b *FileBackend) Dir() string { return b.dir }

// Path returns the file holding the named collection.
func (b *FileBackend) Path(name string) string {
	return filepath.Join(b.dir, name+b.ext)
}

func (b *FileBackend) lockPath(name string) string {
	return filepath.Join(b.dir, "."+name+".lock")
}

// Lock implements Backend.
func (b *FileBackend) Lock(ctx context.Context, name string, exclusive bool) (Unlocker, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.lockTimeout)
	defer cancel()

	// A fresh Flock per acquisition gives every holder its own open file
	// description, which flock(2) requires to exclude goroutines of one process.
	fl := flock.New(b.lockPath(name))

	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = fl.TryLockContext(ctx, b.retryDelay)
	} else {
		ok, err = fl.TryRLockContext(ctx, b.retryDelay)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, name)
		}
		return nil, fmt.Errorf("locking %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, name)
	}

	return UnlockFunc(fl.Unlock), nil
}

// Load implements Backend.
func (b *FileBackend) Load(name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// Save implements Backend.
func (b *FileBackend) Save(name string, blob []byte) (err error) {
	if err := ValidateName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(blob); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(FilePerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if b.beforeRename != nil {
		if err := b.beforeRename(tmpPath); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpPath, b.Path(name)); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	renamed = true

	syncDir(b.dir)
	return nil
}

// syncDir makes the rename durable. Errors are ignored: some filesystems do
// not support fsync on directories and the data is already in place.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
