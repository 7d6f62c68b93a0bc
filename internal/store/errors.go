// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import "errors"

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("not found")

	// ErrLockTimeout is returned when a collection lock cannot be acquired
	// within the configured wait.
	ErrLockTimeout = errors.New("collection lock timeout")

	// ErrCorrupt is returned when a collection file cannot be decrypted or
	// decoded. It wraps the underlying cryptobox error where there is one.
	ErrCorrupt = errors.New("collection unreadable")

	// ErrUnchanged may be returned from a Mutate callback to finish without
	// rewriting the collection.
	ErrUnchanged = errors.New("collection unchanged")

	// ErrDuplicateID is returned by Create when the document carries an id
	// that is already present.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrInvalidName is returned for collection names that are not a plain
	// lowercase identifier.
	ErrInvalidName = errors.New("invalid collection name")
)
