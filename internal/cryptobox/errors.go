// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cryptobox

import "errors"

// ErrCrypto is matched by every error returned from this package.
var ErrCrypto = errors.New("crypto error")

// Causes wrapped inside *Error.
var (
	ErrKeyLength = errors.New("invalid key length")
	ErrEncoding  = errors.New("invalid base64")
	ErrSeparator = errors.New("separator not found")
	ErrTruncated = errors.New("blob truncated")
	ErrPadding   = errors.New("invalid padding")
	ErrIntegrity = errors.New("integrity check failed")
)

// Error describes a failed crypto operation.
type Error struct {
	Op  string
	Err error
}

func newError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func (e *Error) Error() string {
	return "cryptobox " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrCrypto for any *Error.
func (e *Error) Is(target error) bool { return target == ErrCrypto }
