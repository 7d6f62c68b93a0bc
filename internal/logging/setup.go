// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Redacted replaces the value of sensitive attributes.
const Redacted = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"password":       true,
	"new_password":   true,
	"old_password":   true,
	"token":          true,
	"key":            true,
	"encryption_key": true,
	"cookie":         true,
	"hash":           true,
	"password_hash":  true,
	"validator":      true,
}

// Redact is a slog ReplaceAttr function that hides secrets. Group-qualified
// keys are matched on their last segment.
func Redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	if sensitiveKeys[key] {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// Options configures NewHandler.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Stdout     io.Writer
}

// ParseLevel maps debug, info, warn and error to a slog.Level. Unknown values
// yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewHandler returns a text handler writing to stdout and, when opts.File is
// set, to a size-rotated log file. The closer releases the file.
func NewHandler(opts Options) (slog.Handler, io.Closer) {
	var out io.Writer = os.Stdout
	if opts.Stdout != nil {
		out = opts.Stdout
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		}
		out = io.MultiWriter(out, lj)
		closer = lj
	}

	h := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: Redact,
	})
	return h, closer
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
