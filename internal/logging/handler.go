// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging builds the application's slog handlers: a text handler on
// stdout and an optional rotated file, secret redaction, and an audit handler
// that mirrors WARN and ERROR records into the encrypted events collection.
package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olegiv/firebook/internal/middleware"
	"github.com/olegiv/firebook/internal/model"
)

// EventWriter persists audit events.
type EventWriter interface {
	Record(ctx context.Context, e model.Event) error
}

// auditQueueSize bounds the events waiting to be written.
const auditQueueSize = 256

// sink is shared by an AuditHandler and every handler derived from it.
type sink struct {
	writer  EventWriter
	inner   slog.Handler
	queue   chan model.Event
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

func (s *sink) run() {
	defer close(s.done)
	for e := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.writer.Record(ctx, e); err != nil {
			// Report on the inner handler only; logging through the audit
			// handler would feed the failure back into the queue.
			r := slog.NewRecord(time.Now(), slog.LevelError, "failed to write audit event", 0)
			r.AddAttrs(slog.String("error", err.Error()))
			_ = s.inner.Handle(ctx, r)
		}
		cancel()
	}
}

func (s *sink) enqueue(e model.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
	}
}

// AuditHandler is a slog.Handler that wraps another handler and also writes
// records at or above its level to the event log. Writes happen on a
// background goroutine so request paths never wait on the events lock.
type AuditHandler struct {
	inner slog.Handler
	sink  *sink
	level slog.Level
	attrs []slog.Attr
	group string
}

// NewAuditHandler creates a handler forwarding WARN and above to w. The
// writer must not log through the returned handler. Call Close on shutdown.
func NewAuditHandler(inner slog.Handler, w EventWriter) *AuditHandler {
	return NewAuditHandlerWithLevel(inner, w, slog.LevelWarn)
}

// NewAuditHandlerWithLevel creates an AuditHandler with a custom minimum level.
func NewAuditHandlerWithLevel(inner slog.Handler, w EventWriter, level slog.Level) *AuditHandler {
	s := &sink{
		writer: w,
		inner:  inner,
		queue:  make(chan model.Event, auditQueueSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return &AuditHandler{inner: inner, sink: s, level: level}
}

// Enabled implements slog.Handler.
func (h *AuditHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level) || level >= h.level
}

// Handle implements slog.Handler.
func (h *AuditHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.inner.Enabled(ctx, r.Level) {
		err = h.inner.Handle(ctx, r)
	}
	if r.Level >= h.level {
		h.sink.enqueue(h.event(ctx, r))
	}
	return err
}

// WithAttrs implements slog.Handler.
func (h *AuditHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *AuditHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	clone.group = h.group + name + "."
	return &clone
}

func (h *AuditHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.group + a.Key, Value: a.Value}
	}
	return out
}

// Dropped returns the number of events discarded because the queue was full.
func (h *AuditHandler) Dropped() int64 { return h.sink.dropped.Load() }

// Close stops accepting events and waits until queued ones are written.
func (h *AuditHandler) Close() {
	h.sink.mu.Lock()
	if !h.sink.closed {
		h.sink.closed = true
		close(h.sink.queue)
	}
	h.sink.mu.Unlock()
	<-h.sink.done
}

func (h *AuditHandler) event(ctx context.Context, r slog.Record) model.Event {
	meta := make(map[string]string)
	category := ""
	add := func(a slog.Attr) {
		a = Redact(nil, a)
		if a.Key == "category" {
			category = a.Value.String()
			return
		}
		meta[a.Key] = a.Value.String()
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + a.Key
		}
		add(a)
		return true
	})
	if path := middleware.GetRequestPath(ctx); path != "" {
		meta["path"] = path
	}
	if category == "" {
		category = inferCategory(r.Message)
	}
	if len(meta) == 0 {
		meta = nil
	}

	return model.Event{
		Level:     eventLevel(r.Level),
		Category:  category,
		Message:   r.Message,
		Metadata:  meta,
		CreatedAt: r.Time.UTC(),
	}
}

// eventLevel converts a slog.Level to an event level.
func eventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

// inferCategory guesses a category from the message when none was given.
func inferCategory(msg string) string {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "login") || strings.Contains(msg, "logout") ||
		strings.Contains(msg, "password") || strings.Contains(msg, "remember-me"):
		return model.EventCategoryAuth
	case strings.Contains(msg, "denied") || strings.Contains(msg, "csrf") || strings.Contains(msg, "rate limit"):
		return model.EventCategoryAccess
	case strings.Contains(msg, "collection") || strings.Contains(msg, "decrypt") || strings.Contains(msg, "lock"):
		return model.EventCategoryStorage
	case strings.Contains(msg, "user"):
		return model.EventCategoryUser
	default:
		return model.EventCategorySystem
	}
}
