// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"sort"
	"time"

	"github.com/olegiv/firebook/internal/auth"
	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/store"
)

// Event log limits.
const (
	DefaultEventLimit = 100
	MaxEventLimit     = 1000
	MaxEvents         = 10000
)

// EventService reads and writes the audit event log.
type EventService struct {
	events *store.Collection[model.Event, *model.Event]
	now    func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(s *store.Store) *EventService {
	return &EventService{
		events: store.NewCollection[model.Event](s, store.Events),
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (s *EventService) SetClock(now func() time.Time) { s.now = now }

// Record appends an event. The oldest events are dropped beyond MaxEvents.
func (s *EventService) Record(ctx context.Context, e model.Event) error {
	if e.ID == "" {
		e.ID = store.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	return s.events.Mutate(ctx, func(docs []model.Event) ([]model.Event, error) {
		docs = append(docs, e)
		if over := len(docs) - MaxEvents; over > 0 {
			docs = docs[over:]
		}
		return docs, nil
	})
}

// EventFilter narrows List. Empty fields match everything.
type EventFilter struct {
	Level    string
	Category string
	Limit    int
}

// List returns the newest events first. Only global admins read the log.
func (s *EventService) List(ctx context.Context, actor *auth.Identity, f EventFilter) ([]model.Event, error) {
	if actor == nil {
		return nil, auth.ErrAuthentication
	}
	if actor.Role != model.RoleGlobalAdmin {
		return nil, auth.ErrAuthorization
	}
	if f.Limit <= 0 {
		f.Limit = DefaultEventLimit
	}
	if f.Limit > MaxEventLimit {
		f.Limit = MaxEventLimit
	}

	events, err := s.events.List(ctx, func(e *model.Event) bool {
		return (f.Level == "" || e.Level == f.Level) && (f.Category == "" || e.Category == f.Category)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	if len(events) > f.Limit {
		events = events[:f.Limit]
	}
	return events, nil
}

// Purge removes events older than maxAge.
func (s *EventService) Purge(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)
	return s.events.DeleteWhere(ctx, func(e *model.Event) bool { return e.CreatedAt.Before(cutoff) })
}
