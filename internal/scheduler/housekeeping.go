// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"time"
)

// Purger removes expired records and reports how many it removed.
type Purger func(ctx context.Context) (int, error)

// Housekeeping lists the purge functions of the running services.
// Nil entries are skipped.
type Housekeeping struct {
	Sessions       Purger
	RememberTokens Purger
	PasswordResets Purger
	Events         func(ctx context.Context, maxAge time.Duration) (int, error)
	EventRetention time.Duration
	Spec           string
}

// DefaultEventRetention is how long audit events are kept.
const DefaultEventRetention = 90 * 24 * time.Hour

// RegisterHousekeeping adds one job per configured purger.
func (s *Scheduler) RegisterHousekeeping(h Housekeeping) error {
	spec := h.Spec
	if spec == "" {
		spec = "@hourly"
	}
	retention := h.EventRetention
	if retention <= 0 {
		retention = DefaultEventRetention
	}

	jobs := []Job{
		{Name: "purge-sessions", Run: h.Sessions},
		{Name: "purge-remember-tokens", Run: h.RememberTokens},
		{Name: "purge-password-resets", Run: h.PasswordResets},
	}
	if h.Events != nil {
		jobs = append(jobs, Job{Name: "purge-events", Run: func(ctx context.Context) (int, error) {
			return h.Events(ctx, retention)
		}})
	}

	for _, j := range jobs {
		if j.Run == nil {
			continue
		}
		j.Spec = spec
		if err := s.Add(j); err != nil {
			return err
		}
	}
	return nil
}
