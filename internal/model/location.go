// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Location is a fire station. Its email receives location notifications.
type Location struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *Location) GetID() string   { return l.ID }
func (l *Location) SetID(id string) { l.ID = id }

// GetLocationID scopes a location by its own id.
func (l *Location) GetLocationID() string { return l.ID }

// SetLocationID is a no-op: a location cannot be moved.
func (l *Location) SetLocationID(string) {}

func (l *Location) GetCreatedAt() time.Time  { return l.CreatedAt }
func (l *Location) SetCreatedAt(t time.Time) { l.CreatedAt = t }

func (l *Location) Stamp(now time.Time) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
}

func (l *Location) Normalize() {
	cleanAll(&l.Name, &l.Address, &l.Email)
}

func (l *Location) Validate() error {
	return firstErr(
		required("name", l.Name),
		maxLen("name", l.Name, 200),
		validateEmail("email", l.Email),
	)
}
