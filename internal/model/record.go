// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// textPolicy strips all markup from free-text input.
var textPolicy = bluemonday.StrictPolicy()

// CleanText removes markup and surrounding whitespace from user input.
// The result is plain text; entities are decoded so "A & B" survives intact.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// cleanAll applies CleanText to each field in place.
func cleanAll(fields ...*string) {
	for _, f := range fields {
		*f = CleanText(*f)
	}
}

// cleanList cleans each entry and drops empty ones.
func cleanList(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = CleanText(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Record holds the fields shared by every location-scoped document.
// An empty LocationID means the record is visible to global users only.
type Record struct {
	ID         string    `json:"id"`
	LocationID string    `json:"location_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GetID returns the record id.
func (r *Record) GetID() string { return r.ID }

// SetID sets the record id.
func (r *Record) SetID(id string) { r.ID = id }

// GetLocationID returns the owning location.
func (r *Record) GetLocationID() string { return r.LocationID }

// SetLocationID assigns the owning location.
func (r *Record) SetLocationID(id string) { r.LocationID = id }

// GetCreatedAt returns the creation time.
func (r *Record) GetCreatedAt() time.Time { return r.CreatedAt }

// SetCreatedAt sets the creation time.
func (r *Record) SetCreatedAt(t time.Time) { r.CreatedAt = t }

// Stamp records creation and modification times.
func (r *Record) Stamp(now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}
