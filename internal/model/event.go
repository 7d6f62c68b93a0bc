// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth    = "auth"
	EventCategoryUser    = "user"
	EventCategoryStorage = "storage"
	EventCategoryAccess  = "access"
	EventCategorySystem  = "system"
)

// Event is an audit log entry.
type Event struct {
	ID        string            `json:"id"`
	Level     string            `json:"level"`
	Category  string            `json:"category"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (e *Event) GetID() string   { return e.ID }
func (e *Event) SetID(id string) { e.ID = id }
