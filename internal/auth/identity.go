// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/session"
)

// Identity is the authenticated principal held in the session.
// An empty LocationID means global scope.
type Identity struct {
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	Role       model.Role `json:"role"`
	LocationID string     `json:"location_id,omitempty"`
}

// IdentityOf returns the identity of a stored user.
func IdentityOf(u *model.User) *Identity {
	return &Identity{
		UserID:     u.ID,
		Username:   u.Username,
		Role:       u.Role,
		LocationID: u.LocationID,
	}
}

// IsGlobal reports whether the identity sees every location.
func (id *Identity) IsGlobal() bool {
	return id.Role == model.RoleGlobalAdmin || id.LocationID == ""
}

// CanAccess reports whether the identity may touch data of locationID.
// Records without a location are visible to global identities only.
func (id *Identity) CanAccess(locationID string) bool {
	return id.IsGlobal() || locationID == id.LocationID
}

// Level is the identity's effective rank. An operator without a location
// ranks with location admins; a scoped operator stays below them.
func (id *Identity) Level() int {
	if id.Role == model.RoleOperator && id.LocationID == "" {
		return model.RoleLocationAdmin.Level()
	}
	return id.Role.Level()
}

// HasRole reports whether the identity holds at least min.
func (id *Identity) HasRole(min model.Role) bool {
	return id.Role.Valid() && id.Level() >= min.Level()
}

func putIdentity(ctx context.Context, sm *scs.SessionManager, id *Identity) {
	sm.Put(ctx, session.KeyUserID, id.UserID)
	sm.Put(ctx, session.KeyUsername, id.Username)
	sm.Put(ctx, session.KeyRole, string(id.Role))
	sm.Put(ctx, session.KeyLocationID, id.LocationID)
}

func readIdentity(ctx context.Context, sm *scs.SessionManager) (*Identity, bool) {
	userID := sm.GetString(ctx, session.KeyUserID)
	if userID == "" {
		return nil, false
	}
	return &Identity{
		UserID:     userID,
		Username:   sm.GetString(ctx, session.KeyUsername),
		Role:       model.Role(sm.GetString(ctx, session.KeyRole)),
		LocationID: sm.GetString(ctx, session.KeyLocationID),
	}, true
}
