// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Role is a user's access role.
type Role string

// User roles.
const (
	RoleGlobalAdmin   Role = "global_admin"
	RoleLocationAdmin Role = "location_admin"
	RoleOperator      Role = "operator"
)

// Level returns a numeric level for role hierarchy.
// Higher level = more permissions. Unknown roles have level 0.
func (r Role) Level() int {
	switch r {
	case RoleGlobalAdmin:
		return 3
	case RoleLocationAdmin:
		return 2
	case RoleOperator:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Level() > 0
}

// AtLeast reports whether r grants at least the permissions of min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r.Level() >= min.Level()
}
