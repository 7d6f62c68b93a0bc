// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the documents stored in each collection, the role
// hierarchy and input validation.
package model

import (
	"net/mail"
	"strings"
	"time"
)

// Username and password limits.
const (
	MaxUsernameLength = 64
	MinPasswordLength = 8
	MaxPasswordLength = 256
)

// User is an account that can sign in.
// An empty LocationID means global scope.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	Role         Role       `json:"role"`
	LocationID   string     `json:"location_id,omitempty"`
	Email        string     `json:"email,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

func (u *User) GetID() string         { return u.ID }
func (u *User) SetID(id string)       { u.ID = id }
func (u *User) GetLocationID() string { return u.LocationID }

func (u *User) GetCreatedAt() time.Time  { return u.CreatedAt }
func (u *User) SetCreatedAt(t time.Time) { u.CreatedAt = t }

// Stamp records creation and modification times.
func (u *User) Stamp(now time.Time) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}

// Normalize trims input. Usernames are case-sensitive and kept as typed.
func (u *User) Normalize() {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	u.LocationID = strings.TrimSpace(u.LocationID)
}

// Validate checks required fields.
func (u *User) Validate() error {
	return firstErr(
		ValidateUsername(u.Username),
		required("password_hash", u.PasswordHash),
		validateRole(u.Role),
		validateEmail("email", u.Email),
	)
}

// IsGlobal reports whether the user is not bound to a single location.
func (u *User) IsGlobal() bool {
	return u.Role == RoleGlobalAdmin || u.LocationID == ""
}

// Public returns the user without credential material.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		Role:        u.Role,
		LocationID:  u.LocationID,
		Email:       u.Email,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// PublicUser is the representation of a user handed to callers.
type PublicUser struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Role        Role       `json:"role"`
	LocationID  string     `json:"location_id,omitempty"`
	Email       string     `json:"email,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// ValidateUsername rejects empty, overlong or whitespace-containing names.
func ValidateUsername(name string) error {
	if err := firstErr(required("username", name), maxLen("username", name, MaxUsernameLength)); err != nil {
		return err
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return invalid("username", "must not contain whitespace")
	}
	return nil
}

// ValidatePassword enforces the password length policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalid("password", "is too short")
	}
	if len(password) > MaxPasswordLength {
		return invalid("password", "is too long")
	}
	return nil
}

func validateRole(r Role) error {
	if !r.Valid() {
		return invalid("role", "is unknown")
	}
	return nil
}

func validateEmail(field, email string) error {
	if email == "" {
		return nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid(field, "is not a valid address")
	}
	return nil
}
