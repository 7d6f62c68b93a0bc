// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// RememberToken is a stored remember-me credential. The id is the public
// selector; only a SHA-256 of the secret validator is kept.
type RememberToken struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ValidatorHash string    `json:"validator_hash"`
	Device        string    `json:"device,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (t *RememberToken) GetID() string   { return t.ID }
func (t *RememberToken) SetID(id string) { t.ID = id }

// Expired reports whether the token is past its expiry at now.
func (t *RememberToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// PasswordReset is an issued password-reset token. Only a SHA-256 of the
// token is stored.
type PasswordReset struct {
	ID         string     `json:"id"`
	TokenHash  string     `json:"token_hash"`
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Consumed   bool       `json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

func (p *PasswordReset) GetID() string   { return p.ID }
func (p *PasswordReset) SetID(id string) { p.ID = id }

// Usable reports whether the token can still be verified or consumed.
func (p *PasswordReset) Usable(now time.Time) bool {
	return !p.Consumed && now.Before(p.ExpiresAt)
}

// SessionRecord is a server-side session. The id is a SHA-256 of the session
// token; Data is the encoded session state.
type SessionRecord struct {
	ID     string    `json:"id"`
	Data   []byte    `json:"data"`
	Expiry time.Time `json:"expiry"`
}

func (s *SessionRecord) GetID() string   { return s.ID }
func (s *SessionRecord) SetID(id string) { s.ID = id }
