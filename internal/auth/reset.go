// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/store"
)

const resetTokenBytes = 32

// ResetToken is a freshly issued password-reset token. Token is the secret
// handed to the notifier; only its hash is stored.
type ResetToken struct {
	Token     string
	UserID    string
	Username  string
	Email     string
	ExpiresAt time.Time
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GeneratePasswordResetToken issues a reset token for username. It returns
// nil and no error when the user does not exist or has no email, so callers
// answer identically either way. Outstanding tokens of the user are
// invalidated.
func (s *Service) GeneratePasswordResetToken(ctx context.Context, username string) (*ResetToken, error) {
	user, err := s.findByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("password reset requested for unknown user", "category", model.EventCategoryAuth)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if user.Email == "" {
		s.logger.Info("password reset requested for user without email", "category", model.EventCategoryAuth, "user_id", user.ID)
		return nil, nil
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generating reset token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	now := s.now().UTC()
	doc := model.PasswordReset{
		ID:        store.NewID(),
		TokenHash: hashResetToken(token),
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.resetTTL),
	}

	err = s.resets.Mutate(ctx, func(docs []model.PasswordReset) ([]model.PasswordReset, error) {
		kept := docs[:0]
		for _, d := range docs {
			if d.UserID == user.ID || !d.Usable(now) {
				continue
			}
			kept = append(kept, d)
		}
		if err := s.resets.Prepare(&doc); err != nil {
			return nil, err
		}
		return append(kept, doc), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("password reset token issued", "category", model.EventCategoryAuth, "user_id", user.ID)
	return &ResetToken{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

// VerifyPasswordResetToken returns the username a token was issued for. It
// does not consume the token.
func (s *Service) VerifyPasswordResetToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	hash := hashResetToken(token)
	doc, err := s.resets.Find(ctx, func(p *model.PasswordReset) bool { return p.TokenHash == hash })
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	if !doc.Usable(s.now()) {
		return "", ErrInvalidToken
	}
	return doc.Username, nil
}

// ResetPassword consumes a token and sets a new password. The token is
// marked consumed under the collection lock before the user is rewritten, so
// concurrent or repeated calls succeed at most once.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidToken
	}
	if err := model.ValidatePassword(newPassword); err != nil {
		return err
	}
	newHash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	hash := hashResetToken(token)
	var userID string
	err = s.resets.Mutate(ctx, func(docs []model.PasswordReset) ([]model.PasswordReset, error) {
		now := s.now().UTC()
		for i := range docs {
			if docs[i].TokenHash != hash {
				continue
			}
			if !docs[i].Usable(now) {
				return nil, ErrInvalidToken
			}
			docs[i].Consumed = true
			docs[i].ConsumedAt = &now
			userID = docs[i].UserID
			return docs, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return err
	}

	// Resets and users are separate collections and are not written
	// atomically. From here on the token is spent: a failed user write
	// leaves the old password in place and needs a new reset link.
	_, err = s.users.Update(ctx, userID, func(u *model.User) error {
		u.PasswordHash = newHash
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		s.logger.Error("password reset token consumed but user not updated",
			"category", model.EventCategoryAuth, "user_id", userID, "error", err)
		return fmt.Errorf("%w: %w", ErrResetIncomplete, err)
	}

	if s.remember != nil {
		if _, err := s.remember.RevokeUser(ctx, userID); err != nil {
			s.logger.Error("failed to revoke remember-me tokens after reset", "user_id", userID, "error", err)
		}
	}
	s.logger.Info("password reset completed", "category", model.EventCategoryAuth, "user_id", userID)
	return nil
}

// PurgeExpiredResets removes consumed and expired reset tokens.
func (s *Service) PurgeExpiredResets(ctx context.Context) (int, error) {
	now := s.now()
	return s.resets.DeleteWhere(ctx, func(p *model.PasswordReset) bool { return !p.Usable(now) })
}
