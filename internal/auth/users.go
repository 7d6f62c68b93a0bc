// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/store"
)

// UserInput holds the fields of a new user.
type UserInput struct {
	Username   string     `json:"username"`
	Password   string     `json:"password"`
	Role       model.Role `json:"role"`
	LocationID string     `json:"location_id"`
	Email      string     `json:"email"`
}

// UserUpdate holds the fields to change. Nil fields are left alone.
type UserUpdate struct {
	Username   *string     `json:"username"`
	Password   *string     `json:"password"`
	Role       *model.Role `json:"role"`
	LocationID *string     `json:"location_id"`
	Email      *string     `json:"email"`
}

// uniqueUsername rejects a username held by another user.
func uniqueUsername(candidate *model.User, docs []model.User) error {
	for i := range docs {
		if docs[i].Username == candidate.Username && docs[i].ID != candidate.ID {
			return fmt.Errorf("%w: %s", ErrDuplicate, candidate.Username)
		}
	}
	return nil
}

// canManage reports whether actor may own a user with the given role and
// location. Only global admins hand out global_admin or global scope; scoped
// admins stay inside their location.
func canManage(actor *Identity, role model.Role, locationID string) bool {
	if !actor.HasRole(model.RoleLocationAdmin) {
		return false
	}
	if actor.Role == model.RoleGlobalAdmin {
		return true
	}
	if role == model.RoleGlobalAdmin || locationID == "" {
		return false
	}
	return actor.LocationID == "" || actor.LocationID == locationID
}

func (s *Service) denied(actor *Identity, action, target string) error {
	s.logger.Warn("user management denied", "category", model.EventCategoryAccess,
		"user_id", actor.UserID, "action", action, "target", target)
	return ErrAuthorization
}

// ListUsers returns the users visible to the caller.
func (s *Service) ListUsers(ctx context.Context) ([]model.PublicUser, error) {
	actor, err := s.RequireRole(ctx, model.RoleLocationAdmin)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, func(u *model.User) bool { return actor.CanAccess(u.LocationID) })
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicUser, len(users))
	for i := range users {
		out[i] = users[i].Public()
	}
	return out, nil
}

// GetUserByID returns one user visible to the caller.
func (s *Service) GetUserByID(ctx context.Context, id string) (*model.PublicUser, error) {
	actor, err := s.RequireRole(ctx, model.RoleLocationAdmin)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(user.LocationID) {
		return nil, s.denied(actor, "get", id)
	}
	pub := user.Public()
	return &pub, nil
}

// CreateUser adds a user. Usernames are unique.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (*model.PublicUser, error) {
	actor, err := s.RequireRole(ctx, model.RoleLocationAdmin)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, in.Role, in.LocationID) {
		return nil, s.denied(actor, "create", in.Username)
	}
	if err := model.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, model.User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		LocationID:   in.LocationID,
		Email:        in.Email,
	}, uniqueUsername)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", "category", model.EventCategoryUser,
		"user_id", user.ID, "username", user.Username, "by", actor.UserID)
	pub := user.Public()
	return &pub, nil
}

// UpdateUser changes a user. A password change revokes the user's
// remember-me tokens.
func (s *Service) UpdateUser(ctx context.Context, id string, in UserUpdate) (*model.PublicUser, error) {
	actor, err := s.RequireRole(ctx, model.RoleLocationAdmin)
	if err != nil {
		return nil, err
	}

	var hash string
	if in.Password != nil {
		if err := model.ValidatePassword(*in.Password); err != nil {
			return nil, err
		}
		if hash, err = HashPassword(*in.Password); err != nil {
			return nil, err
		}
	}

	user, err := s.users.Update(ctx, id, func(u *model.User) error {
		if !canManage(actor, u.Role, u.LocationID) {
			return s.denied(actor, "update", id)
		}
		if in.Username != nil {
			u.Username = *in.Username
		}
		if in.Role != nil {
			u.Role = *in.Role
		}
		if in.LocationID != nil {
			u.LocationID = *in.LocationID
		}
		if in.Email != nil {
			u.Email = *in.Email
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		if !canManage(actor, u.Role, u.LocationID) {
			return s.denied(actor, "update", id)
		}
		return nil
	}, uniqueUsername)
	if err != nil {
		return nil, err
	}

	if hash != "" && s.remember != nil {
		if _, err := s.remember.RevokeUser(ctx, id); err != nil {
			s.logger.Error("failed to revoke remember-me tokens", "user_id", id, "error", err)
		}
	}
	s.logger.Info("user updated", "category", model.EventCategoryUser, "user_id", id, "by", actor.UserID)
	pub := user.Public()
	return &pub, nil
}

// DeleteUser removes a user together with their remember-me and reset
// tokens. The token cleanup is not atomic with the user removal.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	actor, err := s.RequireRole(ctx, model.RoleLocationAdmin)
	if err != nil {
		return err
	}
	if actor.UserID == id {
		return s.denied(actor, "delete self", id)
	}

	err = s.users.Delete(ctx, id, func(u *model.User) error {
		if !canManage(actor, u.Role, u.LocationID) {
			return s.denied(actor, "delete", id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.remember != nil {
		if _, err := s.remember.RevokeUser(ctx, id); err != nil {
			s.logger.Error("failed to revoke remember-me tokens", "user_id", id, "error", err)
		}
	}
	if _, err := s.resets.DeleteWhere(ctx, func(p *model.PasswordReset) bool { return p.UserID == id }); err != nil {
		s.logger.Error("failed to remove reset tokens", "user_id", id, "error", err)
	}
	s.logger.Info("user deleted", "category", model.EventCategoryUser, "user_id", id, "by", actor.UserID)
	return nil
}

// ChangePassword changes the caller's own password after verifying the
// current one. Remember-me tokens are revoked and the session token renewed.
func (s *Service) ChangePassword(ctx context.Context, current, next string) error {
	id, err := s.Current(ctx)
	if err != nil {
		return err
	}
	user, err := s.users.Get(ctx, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrAuthentication
	}
	if err != nil {
		return err
	}
	if ok, _ := CheckPassword(current, user.PasswordHash); !ok {
		s.logger.Warn("password change with wrong current password", "category", model.EventCategoryAuth, "user_id", id.UserID)
		return ErrAuthentication
	}
	if err := model.ValidatePassword(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	if _, err := s.users.Update(ctx, id.UserID, func(u *model.User) error {
		u.PasswordHash = hash
		return nil
	}); err != nil {
		return err
	}
	if s.remember != nil {
		if _, err := s.remember.RevokeUser(ctx, id.UserID); err != nil {
			s.logger.Error("failed to revoke remember-me tokens", "user_id", id.UserID, "error", err)
		}
	}
	s.logger.Info("password changed", "category", model.EventCategoryAuth, "user_id", id.UserID)
	return s.sessions.RenewToken(ctx)
}

// SeedAdmin creates a global admin when the users collection is empty.
// It reports whether a user was created.
func (s *Service) SeedAdmin(ctx context.Context, username, password, email string) (bool, error) {
	if password == "" {
		return false, nil
	}
	if err := model.ValidatePassword(password); err != nil {
		return false, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}

	created := false
	err = s.users.Mutate(ctx, func(docs []model.User) ([]model.User, error) {
		if len(docs) > 0 {
			return nil, store.ErrUnchanged
		}
		admin := model.User{
			ID:           store.NewID(),
			Username:     username,
			PasswordHash: hash,
			Role:         model.RoleGlobalAdmin,
			Email:        email,
		}
		if err := s.users.Prepare(&admin); err != nil {
			return nil, err
		}
		created = true
		return append(docs, admin), nil
	})
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Info("initial admin user created", "category", model.EventCategoryUser, "username", username)
	}
	return created, nil
}
