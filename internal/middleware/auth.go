// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request context handling.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/firebook/internal/auth"
	"github.com/olegiv/firebook/internal/model"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// Context keys for request data.
const (
	ContextKeyIdentity    ContextKey = "identity"
	ContextKeyRequestPath ContextKey = "request_path"
)

// AutoLogin signs in a visitor without a session but with a valid
// remember-me cookie, and replaces the cookie with the rotated token. An
// invalid cookie is cleared. Must run inside the session LoadAndSave
// middleware.
func AutoLogin(svc *auth.Service) func(http.Handler) http.Handler {
	rm := svc.RememberMe()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rm == nil || svc.IsAuthenticated(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			value := rm.ReadCookie(r)
			if value == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := svc.TryAutoLogin(r.Context(), value, r.UserAgent())
			switch {
			case err == nil:
				rm.WriteCookie(w, res.Remember)
			case errors.Is(err, auth.ErrInvalidToken):
				slog.Info("remember-me cookie rejected", "category", model.EventCategoryAuth, "ip", clientIP(r))
				rm.ClearCookie(w)
			default:
				slog.Error("auto-login failed", "error", err)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth loads the signed-in user and stores the identity in the request
// context. Unauthenticated requests get 401.
func RequireAuth(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := svc.GetUser(r.Context())
			if errors.Is(err, auth.ErrAuthentication) {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
				return
			}
			if err != nil {
				slog.Error("loading session user failed", "error", err)
				WriteAPIError(w, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable", nil)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, auth.IdentityOf(user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the identity stored by RequireAuth, or nil.
func GetIdentity(r *http.Request) *auth.Identity {
	id, _ := r.Context().Value(ContextKeyIdentity).(*auth.Identity)
	return id
}

// RequireRole creates middleware that requires a minimum role.
// Roles are hierarchical: global_admin > location_admin > operator.
// Must run after RequireAuth.
func RequireRole(min model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := GetIdentity(r)
			if id == nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
				return
			}
			if !id.HasRole(min) {
				slog.Warn("access denied",
					"category", model.EventCategoryAccess,
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"user_id", id.UserID,
					"user_role", id.Role,
					"required_role", min,
				)
				WriteAPIError(w, http.StatusForbidden, "forbidden", "Insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestPath creates middleware that stores the request path in the context.
// This is used by the logging handler to include the URL in audit events.
func RequestPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ContextKeyRequestPath, r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestPath retrieves the request path from the context.
func GetRequestPath(ctx context.Context) string {
	path, _ := ctx.Value(ContextKeyRequestPath).(string)
	return path
}
