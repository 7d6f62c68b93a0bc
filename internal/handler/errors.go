// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/firebook/internal/auth"
	"github.com/olegiv/firebook/internal/cryptobox"
	"github.com/olegiv/firebook/internal/middleware"
	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/service"
	"github.com/olegiv/firebook/internal/store"
)

// writeError maps a service error to a status code and writes it. This is
// the only place errors become HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var lockout *auth.LockoutError
	var verr *model.ValidationError

	switch {
	case errors.As(err, &lockout):
		secs := int(math.Ceil(lockout.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		middleware.WriteAPIError(w, http.StatusTooManyRequests, "too_many_attempts",
			"Too many failed attempts, try again later", nil)
	case errors.Is(err, auth.ErrTooManyAttempts):
		middleware.WriteAPIError(w, http.StatusTooManyRequests, "too_many_attempts",
			"Too many failed attempts, try again later", nil)
	case errors.Is(err, auth.ErrAuthentication):
		middleware.WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid username or password", nil)
	case errors.Is(err, auth.ErrAuthorization):
		middleware.WriteAPIError(w, http.StatusForbidden, "forbidden", "Insufficient permissions", nil)
	case errors.Is(err, auth.ErrResetIncomplete):
		middleware.WriteAPIError(w, http.StatusServiceUnavailable, "reset_incomplete",
			"Password not changed, request a new reset link", nil)
	case errors.Is(err, auth.ErrInvalidToken):
		middleware.WriteAPIError(w, http.StatusBadRequest, "invalid_token", "Invalid or expired token", nil)
	case errors.Is(err, auth.ErrDuplicate), errors.Is(err, service.ErrDuplicateKey), errors.Is(err, store.ErrDuplicateID):
		middleware.WriteAPIError(w, http.StatusConflict, "conflict", "Already exists", nil)
	case errors.As(err, &verr):
		middleware.WriteAPIError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed",
			map[string]string{verr.Field: verr.Reason})
	case errors.Is(err, model.ErrValidation):
		middleware.WriteAPIError(w, http.StatusUnprocessableEntity, "validation_error", err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteAPIError(w, http.StatusNotFound, "not_found", "Not found", nil)
	case errors.Is(err, store.ErrLockTimeout):
		w.Header().Set("Retry-After", "1")
		middleware.WriteAPIError(w, http.StatusServiceUnavailable, "busy", "Storage busy, try again", nil)
	case errors.Is(err, cryptobox.ErrCrypto), errors.Is(err, store.ErrCorrupt):
		slog.ErrorContext(r.Context(), "collection unreadable",
			"category", model.EventCategoryStorage, "method", r.Method, "error", err)
		middleware.WriteAPIError(w, http.StatusInternalServerError, "storage_error", "Stored data could not be read", nil)
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "route", routePattern(r), "error", err)
		middleware.WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}

// routePattern returns the matched route ("/api/{collection}/{id}") rather
// than the raw path, which may carry identifiers.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
