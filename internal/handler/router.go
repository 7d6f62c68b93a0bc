// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/firebook/internal/middleware"
	"github.com/olegiv/firebook/internal/model"
)

// LoginLimiter throttles login-style POSTs per client.
type LoginLimiter interface {
	Middleware() func(http.Handler) http.Handler
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	h := New(d)
	sm := d.Auth.Sessions()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(d.IsDev)))
	r.Use(middleware.RequestPath)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusNotFound, "not_found", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})

	r.Group(func(r chi.Router) {
		r.Use(sm.LoadAndSave)
		r.Get("/health", h.health.Health)
	})
	r.Get("/health/live", h.health.Liveness)

	r.Route("/api", func(r chi.Router) {
		if d.RateLimit > 0 {
			r.Use(middleware.NewGlobalRateLimiter(d.RateLimit, d.RateBurst).Middleware())
		}
		r.Use(sm.LoadAndSave)
		if len(d.CSRFKey) > 0 {
			r.Use(middleware.CSRF(middleware.DefaultCSRFConfig(d.CSRFKey, d.IsDev, d.TrustedOrigins...)))
		}
		r.Use(middleware.AutoLogin(d.Auth))

		r.Group(func(r chi.Router) {
			if d.Guard != nil {
				r.Use(d.Guard.Middleware())
			}
			r.Post("/login", h.Login)
			r.Post("/password/forgot", h.ForgotPassword)
			r.Post("/password/verify", h.VerifyResetToken)
			r.Post("/password/reset", h.ResetPassword)
		})
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(d.Auth))

			r.Get("/me", h.Me)
			r.Post("/password/change", h.ChangePassword)

			r.Route("/users", func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleLocationAdmin))
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
				r.Get("/{id}", h.GetUser)
				r.Patch("/{id}", h.UpdateUser)
				r.Delete("/{id}", h.DeleteUser)
			})

			r.With(middleware.RequireRole(model.RoleGlobalAdmin)).Get("/events", h.ListEvents)

			r.Route("/{collection}", func(r chi.Router) {
				r.Get("/", h.ListRecords)
				r.Post("/", h.CreateRecord)
				r.Get("/{id}", h.GetRecord)
				r.Patch("/{id}", h.UpdateRecord)
				r.Put("/{id}", h.UpdateRecord)
				r.Delete("/{id}", h.DeleteRecord)
			})
		})
	})

	return r
}
