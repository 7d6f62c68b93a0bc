// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the JSON HTTP API over the auth core and the
// collection services.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/olegiv/firebook/internal/auth"
	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/service"
	"github.com/olegiv/firebook/internal/version"
)

// ResetNotifier delivers password reset tokens to users.
type ResetNotifier interface {
	NotifyReset(ctx context.Context, t *auth.ResetToken) error
}

// LogNotifier records that a reset was issued without revealing the token.
// It stands in until a mail transport is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// NotifyReset implements ResetNotifier.
func (n LogNotifier) NotifyReset(_ context.Context, t *auth.ResetToken) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("password reset issued", "category", model.EventCategoryAuth,
		"user_id", t.UserID, "expires_at", t.ExpiresAt.Format(time.RFC3339))
	return nil
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	auth     *auth.Service
	services *service.Services
	notifier ResetNotifier
	health   *HealthHandler
	logger   *slog.Logger
}

// Deps are the collaborators NewRouter wires together.
type Deps struct {
	Auth     *auth.Service
	Services *service.Services
	Notifier ResetNotifier
	Guard    LoginLimiter
	DataDir  string
	Version  version.Info
	Logger   *slog.Logger

	IsDev          bool
	CSRFKey        []byte
	TrustedOrigins []string

	// RateLimit is requests per second per client on /api; zero disables it.
	RateLimit float64
	RateBurst int
}

// New creates the API handler.
func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Handler{
		auth:     d.Auth,
		services: d.Services,
		notifier: notifier,
		health:   NewHealthHandler(d.Auth, d.DataDir, d.Version),
		logger:   logger,
	}
}
