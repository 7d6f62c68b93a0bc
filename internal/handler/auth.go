// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strings"

	"github.com/olegiv/firebook/internal/model"
)

// forgotPasswordMessage is returned whether or not the user exists.
const forgotPasswordMessage = "If the account exists and has an email address, a reset link has been sent"

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// Login handles POST /api/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, r, &model.ValidationError{Field: "username", Reason: "username and password are required"})
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password, req.RememberMe, r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Remember != nil {
		h.auth.RememberMe().WriteCookie(w, res.Remember)
	}
	writeSuccess(w, res.User)
}

// Logout handles POST /api/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	rm := h.auth.RememberMe()
	value := ""
	if rm != nil {
		value = rm.ReadCookie(r)
	}
	if err := h.auth.Logout(r.Context(), value); err != nil {
		writeError(w, r, err)
		return
	}
	if rm != nil {
		rm.ClearCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.GetUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, user.Public())
}

// ForgotPassword handles POST /api/password/forgot. The response never
// reveals whether the username exists.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.auth.GeneratePasswordResetToken(r.Context(), strings.TrimSpace(req.Username))
	switch {
	case err != nil:
		h.logger.ErrorContext(r.Context(), "password reset generation failed",
			"category", model.EventCategoryAuth, "error", err)
	case token != nil:
		if err := h.notifier.NotifyReset(r.Context(), token); err != nil {
			h.logger.ErrorContext(r.Context(), "password reset notification failed",
				"category", model.EventCategoryAuth, "user_id", token.UserID, "error", err)
		}
	}
	writeJSON(w, http.StatusAccepted, Response{Data: MessageResponse{Message: forgotPasswordMessage}})
}

// VerifyResetToken handles POST /api/password/verify. The token travels in
// the body so it never reaches request paths or access logs.
func (h *Handler) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	username, err := h.auth.VerifyPasswordResetToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, map[string]string{"username": username})
}

// ResetPassword handles POST /api/password/reset.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword handles POST /api/password/change.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
