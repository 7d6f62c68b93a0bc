// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/olegiv/firebook/internal/auth"
	"github.com/olegiv/firebook/internal/model"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		identity *auth.Identity
		min      model.Role
		want     int
	}{
		{"no identity", nil, model.RoleOperator, http.StatusUnauthorized},
		{"operator for operator", &auth.Identity{Role: model.RoleOperator}, model.RoleOperator, http.StatusOK},
		{"scoped operator for location admin", &auth.Identity{Role: model.RoleOperator, LocationID: "1"}, model.RoleLocationAdmin, http.StatusForbidden},
		{"global operator for location admin", &auth.Identity{Role: model.RoleOperator}, model.RoleLocationAdmin, http.StatusOK},
		{"global operator for global admin", &auth.Identity{Role: model.RoleOperator}, model.RoleGlobalAdmin, http.StatusForbidden},
		{"global admin for location admin", &auth.Identity{Role: model.RoleGlobalAdmin}, model.RoleLocationAdmin, http.StatusOK},
		{"unknown role", &auth.Identity{Role: "chief"}, model.RoleOperator, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireRole(tt.min)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.identity != nil {
				req = req.WithContext(context.WithValue(req.Context(), ContextKeyIdentity, tt.identity))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequestPath(t *testing.T) {
	var got string
	h := RequestPath(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = GetRequestPath(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/vehicles", nil))
	if got != "/api/vehicles" {
		t.Errorf("GetRequestPath = %q", got)
	}
	if GetRequestPath(context.Background()) != "" {
		t.Error("empty context should yield empty path")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:4242"
	if got := clientIP(req); got != "198.51.100.7" {
		t.Errorf("clientIP = %q", got)
	}
	req.RemoteAddr = "198.51.100.8"
	if got := clientIP(req); got != "198.51.100.8" {
		t.Errorf("clientIP without port = %q", got)
	}
}
