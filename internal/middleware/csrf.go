// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"filippo.io/csrf/gorilla"
)

// devOrigins are trusted in development so a local frontend on another
// port can call the API.
var devOrigins = []string{"localhost:8080", "127.0.0.1:8080", "localhost:5173"}

// CSRFConfig configures cross-site request protection. filippo.io/csrf
// checks Fetch metadata and Origin headers, so no token cookie is issued.
type CSRFConfig struct {
	// AuthKey is a 32-byte key derived from the encryption key.
	AuthKey []byte

	// ErrorHandler replaces the JSON 403 response.
	ErrorHandler http.Handler

	// TrustedOrigins are host[:port] values allowed to send cross-origin
	// state-changing requests.
	TrustedOrigins []string
}

// DefaultCSRFConfig builds a config trusting the given origins. Entries may
// be full URLs ("https://ops.example.org") or bare hosts.
func DefaultCSRFConfig(authKey []byte, isDev bool, trusted ...string) CSRFConfig {
	origins := normalizeOrigins(trusted)
	if isDev {
		origins = append(origins, devOrigins...)
	}
	return CSRFConfig{AuthKey: authKey, TrustedOrigins: origins}
}

// normalizeOrigins reduces each entry to host[:port], dropping blanks.
func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if strings.Contains(o, "://") {
			if u, err := url.Parse(o); err == nil && u.Host != "" {
				o = u.Host
			}
		}
		out = append(out, strings.TrimSuffix(o, "/"))
	}
	return out
}

// CSRF rejects cross-site state-changing requests.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	errorHandler := cfg.ErrorHandler
	if errorHandler == nil {
		errorHandler = http.HandlerFunc(csrfErrorHandler)
	}
	opts := []csrf.Option{csrf.ErrorHandler(errorHandler)}
	if len(cfg.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(cfg.TrustedOrigins))
	}
	return csrf.Protect(cfg.AuthKey, opts...)
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	reason := "unknown"
	if err := csrf.FailureReason(r); err != nil {
		reason = err.Error()
	}
	slog.Warn("CSRF validation failed",
		"category", "access",
		"reason", reason,
		"method", r.Method,
		"origin", r.Header.Get("Origin"),
		"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
	)
	WriteAPIError(w, http.StatusForbidden, "csrf_failed", "Cross-site request rejected", nil)
}
