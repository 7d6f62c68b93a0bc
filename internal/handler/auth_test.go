// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/firebook/internal/cache"
	"github.com/olegiv/firebook/internal/middleware"
	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/session"
)

func TestLogin_Flow(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client()

	res := env.do(c, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	wrong := env.do(c, http.MethodPost, "/api/login", LoginRequest{Username: "admin", Password: "nope-nope-nope"})
	unknown := env.do(c, http.MethodPost, "/api/login", LoginRequest{Username: "ghost", Password: "nope-nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, wrong.Status)
	assert.Equal(t, wrong.Status, unknown.Status)
	assert.Equal(t, string(wrong.Raw), string(unknown.Raw), "responses must not reveal which usernames exist")

	res = env.do(c, http.MethodPost, "/api/login", LoginRequest{Username: "admin", Password: adminPassword})
	require.Equal(t, http.StatusOK, res.Status, string(res.Raw))
	var user model.PublicUser
	res.decode(t, &user)
	assert.Equal(t, "admin", user.Username)
	assert.Equal(t, model.RoleGlobalAdmin, user.Role)
	assert.NotContains(t, string(res.Raw), "password_hash")

	res = env.do(c, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, res.Status)
	res.decode(t, &user)
	assert.Equal(t, "admin", user.Username)

	res = env.do(c, http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusNoContent, res.Status)

	res = env.do(c, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
}

func TestLogin_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client()

	res := env.do(c, http.MethodPost, "/api/login", LoginRequest{Username: " ", Password: "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Status)

	res = env.do(c, http.MethodPost, "/api/login", map[string]string{"user": "admin"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Status, "unknown fields are rejected")
	assert.Equal(t, "validation_error", res.code())
}

func TestLogin_RememberMe(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client()

	res := env.do(c, http.MethodPost, "/api/login",
		LoginRequest{Username: "admin", Password: adminPassword, RememberMe: true})
	require.Equal(t, http.StatusOK, res.Status)

	u, err := url.Parse(env.srv.URL)
	require.NoError(t, err)
	var remember string
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == session.RememberCookieName {
			remember = ck.Value
		}
	}
	require.NotEmpty(t, remember, "remember-me cookie not set")

	// A new browser holding only the remember-me cookie is signed in and
	// receives a rotated token.
	fresh := env.client()
	fresh.Jar.SetCookies(u, []*http.Cookie{{Name: session.RememberCookieName, Value: remember, Path: "/"}})
	res = env.do(fresh, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, res.Status, string(res.Raw))

	var rotated string
	for _, ck := range fresh.Jar.Cookies(u) {
		if ck.Name == session.RememberCookieName {
			rotated = ck.Value
		}
	}
	assert.NotEmpty(t, rotated)
	assert.NotEqual(t, remember, rotated)

	// The old value no longer signs anyone in.
	stale := env.client()
	stale.Jar.SetCookies(u, []*http.Cookie{{Name: session.RememberCookieName, Value: remember, Path: "/"}})
	res = env.do(stale, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
}

func TestLogin_Lockout(t *testing.T) {
	guard := middleware.NewLoginProtection(
		cache.NewMemoryCache(cache.MemoryCacheOptions{}),
		middleware.LoginProtectionConfig{IPRateLimit: 1000, IPBurst: 1000, MaxFailedAttempts: 2},
	)
	env := newTestEnv(t, guard)
	c := env.client()

	res := env.do(c, http.MethodPost, "/api/login", LoginRequest{Username: "admin", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	res = env.do(c, http.MethodPost, "/api/login", LoginRequest{Username: "admin", Password: "wrong-password"})
	assert.Equal(t, http.StatusTooManyRequests, res.Status)

	res = env.do(c, http.MethodPost, "/api/login", LoginRequest{Username: "admin", Password: adminPassword})
	require.Equal(t, http.StatusTooManyRequests, res.Status, "correct password is refused while locked")
	assert.Equal(t, "too_many_attempts", res.code())
	secs, err := strconv.Atoi(res.Header.Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, secs, 0)
}

func TestLogin_IPRateLimit(t *testing.T) {
	guard := middleware.NewLoginProtection(
		cache.NewMemoryCache(cache.MemoryCacheOptions{}),
		middleware.LoginProtectionConfig{IPRateLimit: 0.001, IPBurst: 1, MaxFailedAttempts: 100},
	)
	env := newTestEnv(t, guard)
	c := env.client()

	_ = env.do(c, http.MethodPost, "/api/login", LoginRequest{Username: "admin", Password: "wrong-password"})
	res := env.do(c, http.MethodPost, "/api/login", LoginRequest{Username: "admin", Password: "wrong-password"})
	assert.Equal(t, http.StatusTooManyRequests, res.Status)
	assert.Equal(t, "rate_limited", res.code())
}

func TestPasswordReset_Flow(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client()

	known := env.do(c, http.MethodPost, "/api/password/forgot", map[string]string{"username": "admin"})
	unknown := env.do(c, http.MethodPost, "/api/password/forgot", map[string]string{"username": "ghost"})
	assert.Equal(t, http.StatusAccepted, known.Status)
	assert.Equal(t, string(known.Raw), string(unknown.Raw))

	tok := env.notifier.last()
	require.NotNil(t, tok)
	assert.Equal(t, "admin", tok.Username)

	res := env.do(c, http.MethodPost, "/api/password/verify", map[string]string{"token": tok.Token})
	require.Equal(t, http.StatusOK, res.Status)
	var verified map[string]string
	res.decode(t, &verified)
	assert.Equal(t, "admin", verified["username"])

	res = env.do(c, http.MethodPost, "/api/password/verify", map[string]string{"token": "not-a-token"})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "invalid_token", res.code())

	res = env.do(c, http.MethodPost, "/api/password/reset", map[string]string{"token": tok.Token, "password": "short"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, "is too short", res.Error.Details["password"])

	res = env.do(c, http.MethodPost, "/api/password/reset", map[string]string{"token": tok.Token, "password": "brand-new-secret"})
	require.Equal(t, http.StatusNoContent, res.Status, string(res.Raw))

	res = env.do(c, http.MethodPost, "/api/password/reset", map[string]string{"token": tok.Token, "password": "another-secret"})
	assert.Equal(t, http.StatusBadRequest, res.Status, "token is single use")

	env.login("admin", "brand-new-secret")
}

func TestPasswordReset_TokenStaysOutOfLogs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	env := newTestEnv(t, nil)
	c := env.client()
	env.do(c, http.MethodPost, "/api/password/forgot", map[string]string{"username": "admin"})
	tok := env.notifier.last()
	require.NotNil(t, tok)

	// The token is never part of a URL path.
	res := env.do(c, http.MethodGet, "/api/password/reset/"+tok.Token, nil)
	assert.NotEqual(t, http.StatusOK, res.Status)

	res = env.do(c, http.MethodPost, "/api/password/verify", map[string]string{"token": tok.Token})
	require.Equal(t, http.StatusOK, res.Status)
	res = env.do(c, http.MethodPost, "/api/password/reset", map[string]string{"token": tok.Token, "password": "brand-new-secret"})
	require.Equal(t, http.StatusNoContent, res.Status)
	res = env.do(c, http.MethodPost, "/api/password/reset", map[string]string{"token": tok.Token, "password": "brand-new-secret"})
	require.Equal(t, http.StatusBadRequest, res.Status)

	assert.NotContains(t, buf.String(), tok.Token)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.login("admin", adminPassword)

	res := env.do(c, http.MethodPost, "/api/password/change",
		map[string]string{"current_password": "wrong", "new_password": "something-longer"})
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	res = env.do(c, http.MethodPost, "/api/password/change",
		map[string]string{"current_password": adminPassword, "new_password": "something-longer"})
	require.Equal(t, http.StatusNoContent, res.Status, string(res.Raw))

	res = env.do(c, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusOK, res.Status, "session survives the token renewal")

	env.login("admin", "something-longer")
}

func TestCSRF_CrossSitePostRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	resp, err := env.client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
