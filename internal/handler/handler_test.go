// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/firebook/internal/auth"
	"github.com/olegiv/firebook/internal/middleware"
	"github.com/olegiv/firebook/internal/service"
	"github.com/olegiv/firebook/internal/session"
	"github.com/olegiv/firebook/internal/store"
	"github.com/olegiv/firebook/internal/testutil"
	"github.com/olegiv/firebook/internal/version"
)

const adminPassword = "correct-horse-battery"

type captureNotifier struct {
	mu     sync.Mutex
	tokens []*auth.ResetToken
}

func (n *captureNotifier) NotifyReset(_ context.Context, t *auth.ResetToken) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, t)
	return nil
}

func (n *captureNotifier) last() *auth.ResetToken {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.tokens) == 0 {
		return nil
	}
	return n.tokens[len(n.tokens)-1]
}

type testEnv struct {
	t        *testing.T
	srv      *httptest.Server
	store    *store.Store
	auth     *auth.Service
	notifier *captureNotifier
}

func newTestEnv(t *testing.T, guard *middleware.LoginProtection) *testEnv {
	t.Helper()
	logger := testutil.TestLoggerSilent()
	st := testutil.TestStore(t)

	sm := session.New(session.NewCollectionStore(st), session.DefaultConfig(true))
	rm := session.NewRememberMe(st, time.Hour, true, logger)
	svc := auth.New(st, sm, rm, auth.Config{}, logger)

	created, err := svc.SeedAdmin(context.Background(), "admin", adminPassword, "admin@example.org")
	require.NoError(t, err)
	require.True(t, created)

	n := &captureNotifier{}
	deps := Deps{
		Auth:     svc,
		Services: service.New(st, logger),
		Notifier: n,
		DataDir:  st.Backend().(*store.FileBackend).Dir(),
		Version:  version.Info{Version: "v0.0.0-test"},
		Logger:   logger,
		IsDev:    true,
		CSRFKey:  bytes.Repeat([]byte{7}, 32),
	}
	if guard != nil {
		svc.SetLoginGuard(guard)
		deps.Guard = guard
	}

	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)
	return &testEnv{t: t, srv: srv, store: st, auth: svc, notifier: n}
}

func (e *testEnv) client() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(e.t, err)
	return &http.Client{Jar: jar}
}

type apiResult struct {
	Status int             `json:"-"`
	Header http.Header     `json:"-"`
	Raw    []byte          `json:"-"`
	Data   json.RawMessage `json:"data"`
	Meta   *Meta           `json:"meta"`
	Error  *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func (e *testEnv) do(c *http.Client, method, path string, body any) *apiResult {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()

	res := &apiResult{Status: resp.StatusCode, Header: resp.Header}
	res.Raw, err = io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	if len(res.Raw) > 0 {
		_ = json.Unmarshal(res.Raw, res)
	}
	return res
}

func (r *apiResult) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v), string(r.Raw))
}

func (r *apiResult) code() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Code
}

// login signs a fresh client in and fails the test otherwise.
func (e *testEnv) login(username, password string) *http.Client {
	e.t.Helper()
	c := e.client()
	res := e.do(c, http.MethodPost, "/api/login", LoginRequest{Username: username, Password: password})
	require.Equal(e.t, http.StatusOK, res.Status, string(res.Raw))
	return c
}
