// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/olegiv/firebook/internal/auth"
	"github.com/olegiv/firebook/internal/cryptobox"
	"github.com/olegiv/firebook/internal/model"
	"github.com/olegiv/firebook/internal/version"
)

// Check statuses, worst last.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusFatal     = "fatal"
)

// minDiskSpace is the free space below which the disk check degrades.
const minDiskSpace = 100 * 1024 * 1024

// HealthHandler handles health check requests.
type HealthHandler struct {
	auth      *auth.Service
	dataDir   string
	version   version.Info
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(svc *auth.Service, dataDir string, info version.Info) *HealthHandler {
	return &HealthHandler{
		auth:      svc,
		dataDir:   dataDir,
		version:   info,
		startTime: time.Now(),
	}
}

// HealthStatusPublic is the minimal health response for unauthenticated callers.
type HealthStatusPublic struct {
	Status string `json:"status"`
}

// HealthStatus represents the overall health status (global admins only).
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo contains system-level information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutines"`
	NumCPU       int    `json:"num_cpus"`
	MemAlloc     string `json:"mem_alloc"`
	MemSys       string `json:"mem_sys"`
}

var statusRank = map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2, StatusFatal: 3}

// overall returns the worst status among checks; unhealthy checks degrade
// the service, a fatal check makes it fatal.
func overall(checks map[string]Check) string {
	worst := StatusHealthy
	for _, c := range checks {
		if statusRank[c.Status] > statusRank[worst] {
			worst = c.Status
		}
	}
	if worst == StatusUnhealthy {
		return StatusDegraded
	}
	return worst
}

// Health handles GET /health requests.
// Returns minimal status for most callers, full details for global admins.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{
		"users_collection": h.checkUsers(r.Context()),
		"disk":             h.checkDiskSpace(),
	}
	status := overall(checks)

	code := http.StatusOK
	if status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}

	if !h.isGlobalAdmin(r) {
		writeJSON(w, code, HealthStatusPublic{Status: status})
		return
	}

	resp := HealthStatus{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version.Version,
		Checks:    checks,
	}
	if r.URL.Query().Get("verbose") == "true" {
		resp.System = getSystemInfo()
	}
	writeJSON(w, code, resp)
}

// Liveness handles GET /health/live - simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "alive",
	})
}

// isGlobalAdmin reports whether the session belongs to a global admin.
// Returns false (without panicking) if session data is not loaded into context.
func (h *HealthHandler) isGlobalAdmin(r *http.Request) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
		}
	}()
	id, err := h.auth.Current(r.Context())
	return err == nil && id.Role == model.RoleGlobalAdmin
}

// checkUsers verifies the users collection decrypts. A crypto failure is
// fatal: nobody can sign in until the key is fixed.
func (h *HealthHandler) checkUsers(ctx context.Context) Check {
	start := time.Now()
	err := h.auth.Health(ctx)
	latency := time.Since(start).String()

	switch {
	case err == nil:
		return Check{Status: StatusHealthy, Message: "Readable", Latency: latency}
	case errors.Is(err, cryptobox.ErrCrypto):
		return Check{Status: StatusFatal, Message: "Cannot decrypt users collection; check FIREBOOK_ENCRYPTION_KEY", Latency: latency}
	default:
		return Check{Status: StatusUnhealthy, Message: err.Error(), Latency: latency}
	}
}

// checkDiskSpace checks available disk space in the data directory.
func (h *HealthHandler) checkDiskSpace() Check {
	if _, err := os.Stat(h.dataDir); os.IsNotExist(err) {
		return Check{
			Status:  StatusUnhealthy,
			Message: "Data directory does not exist",
		}
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(h.dataDir, &stat); err != nil {
		return Check{
			Status:  StatusUnhealthy,
			Message: "Failed to check disk space: " + err.Error(),
		}
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	available := formatBytes(availableBytes)

	if availableBytes < minDiskSpace {
		return Check{
			Status:  StatusDegraded,
			Message: "Low disk space: " + available + " available",
		}
	}
	return Check{
		Status:  StatusHealthy,
		Message: available + " available",
	}
}

// getSystemInfo returns system-level metrics.
func getSystemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     formatBytes(m.Alloc),
		MemSys:       formatBytes(m.Sys),
	}
}

// formatBytes converts bytes to a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
