// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"

	"github.com/olegiv/firebook/internal/auth"
	"github.com/olegiv/firebook/internal/cache"
	"github.com/olegiv/firebook/internal/config"
	"github.com/olegiv/firebook/internal/cryptobox"
	"github.com/olegiv/firebook/internal/handler"
	"github.com/olegiv/firebook/internal/logging"
	"github.com/olegiv/firebook/internal/middleware"
	"github.com/olegiv/firebook/internal/scheduler"
	"github.com/olegiv/firebook/internal/service"
	"github.com/olegiv/firebook/internal/session"
	"github.com/olegiv/firebook/internal/store"
	"github.com/olegiv/firebook/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

// csrfKeyInfo is the HKDF info for the CSRF key derived from the master key.
const csrfKeyInfo = "firebook/csrf/v1"

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")
	genKey := flag.Bool("genkey", false, "Print a new random encryption key and exit")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "firebook - encrypted fire department records\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FIREBOOK_ENCRYPTION_KEY  64 hex characters (required, see -genkey)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FIREBOOK_DATA_DIR        Collection directory (default: ./data)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FIREBOOK_SESSION_STORE   file or redis (default: file)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FIREBOOK_REDIS_URL       Redis for sessions and login counters\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FIREBOOK_SERVER_HOST     Server host (default: localhost)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FIREBOOK_SERVER_PORT     Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FIREBOOK_ENV             development or production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FIREBOOK_LEGACY_PLAINTEXT  Read data files written without integrity tag\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FIREBOOK_LOG_LEVEL       debug, info, warn, error (default: info)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  FIREBOOK_ADMIN_PASSWORD  Seeds a global admin on first start\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Println(buildInfo())
		os.Exit(0)
	}
	if *genKey {
		key, err := cryptobox.GenerateHexKey()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "generating key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func buildInfo() version.Info {
	return version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	versionInfo := buildInfo()

	baseHandler, logCloser := logging.NewHandler(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	defer func(c io.Closer) { _ = c.Close() }(logCloser)
	baseLogger := slog.New(baseHandler)
	slog.SetDefault(baseLogger)

	box, err := cryptobox.NewFromHex(cfg.EncryptionKey, cfg.CryptoOptions()...)
	if err != nil {
		return fmt.Errorf("initializing encryption: %w", err)
	}
	if cfg.LegacyPlaintext {
		slog.Warn("accepting collection files without integrity tag; each is re-tagged on its next write")
	}

	slog.Info("opening data directory", "path", cfg.DataDir)
	backend, err := store.NewFileBackend(cfg.DataDir, store.FileOptions{LockTimeout: cfg.LockTimeout})
	if err != nil {
		return fmt.Errorf("opening data directory: %w", err)
	}

	// Audit events are written through a store that logs on the plain handler
	// so a failing events write cannot log back into the audit queue.
	auditEvents := service.NewEventService(store.New(backend, box, baseLogger))
	audit := logging.NewAuditHandler(baseHandler, auditEvents)
	defer audit.Close()
	logger := slog.New(audit)
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	st := store.New(backend, box, logger)

	// Login counters and, when selected, sessions live in Redis.
	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisURL = cfg.RedisURL
	cacheCfg.Prefix = cfg.CachePrefix
	cacheCfg.MaxSize = cfg.CacheMaxSize
	counters, usingRedis := cache.New(cacheCfg, logger)
	defer func() { _ = counters.Close() }()

	var sessionStore scs.Store
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		rc, ok := counters.(*cache.RedisCache)
		if !usingRedis || !ok {
			return errors.New("FIREBOOK_SESSION_STORE=redis but Redis is unreachable")
		}
		sessionStore = session.NewRedisStore(rc.Client(), cfg.CachePrefix+"session:")
	default:
		sessionStore = session.NewCollectionStore(st)
	}

	sm := session.New(sessionStore, session.Config{
		Lifetime:    cfg.SessionLifetimeDuration(),
		IdleTimeout: cfg.SessionIdleDuration(),
		IsDev:       cfg.IsDevelopment(),
	})
	rm := session.NewRememberMe(st, cfg.RememberMeDuration(), cfg.IsDevelopment(), logger)

	authSvc := auth.New(st, sm, rm, auth.Config{ResetTTL: cfg.PasswordResetDuration()}, logger)
	guard := middleware.NewLoginProtection(counters, middleware.DefaultLoginProtectionConfig())
	authSvc.SetLoginGuard(guard)

	ctx := context.Background()
	if err := authSvc.Health(ctx); err != nil {
		if errors.Is(err, cryptobox.ErrIntegrity) && !cfg.LegacyPlaintext {
			return fmt.Errorf("users collection has no valid integrity tag; if it was written by an "+
				"older version, set FIREBOOK_LEGACY_PLAINTEXT=true, "+
				"otherwise check FIREBOOK_ENCRYPTION_KEY: %w", err)
		}
		if errors.Is(err, cryptobox.ErrCrypto) {
			return fmt.Errorf("users collection cannot be decrypted; check FIREBOOK_ENCRYPTION_KEY: %w", err)
		}
		return fmt.Errorf("reading users collection: %w", err)
	}
	if cfg.AdminPassword != "" {
		created, err := authSvc.SeedAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword, cfg.AdminEmail)
		if err != nil {
			return fmt.Errorf("seeding admin user: %w", err)
		}
		if created {
			slog.Info("created initial admin", "username", cfg.AdminUsername)
		}
	}

	services := service.New(st, logger)

	sched := scheduler.New(logger)
	hk := scheduler.Housekeeping{
		RememberTokens: rm.Purge,
		PasswordResets: authSvc.PurgeExpiredResets,
		Events:         services.Events.Purge,
	}
	if cs, ok := sessionStore.(*session.CollectionStore); ok {
		hk.Sessions = cs.Cleanup
	}
	if err := sched.RegisterHousekeeping(hk); err != nil {
		return fmt.Errorf("registering scheduled jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	csrfKey, err := box.DeriveKey(csrfKeyInfo, 32)
	if err != nil {
		return fmt.Errorf("deriving CSRF key: %w", err)
	}

	router := handler.NewRouter(handler.Deps{
		Auth:           authSvc,
		Services:       services,
		Guard:          guard,
		DataDir:        cfg.DataDir,
		Version:        versionInfo,
		Logger:         logger,
		IsDev:          cfg.IsDevelopment(),
		CSRFKey:        csrfKey,
		TrustedOrigins: cfg.TrustedOrigins,
		RateLimit:      cfg.APIRateLimit,
		RateBurst:      cfg.APIRateBurst,
	})

	// Create server with appropriate timeouts
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "build", versionInfo.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
