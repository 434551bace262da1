// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Praxis Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/praxis-hq/praxis/internal/config"
	"github.com/praxis-hq/praxis/internal/installer"
	"github.com/praxis-hq/praxis/internal/integrity"
	"github.com/praxis-hq/praxis/internal/license"
	"github.com/praxis-hq/praxis/internal/registry"
	"github.com/praxis-hq/praxis/internal/store"
	"github.com/praxis-hq/praxis/internal/store/sqlite"
	praxiserr "github.com/praxis-hq/praxis/pkg/errors"
)

// App holds the wired subsystems a command needs. Commands construct it in
// their RunE via newApp and Close it when done.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Audit     *store.Sink
	Licenses  *license.Enforcer
	Registry  *registry.Registry
	Installer *installer.Installer

	auditStore store.AuditStore
}

// newApp builds the full subsystem graph from the global viper config,
// discovers installed extensions, and replays persisted registry state.
func newApp(ctx context.Context) (*App, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	auditStore, err := newAuditStore(cfg.Audit)
	if err != nil {
		return nil, err
	}
	sink := store.NewSink(auditStore, logger)

	cache, err := license.OpenCache(cfg.Licensing.CacheFile)
	if err != nil {
		auditStore.Close()
		return nil, err
	}
	verifier := license.NewHTTPVerifier(cfg.Licensing.Endpoint, time.Duration(cfg.Licensing.TimeoutSeconds)*time.Second)
	enforcer := license.NewEnforcer(verifier, cache)

	reg, err := registry.New(cfg.Host.Version, enforcer, registry.NewCommandTable(), sink,
		registry.NewStateFile(cfg.Extensions.StateFile), logger)
	if err != nil {
		auditStore.Close()
		return nil, err
	}
	if err := reg.Bootstrap(ctx, cfg.Extensions.Dir); err != nil {
		auditStore.Close()
		return nil, err
	}

	pkgVerifier, err := integrity.NewVerifier()
	if err != nil {
		auditStore.Close()
		return nil, err
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Audit:      sink,
		Licenses:   enforcer,
		Registry:   reg,
		Installer:  installer.New(pkgVerifier, cfg.Extensions.Dir, sink),
		auditStore: auditStore,
	}, nil
}

// Close releases resources held by the app.
func (a *App) Close() error {
	if a.auditStore != nil {
		return a.auditStore.Close()
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newAuditStore(cfg config.AuditConfig) (store.AuditStore, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryAuditStore(), nil
	case "sqlite":
		return sqlite.NewAuditStore(cfg.Path)
	default:
		return nil, praxiserr.Errorf(praxiserr.CodeCLISetupFailure, "unknown audit backend %q", cfg.Backend)
	}
}
