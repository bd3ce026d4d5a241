// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/quarry-analytics/quarry/analytics"
	"github.com/quarry-analytics/quarry/lib/audit"
	"github.com/quarry-analytics/quarry/lib/clock"
	"github.com/quarry-analytics/quarry/lib/config"
	"github.com/quarry-analytics/quarry/lib/process"
	"github.com/quarry-analytics/quarry/lib/service"
	"github.com/quarry-analytics/quarry/lib/version"
	"github.com/quarry-analytics/quarry/tenant"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var showVersion bool
	pflag.StringVar(&configPath, "config", "", "path to quarry.yaml (defaults to $QUARRY_CONFIG)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		version.Print("quarry-queryd")
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := service.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := tenant.OpenStore(tenant.StoreConfig{
		Path:   cfg.Tenants.DatabasePath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("open tenant store: %w", err)
	}
	defer store.Close()

	if cfg.Tenants.CatalogPath != "" {
		if err := tenant.SeedCatalog(ctx, store, cfg.Tenants.CatalogPath); err != nil {
			return fmt.Errorf("seed tenant catalog: %w", err)
		}
	}

	var auditLog *audit.Log
	if cfg.Audit.Path != "" {
		auditLog, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer auditLog.Close()
	}

	// One HTTP client for every tenant's remote endpoint. Per-call
	// deadlines are applied inside the protocol client from
	// remote.call_timeout, so the transport carries none of its own.
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	registry := analytics.NewRegistry(httpClient, cfg.Remote.CallTimeout, logger)
	queryService := analytics.NewService(store, registry, auditLog, clock.Real(), logger)

	server := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.Server.Address,
		Handler:         newHandler(queryService, store, cfg.Remote.StreamThreshold, logger),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          logger,
	})

	logger.Info("quarry-queryd starting",
		"address", cfg.Server.Address,
		"environment", cfg.Environment,
		"stream_threshold", cfg.Remote.StreamThreshold,
	)

	return server.Serve(ctx)
}
