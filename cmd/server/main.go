// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opentrusty/console/internal/audit"
	"github.com/opentrusty/console/internal/backend"
	"github.com/opentrusty/console/internal/config"
	"github.com/opentrusty/console/internal/identity"
	"github.com/opentrusty/console/internal/observability/logger"
	"github.com/opentrusty/console/internal/observability/metrics"
	"github.com/opentrusty/console/internal/observability/tracing"
	transportHTTP "github.com/opentrusty/console/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Phase: CLI Commands
	if len(os.Args) > 1 && os.Args[1] == "check-config" {
		fmt.Printf("configuration ok: backend=%s external_host=%s tls=%t\n",
			cfg.Backend.URL, cfg.Cookie.ExternalHost, cfg.Server.TLSEnabled())
		os.Exit(0)
	}

	if err := run(cfg); err != nil {
		slog.Error("console stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTELEnabled: cfg.Observability.OTELEnabled,
	})
	slog.Info("starting opentrusty console",
		logger.String("backend_url", cfg.Backend.URL),
		logger.String("external_host", cfg.Cookie.ExternalHost),
	)

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
		tracer = tracing.NewNoop()
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.MetricsEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
		meter = metrics.NewNoop()
	}
	defer meter.Shutdown(ctx)

	// Backend client
	if cfg.Backend.InsecureSkipVerify {
		slog.Warn("backend certificate verification is disabled", logger.Component("backend"))
	}
	backendClient, err := backend.New(backend.Config{
		BaseURL:            cfg.Backend.URL,
		Timeout:            cfg.Backend.Timeout,
		InsecureSkipVerify: cfg.Backend.InsecureSkipVerify,
	}, meter)
	if err != nil {
		return err
	}

	var verifier *identity.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = identity.NewVerifier(cfg.Auth.JWTSecret)
	} else {
		slog.Info("JWT_SECRET not set, permissions endpoint disabled")
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	handler := transportHTTP.NewHandler(backendClient, verifier, audit.NewSlogLogger(nil), tracer)

	opts := transportHTTP.RouterOptions{
		ExternalHost:     cfg.Cookie.ExternalHost,
		RequestTimeout:   cfg.Server.WriteTimeout,
		UploadsPerMinute: cfg.RateLimit.UploadsPerMinute,
		TrustedProxies:   cfg.Server.TrustedProxyPrefixes(),
	}
	if cfg.UI.DistDir != "" {
		if _, err := os.Stat(cfg.UI.DistDir); err != nil {
			return fmt.Errorf("UI_DIST_DIR: %w", err)
		}
		opts.StaticFS = os.DirFS(cfg.UI.DistDir)
	}
	router := transportHTTP.NewRouter(handler, rateLimiter, opts)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"),
			logger.String("addr", addr))
		var err error
		if cfg.Server.TLSEnabled() {
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Warn("serving without TLS; browsers drop Secure cookies over plain http")
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
	return nil
}
