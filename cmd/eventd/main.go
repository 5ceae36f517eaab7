// SPDX-License-Identifier: MIT

// Command eventd is the event-ingestion service the generator posts to. It stores
// sensor events and serves queries over them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/novalabs/eventsim/internal/api"
	"github.com/novalabs/eventsim/internal/api/middleware"
	"github.com/novalabs/eventsim/internal/cache"
	"github.com/novalabs/eventsim/internal/config"
	"github.com/novalabs/eventsim/internal/daemon"
	"github.com/novalabs/eventsim/internal/health"
	xglog "github.com/novalabs/eventsim/internal/log"
	"github.com/novalabs/eventsim/internal/store"
	"github.com/novalabs/eventsim/internal/telemetry"
	"github.com/novalabs/eventsim/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eventd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *showVersion {
		_, _ = fmt.Fprintln(stdout, version.String("eventd"))
		return 0
	}

	xglog.Configure(xglog.Config{Level: "info", Output: stderr, Service: "eventd", Version: version.Version})
	logger := xglog.WithComponent("eventd")

	loader := config.NewServerLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "config.load_failed").Str(xglog.FieldPath, *configPath).Msg("failed to load configuration")
		return 1
	}
	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Output: stderr, Service: "eventd", Version: version.Version})
	logger = xglog.WithComponent("eventd")
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str(xglog.FieldPath, *configPath).
		Strs("env_keys", loader.ConsumedEnvKeys()).
		Str("listen", cfg.Listen).
		Str("context_path", cfg.ContextPath).
		Msg("configuration loaded")

	holder := config.NewServerHolder(cfg, loader)
	holder.OnReload(func(_, updated config.ServerConfig) {
		xglog.Configure(xglog.Config{Level: updated.LogLevel, Output: stderr, Service: "eventd", Version: version.Version})
	})
	if err := holder.Watch(ctx); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_failed").Msg("config hot reload unavailable")
	}

	if err := health.PerformStartupChecks(cfg); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "startup.check_failed").Msg("startup checks failed")
		return 1
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "eventd",
		ServiceVersion: version.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "tracing.init_failed").Msg("failed to initialise tracing")
		return 1
	}

	svc, err := newService(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		logger.Error().Err(err).Str(xglog.FieldEvent, "service.init_failed").Msg("failed to build service")
		return 1
	}

	app := daemon.NewApp(cfg.ShutdownTimeout)
	app.AddServer("api", &http.Server{
		Addr:              cfg.Listen,
		Handler:           svc.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	})
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		app.AddServer("metrics", &http.Server{Addr: cfg.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
	}
	// Hooks run last-registered first: the store closes before the tracer flushes.
	app.RegisterShutdownHook("tracing", tp.Shutdown)
	app.RegisterShutdownHook("store", func(context.Context) error { return svc.store.Close() })

	logger.Info().Str(xglog.FieldEvent, "server.starting").Str("addr", cfg.Listen).Msg("event service starting")
	if err := app.Run(ctx, nil); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "server.failed").Msg("event service stopped with error")
		return 1
	}
	logger.Info().Str(xglog.FieldEvent, "server.stopped").Msg("event service stopped")
	return 0
}

type service struct {
	store   store.Store
	handler http.Handler
}

// newService opens the store and its latest-event cache and builds the API handler.
func newService(ctx context.Context, cfg config.ServerConfig) (*service, error) {
	s, err := store.Open(ctx, cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	hm := health.NewMonitor(version.Version, health.DefaultPingTimeout)
	hm.Require("store", s.Ping)

	var c cache.Cache
	switch cfg.Cache.Backend {
	case "memory":
		c = cache.NewMemoryCache(time.Minute)
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, xglog.WithComponent("cache"))
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		hm.Optional("redis", rc.HealthCheck)
		c = rc
	}
	if c != nil {
		s = store.WithLatestCache(s, c, cfg.Cache.TTL)
	}

	stack := middleware.StackConfig{
		EnableMetrics: true,
		EnableLogging: true,
	}
	if cfg.Tracing.Enabled {
		stack.TracingService = "eventd"
	}
	if cfg.RateLimit.Enabled {
		stack.RequestsPerMinute = cfg.RateLimit.RequestsPerMinute
	}

	srv := api.New(api.Config{ContextPath: cfg.ContextPath, Stack: stack}, s, hm)
	return &service{store: s, handler: srv.Handler()}, nil
}
