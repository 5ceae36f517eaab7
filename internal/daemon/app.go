// SPDX-License-Identifier: MIT

// Package daemon owns the process lifecycle of the eventsim binaries: HTTP
// listeners, an optional foreground task and ordered graceful shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	xglog "github.com/novalabs/eventsim/internal/log"
)

// DefaultShutdownTimeout bounds graceful shutdown when none is configured.
const DefaultShutdownTimeout = 10 * time.Second

// ShutdownHook performs cleanup during graceful shutdown.
// Hooks run in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

type namedServer struct {
	name   string
	server *http.Server
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// App runs HTTP servers until the context ends or the foreground task returns.
type App struct {
	logger          zerolog.Logger
	shutdownTimeout time.Duration
	servers         []namedServer
	hooks           []namedHook
}

// NewApp creates an App. A non-positive timeout uses DefaultShutdownTimeout.
func NewApp(shutdownTimeout time.Duration) *App {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &App{
		logger:          xglog.WithComponent("daemon"),
		shutdownTimeout: shutdownTimeout,
	}
}

// AddServer registers a server; nil servers are ignored.
func (a *App) AddServer(name string, srv *http.Server) {
	if srv == nil {
		return
	}
	a.servers = append(a.servers, namedServer{name: name, server: srv})
}

// RegisterShutdownHook registers cleanup to run after the servers stop.
func (a *App) RegisterShutdownHook(name string, hook ShutdownHook) {
	a.hooks = append(a.hooks, namedHook{name: name, hook: hook})
}

// Run serves every registered server. With a task, Run returns once the task has
// returned and shutdown has finished, yielding the task's error. Without one, Run
// blocks until ctx is cancelled or a server fails.
func (a *App) Run(ctx context.Context, task func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, ns := range a.servers {
		g.Go(func() error {
			a.logger.Info().
				Str(xglog.FieldEvent, "server.listening").
				Str("server", ns.name).
				Str("addr", ns.server.Addr).
				Msg("server listening")
			if err := ns.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s: %w: %w", ns.name, ErrServerStartFailed, err)
			}
			return nil
		})
	}

	var taskDone chan struct{}
	if task != nil {
		taskDone = make(chan struct{})
		g.Go(func() error {
			defer close(taskDone)
			return task(gctx)
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-taskDone:
		}
		return a.shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) shutdown(parent context.Context) error {
	a.logger.Info().Str(xglog.FieldEvent, "daemon.stopping").Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.shutdownTimeout)
	defer cancel()

	var errs []error
	for _, ns := range a.servers {
		if err := ns.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s shutdown: %w", ns.name, err))
		}
	}

	for i := len(a.hooks) - 1; i >= 0; i-- {
		h := a.hooks[i]
		start := time.Now()
		if err := h.hook(ctx); err != nil {
			a.logger.Error().Err(err).Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		a.logger.Debug().Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.logger.Info().Str(xglog.FieldEvent, "daemon.stopped").Msg("shutdown complete")
	return nil
}
