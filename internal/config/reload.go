// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/novalabs/eventsim/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// ServerHolder holds the live ServerConfig and reloads it when the config file changes.
// A reload that fails to load or validate keeps the current configuration.
type ServerHolder struct {
	mu        sync.RWMutex
	current   ServerConfig
	loader    *ServerLoader
	logger    zerolog.Logger
	listeners []func(old, updated ServerConfig)
}

// NewServerHolder creates a holder seeded with the configuration loader produced.
func NewServerHolder(initial ServerConfig, loader *ServerLoader) *ServerHolder {
	return &ServerHolder{
		current: initial,
		loader:  loader,
		logger:  xglog.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *ServerHolder) Get() ServerConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers fn to run after every successful reload.
func (h *ServerHolder) OnReload(fn func(old, updated ServerConfig)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload loads and validates the file again and swaps it in.
func (h *ServerHolder) Reload() error {
	h.logger.Info().Str(xglog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	updated, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("new configuration rejected")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = updated
	listeners := append([]func(old, updated ServerConfig){}, h.listeners...)
	h.mu.Unlock()

	h.logChanges(old, updated)
	for _, fn := range listeners {
		fn(old, updated)
	}

	h.logger.Info().Str(xglog.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// Watch reloads on writes to the config file until ctx is done. It watches the
// parent directory so editors that replace the file by rename are also seen.
// With no config file Watch returns nil immediately.
func (h *ServerHolder) Watch(ctx context.Context) error {
	if h.loader.path == "" {
		h.logger.Info().Str(xglog.FieldEvent, "config.watcher_disabled").Msg("no config file to watch")
		return nil
	}
	target := filepath.Clean(h.loader.path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	h.logger.Info().
		Str(xglog.FieldEvent, "config.watcher_started").
		Str(xglog.FieldPath, target).
		Msg("watching config file for changes")

	go h.watchLoop(ctx, watcher, target)
	return nil
}

func (h *ServerHolder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, target string) {
	defer func() { _ = watcher.Close() }()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(xglog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			h.logger.Debug().
				Str(xglog.FieldEvent, "config.file_changed").
				Str("op", ev.Op.String()).
				Msg("config file changed")

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				_ = h.Reload()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

// logChanges reports which settings changed. Only log_level applies live; the rest
// take effect on restart.
func (h *ServerHolder) logChanges(old, updated ServerConfig) {
	if old.LogLevel != updated.LogLevel {
		h.logger.Info().Str("old", old.LogLevel).Str("new", updated.LogLevel).Msg("config changed: log_level")
	}
	restart := map[string]bool{
		"listen":       old.Listen != updated.Listen,
		"context_path": old.ContextPath != updated.ContextPath,
		"store":        old.Store != updated.Store,
		"cache":        old.Cache != updated.Cache,
		"rate_limit":   old.RateLimit != updated.RateLimit,
		"tracing":      old.Tracing != updated.Tracing,
	}
	for _, key := range []string{"listen", "context_path", "store", "cache", "rate_limit", "tracing"} {
		if restart[key] {
			h.logger.Warn().Str("setting", key).Msg("config changed: restart required to apply")
		}
	}
}
