// SPDX-License-Identifier: MIT

package health

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/novalabs/eventsim/internal/config"
	"github.com/novalabs/eventsim/internal/log"
)

// PerformStartupChecks validates the environment before eventd opens its store.
func PerformStartupChecks(cfg config.ServerConfig) error {
	logger := log.WithComponent("startup-check")

	for _, addr := range []string{cfg.Listen, cfg.MetricsListen} {
		if err := checkListenAddr(addr); err != nil {
			return err
		}
	}

	switch cfg.Store.Backend {
	case "sqlite":
		if err := checkWritableDir(logger, filepath.Dir(cfg.Store.Path)); err != nil {
			return fmt.Errorf("store directory check failed: %w", err)
		}
	case "badger":
		if err := os.MkdirAll(cfg.Store.Path, 0o750); err != nil {
			return fmt.Errorf("create badger directory: %w", err)
		}
		if err := checkWritableDir(logger, cfg.Store.Path); err != nil {
			return fmt.Errorf("store directory check failed: %w", err)
		}
	}

	logger.Info().Str(log.FieldEvent, "startup.checked").Msg("startup checks passed")
	return nil
}

func checkListenAddr(addr string) error {
	if addr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	return nil
}

func checkWritableDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	_ = os.Remove(testFile)

	logger.Debug().Str(log.FieldPath, path).Msg("directory is writable")
	return nil
}
