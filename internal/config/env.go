// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/novalabs/eventsim/internal/log"
)

// lookup reads key from the environment and parses it. Unset or empty variables and
// parse failures return defaultValue; the chosen source is logged at debug level.
func lookup[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logger.Debug().
			Str("key", key).
			Interface("default", defaultValue).
			Str("source", "default").
			Msg("using default value")
		return defaultValue
	}
	parsed, err := parse(v)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Interface("default", defaultValue).
			Msg("invalid value in environment variable, using default")
		return defaultValue
	}
	if isSensitive(key) {
		logger.Debug().
			Str("key", key).
			Str("source", "environment").
			Bool("sensitive", true).
			Msg("using environment variable")
	} else {
		logger.Debug().
			Str("key", key).
			Interface("value", parsed).
			Str("source", "environment").
			Msg("using environment variable")
	}
	return parsed
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "password")
}

// ParseString reads a string from environment variable or returns default value.
func ParseString(key, defaultValue string) string {
	return lookup(key, defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseInt reads an integer from environment variable or returns default value.
func ParseInt(key string, defaultValue int) int {
	return lookup(key, defaultValue, strconv.Atoi)
}

// ParseUint64 reads an unsigned integer from environment variable or returns default value.
func ParseUint64(key string, defaultValue uint64) uint64 {
	return lookup(key, defaultValue, func(s string) (uint64, error) {
		return strconv.ParseUint(s, 10, 64)
	})
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	return lookup(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseDuration reads a duration in Go duration format (e.g. "5s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return lookup(key, defaultValue, time.ParseDuration)
}

// ParseBool reads a boolean from environment variable or returns default value.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return lookup(key, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, strconv.ErrSyntax
	})
}

// envTracker records every key a loader consumed.
type envTracker struct {
	prefix   string
	consumed map[string]struct{}
}

func newEnvTracker(prefix string) *envTracker {
	return &envTracker{prefix: prefix, consumed: make(map[string]struct{})}
}

func (e *envTracker) key(name string) string {
	k := e.prefix + name
	e.consumed[k] = struct{}{}
	return k
}

func (e *envTracker) str(name, cur string) string        { return ParseString(e.key(name), cur) }
func (e *envTracker) integer(name string, cur int) int   { return ParseInt(e.key(name), cur) }
func (e *envTracker) boolean(name string, cur bool) bool { return ParseBool(e.key(name), cur) }
func (e *envTracker) float(name string, cur float64) float64 {
	return ParseFloat(e.key(name), cur)
}
func (e *envTracker) unsigned(name string, cur uint64) uint64 {
	return ParseUint64(e.key(name), cur)
}
func (e *envTracker) duration(name string, cur time.Duration) time.Duration {
	return ParseDuration(e.key(name), cur)
}

// Consumed returns the environment keys read by the loader, sorted.
func (e *envTracker) Consumed() []string {
	out := make([]string, 0, len(e.consumed))
	for k := range e.consumed {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}
