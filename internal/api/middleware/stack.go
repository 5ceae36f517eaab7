// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP ingress middleware stack of eventd.
package middleware

import (
	"github.com/go-chi/chi/v5"

	xglog "github.com/novalabs/eventsim/internal/log"
)

// StackConfig configures the ingress middleware stack.
type StackConfig struct {
	EnableMetrics bool
	// TracingService names server spans; empty disables tracing.
	TracingService string
	EnableLogging  bool
	// RequestsPerMinute is the per-IP limit; 0 disables rate limiting.
	RequestsPerMinute int
}

// NewRouter constructs a chi router with the stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the middleware stack to r, outermost first.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(xglog.Middleware())
	}
	if cfg.RequestsPerMinute > 0 {
		r.Use(APIRateLimit(cfg.RequestsPerMinute))
	}
}
