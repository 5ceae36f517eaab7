// SPDX-License-Identifier: MIT

// Package api serves the event ingestion and query HTTP API of eventd.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/novalabs/eventsim/internal/api/middleware"
	"github.com/novalabs/eventsim/internal/health"
	"github.com/novalabs/eventsim/internal/store"
)

// Config controls routing and the middleware stack.
type Config struct {
	// ContextPath prefixes every event route, e.g. "/event". Empty mounts at root.
	ContextPath string
	Stack       middleware.StackConfig
}

// Server holds the API dependencies.
type Server struct {
	cfg    Config
	store  store.Store
	health *health.Monitor
	now    func() time.Time
}

// New creates a Server. A nil monitor serves probes without dependencies.
func New(cfg Config, s store.Store, hm *health.Monitor) *Server {
	if hm == nil {
		hm = health.NewMonitor("", 0)
	}
	return &Server{
		cfg:    cfg,
		store:  s,
		health: hm,
		now:    time.Now,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(s.cfg.Stack)

	r.Get("/healthz", s.health.ServeLive)
	r.Get("/readyz", s.health.ServeReady)

	events := func(r chi.Router) {
		r.Post("/events", s.handleAddEvent)
		r.Get("/events", s.handleLatestEvents)
		r.Get("/events/{type}", s.handleAllEvents)
		r.Get("/events/{type}/all", s.handleAllEvents)
		r.Get("/events/{type}/latest", s.handleLatestEvent)
		r.Get("/events/{type}/count", s.handleCountEvents)
		r.Get("/events/{type}/earliest/{earliest}", s.handleFindEvents)
		r.Get("/events/{type}/earliest/{earliest}/latest/{latest}", s.handleFindEvents)
		r.Get("/types", s.handleTypes)
	}
	if s.cfg.ContextPath == "" {
		events(r)
	} else {
		r.Route(s.cfg.ContextPath, events)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, codeNotFound, "no such route")
	})
	return r
}
