// SPDX-License-Identifier: MIT

// Package health reports whether eventd can serve: /healthz answers while the process
// runs, /readyz pings the event store and the latest-event cache.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/novalabs/eventsim/internal/log"
)

// Status summarises a readiness report.
type Status string

const (
	// StatusOK means every dependency answered.
	StatusOK Status = "ok"
	// StatusDegraded means an optional dependency failed; events are still accepted.
	StatusDegraded Status = "degraded"
	// StatusUnavailable means a required dependency failed.
	StatusUnavailable Status = "unavailable"
)

// DefaultPingTimeout bounds each dependency ping.
const DefaultPingTimeout = 2 * time.Second

// Pinger reports whether a dependency is usable.
type Pinger func(ctx context.Context) error

// Dependency is the outcome of one ping.
type Dependency struct {
	Name          string `json:"name"`
	Required      bool   `json:"required"`
	OK            bool   `json:"ok"`
	LatencyMillis int64  `json:"latencyMs"`
	Error         string `json:"error,omitempty"`
}

// Report is the /readyz body.
type Report struct {
	Status       Status       `json:"status"`
	Version      string       `json:"version,omitempty"`
	CheckedAt    time.Time    `json:"checkedAt"`
	Dependencies []Dependency `json:"dependencies"`
}

// Ready reports whether eventd should receive traffic.
func (r Report) Ready() bool { return r.Status != StatusUnavailable }

type liveness struct {
	Status  Status `json:"status"`
	Version string `json:"version,omitempty"`
}

type dependency struct {
	name     string
	required bool
	ping     Pinger
}

// Monitor pings eventd's dependencies on demand.
type Monitor struct {
	version string
	timeout time.Duration
	deps    []dependency
	logger  zerolog.Logger
	now     func() time.Time

	mu   sync.Mutex
	last Status
}

// NewMonitor creates a Monitor. A non-positive timeout uses DefaultPingTimeout.
func NewMonitor(version string, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	return &Monitor{
		version: version,
		timeout: timeout,
		logger:  log.WithComponent("health"),
		now:     time.Now,
		last:    StatusOK,
	}
}

// Require registers a dependency without which eventd cannot store events (the store).
func (m *Monitor) Require(name string, ping Pinger) {
	m.deps = append(m.deps, dependency{name: name, required: true, ping: ping})
}

// Optional registers a dependency whose failure only degrades eventd (the redis cache:
// lookups fall through to the store).
func (m *Monitor) Optional(name string, ping Pinger) {
	m.deps = append(m.deps, dependency{name: name, ping: ping})
}

// Check pings every dependency in registration order.
func (m *Monitor) Check(ctx context.Context) Report {
	rep := Report{
		Status:       StatusOK,
		Version:      m.version,
		CheckedAt:    m.now().UTC(),
		Dependencies: make([]Dependency, 0, len(m.deps)),
	}
	for _, d := range m.deps {
		res := m.ping(ctx, d)
		rep.Dependencies = append(rep.Dependencies, res)
		switch {
		case res.OK:
		case d.required:
			rep.Status = StatusUnavailable
		case rep.Status == StatusOK:
			rep.Status = StatusDegraded
		}
	}
	m.recordTransition(rep)
	return rep
}

func (m *Monitor) ping(ctx context.Context, d dependency) Dependency {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := m.now()
	err := d.ping(ctx)
	res := Dependency{
		Name:          d.name,
		Required:      d.required,
		OK:            err == nil,
		LatencyMillis: m.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// recordTransition logs only when the overall status changes.
func (m *Monitor) recordTransition(rep Report) {
	m.mu.Lock()
	prev := m.last
	m.last = rep.Status
	m.mu.Unlock()
	if prev == rep.Status {
		return
	}

	var failing []string
	for _, d := range rep.Dependencies {
		if !d.OK {
			failing = append(failing, d.Name)
		}
	}
	level := zerolog.WarnLevel
	if rep.Status == StatusOK {
		level = zerolog.InfoLevel
	}
	m.logger.WithLevel(level).Str(log.FieldEvent, "readiness.changed").
		Str("from", string(prev)).
		Str("to", string(rep.Status)).
		Strs("failing", failing).
		Msg("eventd readiness changed")
}

// ServeLive answers 200 while the process is up. It touches no dependency.
func (m *Monitor) ServeLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, liveness{Status: StatusOK, Version: m.version})
}

// ServeReady answers 200 when ok or degraded and 503 when a required dependency fails.
func (m *Monitor) ServeReady(w http.ResponseWriter, r *http.Request) {
	rep := m.Check(r.Context())
	code := http.StatusOK
	if !rep.Ready() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
