// SPDX-License-Identifier: MIT

package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	xglog "github.com/novalabs/eventsim/internal/log"
	"github.com/novalabs/eventsim/internal/metrics"
)

// Report is the JSON summary of a generator run.
type Report struct {
	RunID           string                 `json:"run_id"`
	Seed            uint64                 `json:"seed"`
	Start           time.Time              `json:"start"`
	Days            int                    `json:"days"`
	StartedAt       time.Time              `json:"started_at"`
	EndedAt         time.Time              `json:"ended_at"`
	DurationSeconds float64                `json:"duration_s"`
	DaysCompleted   int                    `json:"days_completed"`
	Submitted       int64                  `json:"submitted"`
	Rejected        int64                  `json:"rejected"`
	StatusClasses   map[string]int64       `json:"status_classes"`
	Types           map[string]*TypeResult `json:"types"`
	Aborted         bool                   `json:"aborted"`
	AbortReason     string                 `json:"abort_reason,omitempty"`
}

// TypeResult aggregates one event type.
type TypeResult struct {
	Generated int64 `json:"generated"`
	Accepted  int64 `json:"accepted"`
	Rejected  int64 `json:"rejected"`
}

func newReport(cfg Config) *Report {
	r := &Report{
		RunID:         cfg.RunID,
		Seed:          cfg.Seed,
		Start:         cfg.Start.UTC(),
		Days:          cfg.Days,
		StatusClasses: map[string]int64{},
		Types:         make(map[string]*TypeResult, len(cfg.Definitions)),
	}
	for _, def := range cfg.Definitions {
		r.Types[def.Name] = &TypeResult{}
	}
	return r
}

func (r *Report) typeResult(name string) *TypeResult {
	tr, ok := r.Types[name]
	if !ok {
		tr = &TypeResult{}
		r.Types[name] = tr
	}
	return tr
}

func (r *Report) generated(name string, n int) {
	r.typeResult(name).Generated += int64(n)
}

func (r *Report) submitted(name string, status int) {
	r.Submitted++
	r.StatusClasses[metrics.StatusClass(status)]++
	tr := r.typeResult(name)
	if status >= 200 && status < 300 {
		tr.Accepted++
		return
	}
	tr.Rejected++
	r.Rejected++
}

// WriteReport atomically writes r as indented JSON to path, creating parent directories.
func WriteReport(path string, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	logger := xglog.WithComponent("runner")
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending report file")
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write report data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit report file: %w", err)
	}
	return nil
}
