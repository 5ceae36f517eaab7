// SPDX-License-Identifier: MIT

// Package runner drives a generator run: for every simulated day and every
// definition in order, it generates the day's events and submits them one by one.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/novalabs/eventsim/internal/event"
	"github.com/novalabs/eventsim/internal/generator"
	"github.com/novalabs/eventsim/internal/ingest"
	xglog "github.com/novalabs/eventsim/internal/log"
	"github.com/novalabs/eventsim/internal/metrics"
	"github.com/novalabs/eventsim/internal/telemetry"
)

// ErrAborted wraps every error that stops a run before its last day.
var ErrAborted = errors.New("run aborted")

// Config wires a Runner.
type Config struct {
	Start       time.Time
	Days        int
	Definitions []*generator.Definition
	Generator   *generator.Generator
	Submitter   ingest.Submitter
	// Out receives one "payload - status" line per submission. Nil discards.
	Out io.Writer
	// RatePerSecond paces submissions; 0 is unlimited.
	RatePerSecond float64
	// RunID labels logs, spans and the report. Empty generates one.
	RunID string
	// Seed is recorded in the report only.
	Seed uint64
}

// Runner executes one generator run. It is single use.
type Runner struct {
	cfg     Config
	limiter *rate.Limiter
	tracer  trace.Tracer
	logger  zerolog.Logger
	report  *Report
	now     func() time.Time
}

// New validates cfg and returns a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Days < 0 {
		return nil, fmt.Errorf("days must be >= 0, got %d", cfg.Days)
	}
	if cfg.Submitter == nil {
		return nil, errors.New("submitter is required")
	}
	for i, def := range cfg.Definitions {
		if def == nil {
			return nil, fmt.Errorf("definition %d is nil", i)
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.Generator == nil {
		cfg.Generator = generator.New(nil)
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &Runner{
		cfg:     cfg,
		limiter: limiter,
		tracer:  telemetry.Tracer("eventsim/runner"),
		logger:  xglog.WithComponent("runner").With().Str(xglog.FieldRunID, cfg.RunID).Logger(),
		report:  newReport(cfg),
		now:     time.Now,
	}, nil
}

// Report returns the run summary collected so far.
func (r *Runner) Report() *Report { return r.report }

// Run submits every generated event in order. A non-2xx status is reported and the
// run continues; a transport failure or context cancellation stops it and is
// returned wrapping ErrAborted.
func (r *Runner) Run(ctx context.Context) error {
	ctx = xglog.ContextWithRunID(ctx, r.cfg.RunID)
	ctx, span := r.tracer.Start(ctx, "runner.run",
		trace.WithAttributes(telemetry.RunAttributes(r.cfg.RunID, r.cfg.Days, len(r.cfg.Definitions))...))
	defer span.End()

	r.report.StartedAt = r.now().UTC()
	defer func() {
		r.report.EndedAt = r.now().UTC()
		r.report.DurationSeconds = r.report.EndedAt.Sub(r.report.StartedAt).Seconds()
	}()

	r.logger.Info().
		Str(xglog.FieldEvent, "run.started").
		Time("start", r.cfg.Start).
		Int("days", r.cfg.Days).
		Int("definitions", len(r.cfg.Definitions)).
		Msg("generator run started")

	for i := 0; i < r.cfg.Days; i++ {
		day := generator.Midnight(r.cfg.Start).AddDate(0, 0, i)
		if err := r.runDay(ctx, day); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "aborted")
			r.abort(err)
			return err
		}
		r.report.DaysCompleted++
		metrics.RecordDayCompleted()
	}

	r.logger.Info().
		Str(xglog.FieldEvent, "run.completed").
		Int64("submitted", r.report.Submitted).
		Int64("rejected", r.report.Rejected).
		Msg("generator run completed")
	return nil
}

func (r *Runner) runDay(ctx context.Context, day time.Time) error {
	ctx, span := r.tracer.Start(ctx, "runner.day",
		trace.WithAttributes(attribute.String(telemetry.DayKey, day.Format(time.DateOnly))))
	defer span.End()

	for _, def := range r.cfg.Definitions {
		events := r.cfg.Generator.GenerateDay(def, day)
		metrics.RecordGenerated(def.Name, len(events))
		r.report.generated(def.Name, len(events))

		for _, e := range events {
			if err := r.submit(ctx, e); err != nil {
				return err
			}
		}
	}
	span.SetAttributes(attribute.Int64(telemetry.EventCountKey, r.report.Submitted))
	r.logger.Debug().
		Str(xglog.FieldEvent, "day.completed").
		Str(xglog.FieldDay, day.Format(time.DateOnly)).
		Int64("submitted", r.report.Submitted).
		Msg("simulated day completed")
	return nil
}

func (r *Runner) submit(ctx context.Context, e event.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: pacing: %w", ErrAborted, err)
		}
	}

	res, err := r.cfg.Submitter.Submit(ctx, e)
	metrics.RecordSubmission(e.Type, res.Status, res.Duration)
	if err != nil {
		return fmt.Errorf("%w: submit %s: %w", ErrAborted, e, err)
	}

	if _, werr := fmt.Fprintf(r.cfg.Out, "%s - %d\n", res.Payload, res.Status); werr != nil {
		r.logger.Debug().Err(werr).Msg("write submission line")
	}
	r.report.submitted(e.Type, res.Status)

	if res.OK() {
		r.logger.Debug().
			Str(xglog.FieldEvent, "event.submitted").
			Str(xglog.FieldEventType, e.Type).
			Str(xglog.FieldValue, e.Value).
			Int64(xglog.FieldEpochMillis, e.EpochMillis).
			Int(xglog.FieldStatus, res.Status).
			Dur("duration", res.Duration).
			Msg("event submitted")
		return nil
	}
	r.logger.Warn().
		Str(xglog.FieldEvent, "event.rejected").
		Str(xglog.FieldEventType, e.Type).
		RawJSON(xglog.FieldPayload, res.Payload).
		Int(xglog.FieldStatus, res.Status).
		Msg("endpoint answered with non-success status")
	return nil
}

func (r *Runner) abort(err error) {
	reason := "transport"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = "cancelled"
	}
	metrics.RecordRunAborted(reason)
	r.report.Aborted = true
	r.report.AbortReason = err.Error()

	r.logger.Error().
		Err(err).
		Str(xglog.FieldEvent, "run.aborted").
		Str("reason", reason).
		Int("days_completed", r.report.DaysCompleted).
		Int64("submitted", r.report.Submitted).
		Msg("generator run aborted")
}
