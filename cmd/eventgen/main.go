// SPDX-License-Identifier: MIT

// Command eventgen generates synthetic sensor state-change events and POSTs them,
// one at a time, to an event-ingestion endpoint.
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

	"github.com/novalabs/eventsim/internal/config"
	"github.com/novalabs/eventsim/internal/daemon"
	"github.com/novalabs/eventsim/internal/generator"
	"github.com/novalabs/eventsim/internal/ingest"
	xglog "github.com/novalabs/eventsim/internal/log"
	platformnet "github.com/novalabs/eventsim/internal/platform/net"
	"github.com/novalabs/eventsim/internal/runner"
	"github.com/novalabs/eventsim/internal/telemetry"
	"github.com/novalabs/eventsim/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type flags struct {
	configPath string
	version    bool
	seed       uint64
	dryRun     bool
	endpoint   string
	days       int
	start      string
}

func parseFlags(args []string, stderr io.Writer) (flags, *flag.FlagSet, error) {
	var f flags
	fs := flag.NewFlagSet("eventgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "path to config file (YAML)")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
	fs.Uint64Var(&f.seed, "seed", 0, "random seed (0 = from config, or random)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "print events without sending them")
	fs.StringVar(&f.endpoint, "endpoint", "", "ingestion endpoint URL")
	fs.IntVar(&f.days, "days", -1, "number of days to simulate")
	fs.StringVar(&f.start, "start", "", "first simulated day (e.g. 2017-01-10T00:00:00.000Z)")
	err := fs.Parse(args)
	return f, fs, err
}

// applyFlags overrides loaded configuration with explicitly set flags.
func applyFlags(cfg *config.GeneratorConfig, f flags, fs *flag.FlagSet) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "seed":
			cfg.Seed = f.seed
		case "dry-run":
			cfg.DryRun = f.dryRun
		case "endpoint":
			cfg.Endpoint = f.endpoint
		case "days":
			cfg.Days = f.days
		case "start":
			cfg.Start = f.start
		}
	})
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if f.version {
		_, _ = fmt.Fprintln(stdout, version.String("eventgen"))
		return 0
	}

	xglog.Configure(xglog.Config{Level: "info", Output: stderr, Service: "eventgen", Version: version.Version})
	logger := xglog.WithComponent("eventgen")

	loader := config.NewGeneratorLoader(f.configPath)
	cfg, err := loader.Load()
	if err == nil {
		applyFlags(&cfg, f, fs)
		err = cfg.Validate()
	}
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "config.load_failed").Str(xglog.FieldPath, f.configPath).Msg("failed to load configuration")
		return 1
	}
	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Output: stderr, Service: "eventgen", Version: version.Version})
	logger = xglog.WithComponent("eventgen")
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str(xglog.FieldPath, f.configPath).
		Strs("env_keys", loader.ConsumedEnvKeys()).
		Str(xglog.FieldEndpoint, platformnet.SanitizeURL(cfg.Endpoint)).
		Bool("dry_run", cfg.DryRun).
		Msg("configuration loaded")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "eventgen",
		ServiceVersion: version.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "tracing.init_failed").Msg("failed to initialise tracing")
		return 1
	}

	r, err := newRunner(cfg, stdout)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "run.init_failed").Msg("failed to prepare run")
		return 1
	}

	app := daemon.NewApp(5 * time.Second)
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		app.AddServer("metrics", &http.Server{Addr: cfg.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
	}
	app.RegisterShutdownHook("tracing", tp.Shutdown)

	runErr := app.Run(ctx, r.Run)

	if cfg.ReportPath != "" {
		if err := runner.WriteReport(cfg.ReportPath, r.Report()); err != nil {
			logger.Error().Err(err).Str(xglog.FieldPath, cfg.ReportPath).Msg("failed to write run report")
			if runErr == nil {
				return 1
			}
		}
	}
	if runErr != nil {
		// The runner has already logged run.aborted for its own failures.
		if !errors.Is(runErr, runner.ErrAborted) {
			logger.Error().Err(runErr).Str(xglog.FieldEvent, "run.aborted").Msg("generator run failed")
		}
		return 1
	}
	return 0
}

func newRunner(cfg config.GeneratorConfig, stdout io.Writer) (*runner.Runner, error) {
	start, err := cfg.StartTime()
	if err != nil {
		return nil, err
	}
	defs, err := cfg.BuildDefinitions()
	if err != nil {
		return nil, err
	}

	gen := generator.New(nil)
	if cfg.Seed != 0 {
		gen = generator.NewSeeded(cfg.Seed)
	}

	var sub ingest.Submitter
	if cfg.DryRun {
		sub = ingest.DryRunSubmitter{}
	} else {
		sub = ingest.NewHTTPSubmitter(cfg.Endpoint, cfg.Timeout)
	}

	return runner.New(runner.Config{
		Start:         start,
		Days:          cfg.Days,
		Definitions:   defs,
		Generator:     gen,
		Submitter:     sub,
		Out:           stdout,
		RatePerSecond: cfg.RatePerSecond,
		Seed:          cfg.Seed,
	})
}
