// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"time"

	"github.com/novalabs/eventsim/internal/generator"
	platformnet "github.com/novalabs/eventsim/internal/platform/net"
)

const generatorEnvPrefix = "EVENTSIM_"

// StartLayout is the accepted format of the start date.
const StartLayout = "2006-01-02T15:04:05.000Z07:00"

// DefinitionConfig configures one event-type definition.
type DefinitionConfig struct {
	Name          string   `yaml:"name"`
	States        []string `yaml:"states"`
	ChangesPerDay int      `yaml:"changes_per_day"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// GeneratorConfig drives cmd/eventgen.
type GeneratorConfig struct {
	Endpoint      string             `yaml:"endpoint"`
	Start         string             `yaml:"start"`
	Days          int                `yaml:"days"`
	Seed          uint64             `yaml:"seed"`
	Timeout       time.Duration      `yaml:"timeout"`
	RatePerSecond float64            `yaml:"rate_per_second"`
	DryRun        bool               `yaml:"dry_run"`
	ReportPath    string             `yaml:"report_path"`
	MetricsListen string             `yaml:"metrics_listen"`
	LogLevel      string             `yaml:"log_level"`
	Tracing       TracingConfig      `yaml:"tracing"`
	Definitions   []DefinitionConfig `yaml:"definitions"`
}

// DefaultGenerator returns the canonical simulation: seven sensors over 60 days
// starting 2017-01-10, posted to a local event service.
func DefaultGenerator() GeneratorConfig {
	return GeneratorConfig{
		Endpoint: "http://localhost:8080/event/events",
		Start:    "2017-01-10T00:00:00.000Z",
		Days:     60,
		Timeout:  10 * time.Second,
		LogLevel: "info",
		Tracing: TracingConfig{
			Exporter:     "http",
			Endpoint:     "localhost:4318",
			SamplingRate: 1.0,
		},
		Definitions: []DefinitionConfig{
			{Name: "novalabs_space", States: []string{"open", "closed"}, ChangesPerDay: 4},
			{Name: "mongo", States: []string{"on", "off"}, ChangesPerDay: 10},
			{Name: "table_saw", States: []string{"on", "off"}, ChangesPerDay: 4},
			{Name: "lathe", States: []string{"on", "off"}, ChangesPerDay: 8},
			{Name: "alarm", States: []string{"enabled", "disabled"}, ChangesPerDay: 6},
			{Name: "front_door", States: []string{"open", "closed"}, ChangesPerDay: 30},
			{Name: "shop_door", States: []string{"open", "closed"}, ChangesPerDay: 20},
		},
	}
}

// GeneratorLoader loads a GeneratorConfig with precedence ENV > File > Defaults.
type GeneratorLoader struct {
	path string
	env  *envTracker
}

// NewGeneratorLoader creates a loader; an empty path skips the file layer.
func NewGeneratorLoader(path string) *GeneratorLoader {
	return &GeneratorLoader{path: path, env: newEnvTracker(generatorEnvPrefix)}
}

// ConsumedEnvKeys lists the environment keys the last Load read.
func (l *GeneratorLoader) ConsumedEnvKeys() []string { return l.env.Consumed() }

// Load merges defaults, file and environment. It does not validate: command-line
// flags sit above ENV, so callers apply them first and then call Validate.
func (l *GeneratorLoader) Load() (GeneratorConfig, error) {
	cfg := DefaultGenerator()

	if l.path != "" {
		if err := decodeFile(l.path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	return cfg, nil
}

func (l *GeneratorLoader) mergeEnv(cfg *GeneratorConfig) {
	e := l.env
	cfg.Endpoint = e.str("ENDPOINT", cfg.Endpoint)
	cfg.Start = e.str("START", cfg.Start)
	cfg.Days = e.integer("DAYS", cfg.Days)
	cfg.Seed = e.unsigned("SEED", cfg.Seed)
	cfg.Timeout = e.duration("TIMEOUT", cfg.Timeout)
	cfg.RatePerSecond = e.float("RATE_PER_SECOND", cfg.RatePerSecond)
	cfg.DryRun = e.boolean("DRY_RUN", cfg.DryRun)
	cfg.ReportPath = e.str("REPORT_PATH", cfg.ReportPath)
	cfg.MetricsListen = e.str("METRICS_LISTEN", cfg.MetricsListen)
	cfg.LogLevel = e.str("LOG_LEVEL", cfg.LogLevel)
	mergeTracingEnv(e, &cfg.Tracing)
}

func mergeTracingEnv(e *envTracker, t *TracingConfig) {
	t.Enabled = e.boolean("TRACING_ENABLED", t.Enabled)
	t.Exporter = e.str("TRACING_EXPORTER", t.Exporter)
	t.Endpoint = e.str("TRACING_ENDPOINT", t.Endpoint)
	t.SamplingRate = e.float("TRACING_SAMPLING_RATE", t.SamplingRate)
}

// StartTime parses Start as a UTC instant.
func (c GeneratorConfig) StartTime() (time.Time, error) {
	for _, layout := range []string{StartLayout, time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, c.Start); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: start %q is not an ISO-8601 date", ErrInvalidConfig, c.Start)
}

// BuildDefinitions creates fresh generator definitions with their cursors at 0.
func (c GeneratorConfig) BuildDefinitions() ([]*generator.Definition, error) {
	defs := make([]*generator.Definition, 0, len(c.Definitions))
	for _, d := range c.Definitions {
		def, err := generator.NewDefinition(d.Name, d.States, d.ChangesPerDay)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Validate checks every field that can make a run fail before it starts.
func (c GeneratorConfig) Validate() error {
	if !c.DryRun {
		if _, err := platformnet.ParseEndpoint(c.Endpoint); err != nil {
			return fmt.Errorf("%w: endpoint: %w", ErrInvalidConfig, err)
		}
	}
	if _, err := c.StartTime(); err != nil {
		return err
	}
	if c.Days < 0 {
		return fmt.Errorf("%w: days must not be negative", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if c.RatePerSecond < 0 {
		return fmt.Errorf("%w: rate_per_second must not be negative", ErrInvalidConfig)
	}
	if err := c.Tracing.validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Definitions))
	for _, d := range c.Definitions {
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("%w: duplicate definition %q", ErrInvalidConfig, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	if _, err := c.BuildDefinitions(); err != nil {
		return err
	}
	return nil
}

func (t TracingConfig) validate() error {
	if !t.Enabled {
		return nil
	}
	switch t.Exporter {
	case "grpc", "http":
	default:
		return fmt.Errorf("%w: tracing exporter %q (supported: grpc, http)", ErrInvalidConfig, t.Exporter)
	}
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		return fmt.Errorf("%w: tracing sampling_rate must be within [0,1]", ErrInvalidConfig)
	}
	return nil
}
