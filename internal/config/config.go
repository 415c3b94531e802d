// Package config provides configuration types and defaults for wavecut.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/wavecut/internal/catalog"
	"github.com/zjrosen/wavecut/internal/log"
	"github.com/zjrosen/wavecut/internal/planner"
	"github.com/zjrosen/wavecut/internal/tracing"
)

// DefaultPath is where a default config is written when none exists.
const DefaultPath = ".wavecut/config.yaml"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration options for wavecut.
type Config struct {
	Catalog    CatalogConfig  `mapstructure:"catalog"`
	Window     WindowConfig   `mapstructure:"window"`
	StagingDir string         `mapstructure:"staging_dir"`
	OutputDir  string         `mapstructure:"output_dir"`
	Stations   []string       `mapstructure:"stations"` // empty keeps every station
	Format     string         `mapstructure:"format"`   // artifact extension, "MSEED"
	Fetch      FetchConfig    `mapstructure:"fetch"`
	Index      IndexConfig    `mapstructure:"index"`
	Metrics    MetricsConfig  `mapstructure:"metrics"`
	Tracing    tracing.Config `mapstructure:"tracing"`
}

// CatalogConfig locates the catalog listing and the filtered event table.
type CatalogConfig struct {
	Input    string         `mapstructure:"input"`    // raw catalog text listing
	Filtered string         `mapstructure:"filtered"` // filtered CSV, input of a run
	Bounds   catalog.Bounds `mapstructure:"bounds"`
}

// WindowConfig places the trim window around the origin time.
type WindowConfig struct {
	BeforeSeconds float64 `mapstructure:"before_seconds"`
	AfterSeconds  float64 `mapstructure:"after_seconds"`
}

// Offsets converts the window to planner offsets.
func (w WindowConfig) Offsets() planner.Offsets {
	return planner.Offsets{
		Before: time.Duration(w.BeforeSeconds * float64(time.Second)),
		After:  time.Duration(w.AfterSeconds * float64(time.Second)),
	}
}

// FetchConfig describes the download command run once per event.
type FetchConfig struct {
	Command         string        `mapstructure:"command"`
	Args            []string      `mapstructure:"args"` // {day}, {year} and {staging} are expanded
	WorkDir         string        `mapstructure:"work_dir"`
	Timeout         time.Duration `mapstructure:"timeout"`           // 0 = no limit
	FailureCacheTTL time.Duration `mapstructure:"failure_cache_ttl"` // 0 = retry every event
	WatchStaging    bool          `mapstructure:"watch_staging"`
}

// IndexConfig controls the sqlite run index.
type IndexConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // default {output_dir}/index.db
}

// MetricsConfig controls the prometheus textfile.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // default {output_dir}/wavecut.prom
}

// Defaults returns a Config with the values the processing scripts always
// used.
func Defaults() Config {
	return Config{
		Catalog: CatalogConfig{
			Input:    "catalog.txt",
			Filtered: "filtered_catalog.csv",
			Bounds:   catalog.DefaultBounds(),
		},
		Window: WindowConfig{
			BeforeSeconds: planner.DefaultBefore.Seconds(),
			AfterSeconds:  planner.DefaultAfter.Seconds(),
		},
		StagingDir: "staging",
		OutputDir:  "events",
		Format:     "MSEED",
		Fetch: FetchConfig{
			Command: "./download_by_day.sh",
			Args:    []string{"{day}", "{year}"},
		},
		Index:   IndexConfig{Enabled: true},
		Metrics: MetricsConfig{Enabled: false},
		Tracing: tracing.DefaultConfig(),
	}
}

// SetDefaults seeds v with Defaults so that every key is known to viper,
// including ones absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("catalog.input", d.Catalog.Input)
	v.SetDefault("catalog.filtered", d.Catalog.Filtered)
	v.SetDefault("catalog.bounds.lat_min", d.Catalog.Bounds.LatMin)
	v.SetDefault("catalog.bounds.lat_max", d.Catalog.Bounds.LatMax)
	v.SetDefault("catalog.bounds.lon_min", d.Catalog.Bounds.LonMin)
	v.SetDefault("catalog.bounds.lon_max", d.Catalog.Bounds.LonMax)
	v.SetDefault("catalog.bounds.mag_min", d.Catalog.Bounds.MagMin)
	v.SetDefault("catalog.bounds.mag_max", d.Catalog.Bounds.MagMax)
	v.SetDefault("catalog.bounds.depth_min", d.Catalog.Bounds.DepthMin)
	v.SetDefault("catalog.bounds.depth_max", d.Catalog.Bounds.DepthMax)
	v.SetDefault("window.before_seconds", d.Window.BeforeSeconds)
	v.SetDefault("window.after_seconds", d.Window.AfterSeconds)
	v.SetDefault("staging_dir", d.StagingDir)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("stations", d.Stations)
	v.SetDefault("format", d.Format)
	v.SetDefault("fetch.command", d.Fetch.Command)
	v.SetDefault("fetch.args", d.Fetch.Args)
	v.SetDefault("fetch.work_dir", d.Fetch.WorkDir)
	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.failure_cache_ttl", d.Fetch.FailureCacheTTL)
	v.SetDefault("fetch.watch_staging", d.Fetch.WatchStaging)
	v.SetDefault("index.enabled", d.Index.Enabled)
	v.SetDefault("index.path", d.Index.Path)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Stations = normalizeStations(cfg.Stations)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IndexPath resolves the index database location.
func (c Config) IndexPath() string {
	if c.Index.Path != "" {
		return c.Index.Path
	}
	return filepath.Join(c.OutputDir, "index.db")
}

// MetricsPath resolves the metrics textfile location.
func (c Config) MetricsPath() string {
	if c.Metrics.Path != "" {
		return c.Metrics.Path
	}
	return filepath.Join(c.OutputDir, "wavecut.prom")
}

// TracingConfig returns the tracing settings with the file exporter path
// resolved against the output directory.
func (c Config) TracingConfig() tracing.Config {
	t := c.Tracing
	if t.FilePath == "" {
		t.FilePath = filepath.Join(c.OutputDir, "traces", "traces.jsonl")
	}
	return t
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	b := c.Catalog.Bounds
	for _, r := range []struct {
		name   string
		lo, hi float64
	}{
		{"latitude", b.LatMin, b.LatMax},
		{"longitude", b.LonMin, b.LonMax},
		{"magnitude", b.MagMin, b.MagMax},
		{"depth", b.DepthMin, b.DepthMax},
	} {
		if r.lo > r.hi {
			return fmt.Errorf("%w: catalog.bounds %s range is inverted (%v > %v)", ErrInvalid, r.name, r.lo, r.hi)
		}
	}

	if c.Window.BeforeSeconds < 0 || c.Window.AfterSeconds < 0 {
		return fmt.Errorf("%w: window offsets must not be negative", ErrInvalid)
	}
	if strings.TrimSpace(c.StagingDir) == "" {
		return fmt.Errorf("%w: staging_dir is required", ErrInvalid)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("%w: output_dir is required", ErrInvalid)
	}
	if samePath(c.StagingDir, c.OutputDir) {
		// every event purges the staging directory
		return fmt.Errorf("%w: staging_dir and output_dir must differ", ErrInvalid)
	}
	if strings.TrimSpace(c.Format) == "" {
		return fmt.Errorf("%w: format is required", ErrInvalid)
	}
	if c.Fetch.Timeout < 0 || c.Fetch.FailureCacheTTL < 0 {
		return fmt.Errorf("%w: fetch durations must not be negative", ErrInvalid)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateTracing checks tracing configuration for errors. The file
// exporter path may be empty since it defaults under the output directory.
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("%w: tracing.sample_rate must be between 0.0 and 1.0, got %v", ErrInvalid, t.SampleRate)
	}
	switch t.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return fmt.Errorf("%w: tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", ErrInvalid, t.Exporter)
	}
	if t.Enabled && t.Exporter == tracing.ExporterOTLP && t.OTLPEndpoint == "" {
		return fmt.Errorf("%w: tracing.otlp_endpoint is required when exporter is \"otlp\"", ErrInvalid)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func normalizeStations(codes []string) []string {
	var out []string
	for _, c := range codes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# wavecut configuration

# Earthquake catalog
catalog:
  input: catalog.txt                # catalog text listing read by 'wavecut filter'
  filtered: filtered_catalog.csv    # filtered event table written by 'wavecut filter', read by 'wavecut run'
  bounds:                           # inclusive ranges an event must fall inside
    lat_min: -12.0
    lat_max: -7.0
    lon_min: 118.8
    lon_max: 125.5
    mag_min: 0.0
    mag_max: 9.0
    depth_min: 0
    depth_max: 1000

# Trim window around the origin time
window:
  before_seconds: 60
  after_seconds: 300

# Scratch directory the download command fills; emptied after every event
staging_dir: staging

# Event files land in {output_dir}/{year}/, together with {year}.log
# The failure ledger is {output_dir}/failed.log
output_dir: events

# Station allow-list (empty keeps every station)
# stations: [PAFM, ALRB]
stations: []

# Artifact extension
format: MSEED

# Download command, run once per event for its day
# Placeholders: {day} (zero-padded day of year), {year}, {staging}
fetch:
  command: ./download_by_day.sh
  args: ["{day}", "{year}"]
  # work_dir: /path/to/scripts
  # timeout: 30m                 # kill the download after this long (default: no limit)
  # failure_cache_ttl: 1h        # reuse a failed day's error for later events on that day
  # watch_staging: false         # log files as they arrive in the staging directory

# Run index (sqlite) of every event outcome, see 'wavecut history'
index:
  enabled: true
  # path: events/index.db

# Prometheus textfile written at the end of a run
metrics:
  enabled: false
  # path: events/wavecut.prom

# Tracing of runs, events and stages
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: events/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
