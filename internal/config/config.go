// Package config loads symbol-takeoff settings from defaults, an optional
// YAML file, a .env file and TAKEOFF_* environment variables, in that order
// of increasing precedence. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/symbol-takeoff/internal/logging"
	"github.com/ironsheep/symbol-takeoff/internal/takeoff"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TAKEOFF_"

// Detector kinds.
const (
	DetectorShapes = "shapes"
	DetectorRemote = "remote"
)

// Config is the full application configuration.
type Config struct {
	Engine   takeoff.Config  `yaml:"engine"`
	Detector DetectorConfig  `yaml:"detector"`
	Log      logging.Options `yaml:"log"`
	History  HistoryConfig   `yaml:"history"`
}

// DetectorConfig selects and configures the Detection Capability.
type DetectorConfig struct {
	Kind       string        `yaml:"kind" validate:"oneof=shapes remote"`
	URL        string        `yaml:"url" validate:"required_if=Kind remote"`
	ClassesURL string        `yaml:"classes_url" validate:"omitempty,url"`
	PoolSize   int           `yaml:"pool_size" validate:"gte=1"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
}

// HistoryConfig points at the Redis instance holding past results. An
// empty Addr disables history.
type HistoryConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix" validate:"required"`

	// TTL expires stored results; zero keeps them.
	TTL time.Duration `yaml:"ttl" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: takeoff.DefaultConfig(),
		Detector: DetectorConfig{
			Kind:     DetectorShapes,
			PoolSize: 4,
			Timeout:  30 * time.Second,
		},
		Log: logging.Options{Level: "info"},
		History: HistoryConfig{
			Prefix: "takeoff",
		},
	}
}

// Load builds the configuration. path may be empty; a missing .env file is
// not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

// applyEnv overlays TAKEOFF_* variables onto cfg.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.integer("TILE_SIZE", &cfg.Engine.TileSize)
	e.number("OVERLAP", &cfg.Engine.OverlapFraction)
	e.number("CONFIDENCE", &cfg.Engine.ConfidenceThreshold)
	e.flag("SKIP_BLANK", &cfg.Engine.SkipBlank)
	e.flag("SKIP_EDGES", &cfg.Engine.SkipEdges)
	e.integer("EDGE_MARGIN", &cfg.Engine.EdgeMarginPx)
	e.flag("PRIORITIZE", &cfg.Engine.PrioritizeByComplexity)
	e.integer("MAX_WORKERS", &cfg.Engine.MaxWorkers)
	e.integer("CACHE_CAPACITY", &cfg.Engine.CacheCapacity)
	e.integer("EARLY_STOP", &cfg.Engine.EarlyStopCount)
	e.number("IOU_THRESHOLD", &cfg.Engine.IoUSuppressionThreshold)

	e.str("DETECTOR", &cfg.Detector.Kind)
	e.str("DETECTOR_URL", &cfg.Detector.URL)
	e.str("DETECTOR_CLASSES_URL", &cfg.Detector.ClassesURL)
	e.integer("DETECTOR_POOL", &cfg.Detector.PoolSize)
	e.dur("DETECTOR_TIMEOUT", &cfg.Detector.Timeout)

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FILE", &cfg.Log.File)

	e.str("REDIS_ADDR", &cfg.History.Addr)
	e.str("REDIS_PASSWORD", &cfg.History.Password)
	e.integer("REDIS_DB", &cfg.History.DB)
	e.str("HISTORY_PREFIX", &cfg.History.Prefix)
	e.dur("HISTORY_TTL", &cfg.History.TTL)

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(name, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s%s=%q: %w", EnvPrefix, name, v, err))
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) integer(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) number(name string, dst *float64) {
	if v, ok := e.get(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) flag(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) dur(name string, dst *time.Duration) {
	if v, ok := e.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = d
	}
}
