// Package config loads the jrpcd configuration from a YAML file and JRPCD_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Transports served by jrpcd.
const (
	TransportTCP  = "tcp"
	TransportHTTP = "http"
)

// Defaults applied to unset fields.
const (
	DefaultListen    = ":8080"
	DefaultTransport = TransportTCP
	DefaultHTTPPath  = "/rpc"
)

// ErrInvalidConfig is returned when the configuration has an invalid value.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the daemon configuration.
type Config struct {
	Listen         string    `yaml:"listen"`          // Address to listen on.
	Transport      string    `yaml:"transport"`       // TransportTCP or TransportHTTP.
	HTTPPath       string    `yaml:"http_path"`       // Path of the endpoint, HTTP only.
	MaxConcurrency int       `yaml:"max_concurrency"` // Calls of a batch running at once, 0 means no limit.
	RateLimit      RateLimit `yaml:"rate_limit"`
}

// RateLimit holds the admission control settings. A zero RPS disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Load loads the configuration. The YAML file at path is read first, with ${VAR} references expanded, then JRPCD_*
// environment variables override it, then defaults are applied and the result is validated. An empty path skips
// the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// 1. Load from YAML file
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := decode([]byte(os.ExpandEnv(string(file))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// 2. Override with environment variables
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	// 3. Defaults and validation
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decode rejects unknown keys, an empty document leaves cfg unchanged.
func decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("JRPCD_LISTEN"); v != "" {
		cfg.Listen = v
	}

	if v := os.Getenv("JRPCD_TRANSPORT"); v != "" {
		cfg.Transport = v
	}

	if v := os.Getenv("JRPCD_HTTP_PATH"); v != "" {
		cfg.HTTPPath = v
	}

	if v := os.Getenv("JRPCD_MAX_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid JRPCD_MAX_CONCURRENCY: %w", err)
		}

		cfg.MaxConcurrency = n
	}

	if v := os.Getenv("JRPCD_RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid JRPCD_RATE_LIMIT_RPS: %w", err)
		}

		cfg.RateLimit.RPS = rps
	}

	if v := os.Getenv("JRPCD_RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid JRPCD_RATE_LIMIT_BURST: %w", err)
		}

		cfg.RateLimit.Burst = n
	}

	return nil
}

func (c *Config) setDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}

	if c.Transport == "" {
		c.Transport = DefaultTransport
	}

	c.Transport = strings.ToLower(c.Transport)

	if c.HTTPPath == "" {
		c.HTTPPath = DefaultHTTPPath
	}

	// A limiter with a zero burst rejects every call.
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = int(math.Ceil(c.RateLimit.RPS))
	}
}

// Validate checks the values of c.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportTCP, TransportHTTP:
	default:
		return fmt.Errorf("transport must be %q or %q, got %q: %w", TransportTCP, TransportHTTP, c.Transport,
			ErrInvalidConfig)
	}

	if !strings.HasPrefix(c.HTTPPath, "/") {
		return fmt.Errorf("http_path must start with /, got %q: %w", c.HTTPPath, ErrInvalidConfig)
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must not be negative, got %d: %w", c.MaxConcurrency, ErrInvalidConfig)
	}

	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit must not be negative: %w", ErrInvalidConfig)
	}

	return nil
}
