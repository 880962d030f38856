package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kytnacode/go-jrpcwire/internal/config"
)

// clearEnv unsets the overrides that may be set in the environment running the tests.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"JRPCD_LISTEN", "JRPCD_TRANSPORT", "JRPCD_HTTP_PATH",
		"JRPCD_MAX_CONCURRENCY", "JRPCD_RATE_LIMIT_RPS", "JRPCD_RATE_LIMIT_BURST",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "jrpcd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults without a file", func(t *testing.T) {
		clearEnv(t)

		cfg, err := config.Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		want := config.Config{Listen: ":8080", Transport: "tcp", HTTPPath: "/rpc"}
		if *cfg != want {
			t.Errorf("Load() = %+v, want %+v", *cfg, want)
		}
	})

	t.Run("loads yaml with env references", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MY_ADDR", "127.0.0.1:9000")

		path := writeConfig(t, `
listen: ${MY_ADDR}
transport: HTTP
http_path: /jsonrpc
max_concurrency: 4
rate_limit:
  rps: 2.5
`)

		cfg, err := config.Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		want := config.Config{
			Listen:         "127.0.0.1:9000",
			Transport:      "http",
			HTTPPath:       "/jsonrpc",
			MaxConcurrency: 4,
			RateLimit:      config.RateLimit{RPS: 2.5, Burst: 3},
		}
		if *cfg != want {
			t.Errorf("Load() = %+v, want %+v", *cfg, want)
		}
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("JRPCD_LISTEN", ":7000")
		t.Setenv("JRPCD_MAX_CONCURRENCY", "8")
		t.Setenv("JRPCD_RATE_LIMIT_RPS", "10")
		t.Setenv("JRPCD_RATE_LIMIT_BURST", "20")

		path := writeConfig(t, "listen: \":6000\"\nmax_concurrency: 2\n")

		cfg, err := config.Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Listen != ":7000" || cfg.MaxConcurrency != 8 {
			t.Errorf("Load() = %+v, want listen :7000 and max_concurrency 8", *cfg)
		}

		if cfg.RateLimit != (config.RateLimit{RPS: 10, Burst: 20}) {
			t.Errorf("RateLimit = %+v, want {10 20}", cfg.RateLimit)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		clearEnv(t)

		cfg, err := config.Load(writeConfig(t, ""))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Listen != config.DefaultListen {
			t.Errorf("Listen = %v, want %v", cfg.Listen, config.DefaultListen)
		}
	})
}

func TestLoadErrors(t *testing.T) {
	type data struct {
		content string
		env     map[string]string
		invalid bool // Error wraps ErrInvalidConfig.
	}

	tests := map[string]data{
		"unknown key":           {content: "listen: x\nport: 2\n"},
		"malformed yaml":        {content: "listen: [\n"},
		"unknown transport":     {content: "transport: udp\n", invalid: true},
		"relative http path":    {content: "http_path: rpc\n", invalid: true},
		"negative concurrency":  {content: "max_concurrency: -1\n", invalid: true},
		"negative rate":         {content: "rate_limit:\n  rps: -1\n", invalid: true},
		"invalid env int":       {env: map[string]string{"JRPCD_MAX_CONCURRENCY": "many"}},
		"invalid env float":     {env: map[string]string{"JRPCD_RATE_LIMIT_RPS": "fast"}},
		"invalid env transport": {env: map[string]string{"JRPCD_TRANSPORT": "ws"}, invalid: true},
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)

			for k, v := range data.env {
				t.Setenv(k, v)
			}

			_, err := config.Load(writeConfig(t, data.content))
			if err == nil {
				t.Fatal("Load() error = nil, want an error")
			}

			if data.invalid && !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want %v", err, config.ErrInvalidConfig)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)

		if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("Load() error = nil, want an error")
		}
	})
}
