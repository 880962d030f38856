// Command jrpcd serves a few demo JSON-RPC 2.0 methods over TCP or HTTP.
//
//	jrpcd --config jrpcd.yaml
//	jrpcd --transport http --listen :8080
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/kytnacode/go-jrpcwire"
	"github.com/kytnacode/go-jrpcwire/internal/config"
)

// Set at build time with -ldflags.
var (
	version = "dev"
	commit  = "none"
)

const shutdownTimeout = 5 * time.Second

// CLI is the command line of jrpcd. Flags override the configuration file and the environment.
type CLI struct {
	Config    string           `short:"c" type:"path" help:"Path to the YAML configuration file."`
	Listen    string           `help:"Address to listen on."`
	Transport string           `help:"Transport to serve, tcp or http."`
	Version   kong.VersionFlag `help:"Show version information."`
}

func main() {
	var cli CLI

	kong.Parse(&cli,
		kong.Name("jrpcd"),
		kong.Description("JSON-RPC 2.0 demo server"),
		kong.Vars{"version": fmt.Sprintf("%s (%s)", version, commit)},
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	logger := log.New(os.Stderr, "jrpcd ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Run(ctx, logger); err != nil {
		logger.Fatal(err)
	}
}

// Run loads the configuration and serves until ctx is done.
func (c *CLI) Run(ctx context.Context, logger *log.Logger) error {
	cfg, err := c.config()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	s, err := newServer(cfg, logger.Printf)
	if err != nil {
		return err
	}

	logger.Printf("serving %s on %s", cfg.Transport, cfg.Listen)

	if cfg.Transport == config.TransportHTTP {
		return serveHTTP(ctx, cfg, s)
	}

	return serveTCP(ctx, cfg, s)
}

// config loads the configuration and applies the flags.
func (c *CLI) config() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}

	if c.Listen != "" {
		cfg.Listen = c.Listen
	}

	if c.Transport != "" {
		cfg.Transport = strings.ToLower(c.Transport)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newServer returns a server with the jrpcd methods registered.
func newServer(cfg *config.Config, errorLog func(string, ...any)) (*jrpc.Server, error) {
	opts := []jrpc.Option{jrpc.WithMaxConcurrency(cfg.MaxConcurrency)}

	if cfg.RateLimit.RPS > 0 {
		opts = append(opts, jrpc.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	s := jrpc.NewServer(errorLog, opts...)

	if err := methods().RegisterTo(s); err != nil {
		return nil, fmt.Errorf("failed to register methods: %w", err)
	}

	return s, nil
}

func serveTCP(ctx context.Context, cfg *config.Config, s *jrpc.Server) error {
	var lc net.ListenConfig

	lis, err := lc.Listen(ctx, "tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = lis.Close() })
	defer stop()

	if err := s.Accept(ctx, lis); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to accept: %w", err)
	}

	return nil
}

func serveHTTP(ctx context.Context, cfg *config.Config, s *jrpc.Server) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.HTTPPath, s)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shut down: %w", err)
	}

	return nil
}
