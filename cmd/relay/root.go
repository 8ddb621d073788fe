package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tyrowin/gorelay/internal/config"
	"github.com/Tyrowin/gorelay/internal/logger"
	"github.com/Tyrowin/gorelay/internal/server"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

type options struct {
	cfgFile        string
	port           string
	landingPort    string
	staticDir      string
	noLanding      bool
	allowedOrigins string
	logLevel       string
	logFormat      string
	logOutput      string
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "WebSocket message relay",
		Long: `relay accepts WebSocket connections and forwards every message it
receives to all other connected peers. A message carrying an "app_id" field
registers that identifier for the sending connection.

A companion landing server is started on a separate port.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "", "path to a YAML configuration file")
	flags.StringVar(&opts.port, "port", "", "relay listen address (default \":8080\")")
	flags.StringVar(&opts.landingPort, "landing-port", "", "landing server listen address (default \":3000\")")
	flags.StringVar(&opts.staticDir, "static-dir", "", "directory served by the landing server")
	flags.BoolVar(&opts.noLanding, "no-landing", false, "do not start the landing server")
	flags.StringVar(&opts.allowedOrigins, "allowed-origins", "", "comma separated list of allowed WebSocket origins, * for any")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (text, json)")
	flags.StringVar(&opts.logOutput, "log-output", "", "log output (stdout, stderr, or a file path)")

	return cmd
}

// loadConfig layers explicitly set flags over defaults, file, and environment.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Relay.Port = opts.port
	}
	if flags.Changed("landing-port") {
		cfg.Landing.Port = opts.landingPort
	}
	if flags.Changed("static-dir") {
		cfg.Landing.StaticDir = opts.staticDir
	}
	if flags.Changed("no-landing") {
		cfg.Landing.Enabled = !opts.noLanding
	}
	if flags.Changed("allowed-origins") {
		cfg.Relay.AllowedOrigins = config.ParseOrigins(opts.allowedOrigins)
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
	if flags.Changed("log-output") {
		cfg.Logging.Output = opts.logOutput
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run starts the relay and landing servers and blocks until a signal
// arrives or the relay listener fails.
func run(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Close() }()

	log.Info("Starting relay", "version", Version)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay := server.NewRelay(cfg.Relay, log)
	go relay.Run()

	relayServer := server.CreateServer(cfg.Relay.Port, server.SetupRoutes(relay), log)
	relayErr := make(chan error, 1)
	go func() {
		relayErr <- server.StartServer(relayServer, log.With("component", "relay_http"))
	}()

	var landingServer *http.Server
	if cfg.Landing.Enabled {
		landingLog := log.With("component", "landing")
		landingServer = server.CreateServer(cfg.Landing.Port,
			server.SetupLandingRoutes(cfg.Landing, cfg.Relay.Port, landingLog), landingLog)
		go func() {
			if err := server.StartServer(landingServer, landingLog); err != nil {
				landingLog.Error("Landing server stopped; relay keeps running", "error", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-relayErr:
		if err != nil {
			log.Error("Relay listener failed", "error", err)
			runErr = fmt.Errorf("relay listener: %w", err)
		}
	}

	shutdown(cfg, log, relay, relayServer, landingServer)
	return runErr
}

func shutdown(cfg *config.Config, log *logger.Logger, relay *server.Relay, servers ...*http.Server) {
	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := server.ShutdownServer(srv, cfg.ShutdownTimeout, log); err != nil {
			log.Warn("Server did not shut down cleanly", "addr", srv.Addr, "error", err)
		}
	}

	if err := relay.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Warn("Relay did not shut down cleanly", "error", err)
	}
}
