package main

import (
	"fmt"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/client"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/config"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/controller"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/history"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/logging"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/publisher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	serverURL  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "scan-console",
	Short:         "Submit network scans and follow them to completion",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a config file (default searches ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "Scan service base URL, overrides server.base_url")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level, overrides logging.level")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
}

// app holds what every command builds from configuration.
type app struct {
	cfg     *config.Config
	logger  *zap.SugaredLogger
	pub     *publisher.Publisher
	history *history.Store
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	logger.Debugw("Configuration loaded",
		"base_url", cfg.Server.BaseURL,
		"poll_interval", cfg.PollInterval(),
		"events", cfg.Events.Enabled,
		"history", cfg.History.Enabled,
	)
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) newClient() (*client.Client, error) {
	c, err := client.New(client.Config{
		BaseURL:   a.cfg.Server.BaseURL,
		Timeout:   a.cfg.RequestTimeout(),
		RateLimit: a.cfg.Server.RateLimit,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan client: %w", err)
	}
	return c, nil
}

func (a *app) openHistory() (*history.Store, error) {
	if a.history != nil || !a.cfg.History.Enabled {
		return a.history, nil
	}
	store, err := history.Open(a.cfg.History.Path)
	if err != nil {
		return nil, err
	}
	a.history = store
	return store, nil
}

// listeners connects the lifecycle sinks that are enabled. A broker that
// cannot be reached is logged and skipped so scans still run.
func (a *app) listeners() ([]controller.Listener, error) {
	var ls []controller.Listener

	if a.cfg.Events.Enabled {
		pub, err := publisher.New(a.cfg.Events.URL, a.cfg.Events.Exchange, a.logger)
		if err != nil {
			a.logger.Warnw("Lifecycle events disabled", "error", err)
		} else {
			a.pub = pub
			ls = append(ls, pub)
		}
	}

	store, err := a.openHistory()
	if err != nil {
		return nil, err
	}
	if store != nil {
		ls = append(ls, store)
	}
	return ls, nil
}

func (a *app) controllerOptions(ls []controller.Listener) controller.Options {
	return controller.Options{
		PollInterval:     a.cfg.PollInterval(),
		DefaultPorts:     a.cfg.Scan.DefaultPorts,
		StrictValidation: a.cfg.Scan.StrictValidation,
		Listeners:        ls,
	}
}

func (a *app) close() {
	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.logger.Warnw("Failed to close publisher", "error", err)
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warnw("Failed to close history", "error", err)
		}
	}
	_ = a.logger.Sync()
}
