package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/api"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/controller"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/view"
	"github.com/spf13/cobra"
)

var (
	servePort int
	serveEcho bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP console",
	Long:  `The serve command exposes the scan controller over a local HTTP API so a browser page or script can start, stop and watch scans.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		client, err := a.newClient()
		if err != nil {
			return err
		}
		ls, err := a.listeners()
		if err != nil {
			return err
		}

		board := view.NewBoard()
		var v view.View = board
		if serveEcho {
			v = view.Multi{board, view.NewTerminal(os.Stdout, view.TerminalOptions{})}
		}
		ctrl := controller.New(client, v, a.logger, a.controllerOptions(ls))
		defer ctrl.Close()

		var hist api.HistoryReader
		if a.history != nil {
			hist = a.history
		}
		server := api.New(ctrl, board, hist, a.logger)

		port := a.cfg.Console.Port
		if servePort > 0 {
			port = servePort
		}

		// Create HTTP server
		httpServer := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      server.Router(),
			ReadTimeout:  time.Duration(a.cfg.Console.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(a.cfg.Console.WriteTimeout) * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Infow("Console listening", "port", port, "scan_service", client.BaseURL())
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		// Wait for interrupt signal
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			return fmt.Errorf("HTTP server error: %w", err)
		}

		a.logger.Info("Shutting down console...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ctrl.Stop()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Errorf("Console forced to shutdown: %v", err)
		}

		a.logger.Info("Console stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on, overrides console.port")
	serveCmd.Flags().BoolVar(&serveEcho, "echo", false, "Also print scan updates to the terminal")
}
