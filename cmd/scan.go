package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/controller"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/scan"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/view"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	scanForm      scan.Form
	scanInterval  time.Duration
	scanTimeout   time.Duration
	scanNoColor   bool
	scanNoSpinner bool
	scanStrict    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Start a scan and poll it until it ends",
	Long: `The scan command submits a scan to the scan service, then polls its
status until the scan completes or fails. Press Ctrl+C to stop polling.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		api, err := a.newClient()
		if err != nil {
			return err
		}
		ls, err := a.listeners()
		if err != nil {
			return err
		}

		opts := a.controllerOptions(ls)
		if scanInterval > 0 {
			opts.PollInterval = scanInterval
		}
		if scanStrict {
			opts.StrictValidation = true
		}

		tty := isatty.IsTerminal(os.Stdout.Fd())
		term := view.NewTerminal(os.Stdout, view.TerminalOptions{
			NoColor: scanNoColor || !tty,
			Spinner: !scanNoSpinner && tty,
		})
		ctrl := controller.New(api, term, a.logger, opts)
		defer ctrl.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if scanTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, scanTimeout)
			defer cancel()
		}

		if err := ctrl.StartScan(ctx, scanForm); err != nil {
			// the view already shows the reason
			if ctx.Err() != nil {
				return contextExit(ctx.Err())
			}
			return &exitError{code: 1}
		}

		outcome, err := ctrl.Wait(ctx)
		if err != nil {
			ctrl.Stop()
			return contextExit(err)
		}

		switch outcome.State {
		case controller.StateCompleted:
			return nil
		case controller.StateFailed:
			return &exitError{code: 2}
		default:
			return &exitError{code: 1}
		}
	},
}

// contextExit maps a timeout to 124 and an interrupt to 130.
func contextExit(err error) *exitError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &exitError{code: 124}
	}
	return &exitError{code: 130}
}

func init() {
	f := scanCmd.Flags()
	f.StringVarP(&scanForm.IPRange, "ip-range", "r", "", "IP range to scan, e.g. 192.168.1.0/24")
	f.StringVarP(&scanForm.Gateway, "gateway", "g", "", "Gateway address (optional)")
	f.StringVarP(&scanForm.Ports, "ports", "p", "", "Comma separated ports or ranges, e.g. 22,80,8000-8010")
	f.BoolVar(&scanForm.Demo, "demo", false, "Run the scan in demo mode")
	f.DurationVar(&scanInterval, "interval", 0, "Poll interval, overrides poll.interval")
	f.DurationVar(&scanTimeout, "timeout", 0, "Give up after this long (0 waits until the scan ends)")
	f.BoolVar(&scanStrict, "strict", false, "Validate the IP range and gateway before submitting")
	f.BoolVar(&scanNoColor, "no-color", false, "Disable colored output")
	f.BoolVar(&scanNoSpinner, "no-spinner", false, "Disable the progress spinner")
}
