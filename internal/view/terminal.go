package view

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/scan"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// TerminalOptions configures a Terminal.
type TerminalOptions struct {
	NoColor bool
	Spinner bool
}

// Terminal prints region updates to a writer. Repeated identical status or
// results updates are printed once.
type Terminal struct {
	mu          sync.Mutex
	out         io.Writer
	spin        *spinner.Spinner
	spinning    bool
	lastStatus  string
	lastResults string

	success  *color.Color
	failure  *color.Color
	running  *color.Color
	muted    *color.Color
	headline *color.Color
}

// NewTerminal creates a terminal view writing to out.
func NewTerminal(out io.Writer, opts TerminalOptions) *Terminal {
	t := &Terminal{
		out:      out,
		success:  color.New(color.FgGreen),
		failure:  color.New(color.FgRed, color.Bold),
		running:  color.New(color.FgYellow),
		muted:    color.New(color.FgHiBlack),
		headline: color.New(color.Bold),
	}
	if opts.NoColor {
		for _, c := range []*color.Color{t.success, t.failure, t.running, t.muted, t.headline} {
			c.DisableColor()
		}
	}
	if opts.Spinner {
		t.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond,
			spinner.WithWriter(out),
			spinner.WithSuffix(" "+ButtonScanning),
		)
	}
	return t
}

func (t *Terminal) SetSubmitting(submitting bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.spin == nil || submitting == t.spinning {
		return
	}
	t.spinning = submitting
	if submitting {
		t.spin.Start()
	} else {
		t.spin.Stop()
	}
}

func (t *Terminal) ShowStatus(u StatusUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if u.Text == t.lastStatus {
		return
	}
	t.lastStatus = u.Text

	t.print(func() {
		t.headline.Fprintf(t.out, "status %s\n", time.Now().Format("15:04:05"))
		t.colorFor(u.Status).Fprintln(t.out, u.Text)
		if u.Mode.CloudSafe() {
			t.muted.Fprintln(t.out, "(cloud-safe mode: live scanning is disabled on this deployment)")
		}
	})
}

func (t *Terminal) ShowResults(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if text == t.lastResults {
		return
	}
	t.lastResults = text

	t.print(func() {
		t.headline.Fprintln(t.out, "results")
		fmt.Fprintln(t.out, text)
	})
}

func (t *Terminal) ShowMessage(text string, kind MessageKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.print(func() {
		if kind == MessageError {
			t.failure.Fprintln(t.out, "✗ "+text)
			return
		}
		t.success.Fprintln(t.out, "✓ "+text)
	})
}

func (t *Terminal) HideMessage() {}

// print pauses the spinner around a write so lines are not interleaved.
func (t *Terminal) print(write func()) {
	if t.spinning {
		t.spin.Stop()
		defer t.spin.Start()
	}
	write()
}

func (t *Terminal) colorFor(status scan.Status) *color.Color {
	switch status {
	case scan.StatusCompleted:
		return t.success
	case scan.StatusFailed:
		return t.failure
	case scan.StatusRunning:
		return t.running
	default:
		return t.muted
	}
}
