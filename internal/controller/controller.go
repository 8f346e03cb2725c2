// Package controller drives a scan from submission to a terminal state. It
// submits the request, polls the status endpoint on a fixed period and
// keeps the view in sync with what the scan service reports.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/scan"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/view"
	"go.uber.org/zap"
)

// DefaultPollInterval is the period between two status fetches.
const DefaultPollInterval = 3 * time.Second

var (
	// ErrStopped is reported for a scan that was stopped or superseded
	// before it finished.
	ErrStopped = errors.New("scan stopped")

	// ErrNoScan is returned by Wait when no scan was ever started.
	ErrNoScan = errors.New("no scan started")
)

// ScanAPI is the scan service as seen by the controller.
type ScanAPI interface {
	StartScan(ctx context.Context, req scan.Request) (scan.ID, error)
	FetchResults(ctx context.Context, id scan.ID) (*scan.Snapshot, error)
}

// State is the controller state.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateError      State = "error"
)

// Outcome describes how a scan ended.
type Outcome struct {
	ScanID   scan.ID
	State    State
	Snapshot *scan.Snapshot
	Err      error
}

// Options configures a Controller.
type Options struct {
	PollInterval     time.Duration
	DefaultPorts     []int
	StrictValidation bool
	Listeners        []Listener
}

// run tracks one StartScan call until it ends.
type run struct {
	request  scan.Request
	finished chan struct{}
	outcome  Outcome
}

// Controller owns the scan handle and the poll loop. At most one poll loop is
// active at any time.
type Controller struct {
	api    ScanAPI
	view   view.View
	logger *zap.SugaredLogger
	opts   Options
	events *dispatcher

	// submitMu serializes StartScan calls.
	submitMu sync.Mutex

	mu       sync.Mutex
	state    State
	scanID   scan.ID
	gen      uint64
	current  *run
	last     *scan.Snapshot
	cancel   context.CancelFunc
	loopDone chan struct{}

	activePolls atomic.Int32
}

// New creates a controller and puts the view in its initial state.
func New(api ScanAPI, v view.View, logger *zap.SugaredLogger, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	c := &Controller{
		api:    api,
		view:   v,
		logger: logger,
		opts:   opts,
		state:  StateIdle,
	}
	if len(opts.Listeners) > 0 {
		c.events = newDispatcher(opts.Listeners, logger)
	}

	v.SetSubmitting(false)
	v.ShowResults(view.EmptyResults)
	v.ShowStatus(view.StatusUpdate{Text: view.PlaceholderStatus("Awaiting scan start...")})
	return c
}

// StartScan submits a new scan and arms the poll loop. Any previous poll loop
// is stopped first. ctx bounds the submission request only; polling runs
// until the scan ends, Stop is called or another scan is started.
func (c *Controller) StartScan(ctx context.Context, form scan.Form) error {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	c.mu.Lock()
	cancel, done := c.detachLoop()
	if c.state == StatePolling || c.state == StateSubmitting {
		c.emit(Event{Type: EventStopped, ScanID: c.scanID, Err: ErrStopped})
	}
	c.endRun(StateIdle, ErrStopped)
	c.gen++
	gen := c.gen
	r := &run{finished: make(chan struct{})}
	c.current = r
	c.state = StateSubmitting
	c.scanID = ""
	c.last = nil

	c.view.HideMessage()
	c.view.ShowResults(view.EmptyResults)
	c.view.ShowStatus(view.StatusUpdate{Text: view.PlaceholderStatus("Starting scan...")})
	c.view.SetSubmitting(true)
	c.mu.Unlock()

	waitLoop(cancel, done)

	req, err := scan.BuildRequest(form, scan.BuildOptions{
		DefaultPorts: c.opts.DefaultPorts,
		Strict:       c.opts.StrictValidation,
	})
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return ErrStopped
		}
		msg := fmt.Sprintf("Error starting scan: %v.", err)
		if errors.Is(err, scan.ErrMissingIPRange) {
			msg = "Please enter an IP range."
		}
		c.fail(r, "", msg, err)
		return err
	}
	r.request = req

	c.logger.Infow("Submitting scan",
		"ip_range", req.IPRange,
		"ports", req.Ports,
		"demo", req.Demo,
	)

	id, err := c.api.StartScan(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		if err == nil {
			c.logger.Warnw("Scan created after stop, not polling it", "scan_id", id)
		}
		return ErrStopped
	}

	if err != nil {
		c.logger.Warnw("Scan submission failed", "error", err)
		c.fail(r, "", fmt.Sprintf("Error starting scan: %v. Check server logs.", err), err)
		return err
	}

	c.state = StatePolling
	c.scanID = id
	c.view.ShowMessage(fmt.Sprintf("Scan started with ID: %s. Polling for results...", id), view.MessageSuccess)
	c.emit(Event{Type: EventSubmitted, ScanID: id, Request: req})

	loopCtx, loopCancel := context.WithCancel(context.Background())
	c.cancel = loopCancel
	c.loopDone = make(chan struct{})
	c.activePolls.Add(1)
	go c.pollLoop(loopCtx, gen, id, c.loopDone)

	c.logger.Infow("Scan started", "scan_id", id, "poll_interval", c.opts.PollInterval)
	return nil
}

// Stop cancels polling and any in-flight status request.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done := c.detachLoop()
	c.gen++
	active := c.state == StatePolling || c.state == StateSubmitting
	id := c.scanID
	if active {
		c.state = StateIdle
		c.view.SetSubmitting(false)
		c.view.ShowMessage(stoppedMessage(id), view.MessageSuccess)
		c.endRun(StateIdle, ErrStopped)
		c.emit(Event{Type: EventStopped, ScanID: id, Err: ErrStopped})
	}
	c.mu.Unlock()

	waitLoop(cancel, done)

	if active {
		c.logger.Infow("Scan stopped", "scan_id", id)
	}
}

// Close stops polling and flushes pending lifecycle events. Events raised
// after Close are dropped.
func (c *Controller) Close() {
	c.Stop()

	c.mu.Lock()
	events := c.events
	c.events = nil
	c.mu.Unlock()

	if events != nil {
		events.close()
	}
}

// Wait blocks until the most recently started scan ends.
func (c *Controller) Wait(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()

	if r == nil {
		return Outcome{}, ErrNoScan
	}

	select {
	case <-r.finished:
		return r.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ScanID returns the stored scan handle, if any.
func (c *Controller) ScanID() (scan.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanID, c.scanID != ""
}

// LastSnapshot returns the most recent snapshot of the current scan.
func (c *Controller) LastSnapshot() *scan.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// ActivePolls reports how many poll loops are running. It is never above one.
func (c *Controller) ActivePolls() int {
	return int(c.activePolls.Load())
}

func (c *Controller) pollLoop(ctx context.Context, gen uint64, id scan.ID, done chan struct{}) {
	defer close(done)
	defer c.activePolls.Add(-1)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.fetchResults(ctx, gen, id) {
				return
			}
		}
	}
}

// fetchResults runs one poll tick and reports whether polling continues.
func (c *Controller) fetchResults(ctx context.Context, gen uint64, id scan.ID) bool {
	snap, err := c.api.FetchResults(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		c.logger.Debugw("Discarding stale poll result", "scan_id", id)
		return false
	}

	r := c.current

	if err != nil {
		c.logger.Warnw("Polling failed", "scan_id", id, "error", err)
		c.releaseLoop()
		c.fail(r, id, fmt.Sprintf("Error fetching results: %v. Scan stopped.", err), err)
		c.scanID = ""
		return false
	}

	status := snap.EffectiveStatus()
	c.last = snap
	c.view.ShowStatus(view.StatusUpdate{
		Text:   view.StatusText(id, snap),
		Status: status,
		Mode:   snap.Mode,
	})
	c.view.ShowResults(view.ResultsText(snap))

	if !status.Terminal() {
		c.logger.Debugw("Scan in progress", "scan_id", id, "status", status)
		return true
	}

	c.releaseLoop()
	c.view.SetSubmitting(false)

	if status == scan.StatusCompleted {
		c.state = StateCompleted
		c.view.ShowMessage(fmt.Sprintf("Scan %s completed successfully.", id), view.MessageSuccess)
		c.emit(Event{Type: EventCompleted, ScanID: id, Request: r.request, Snapshot: snap})
	} else {
		c.state = StateFailed
		c.view.ShowMessage(fmt.Sprintf("Scan %s failed. Check status output.", id), view.MessageError)
		c.emit(Event{Type: EventFailed, ScanID: id, Request: r.request, Snapshot: snap})
	}
	c.endRun(c.state, nil)

	c.logger.Infow("Scan finished", "scan_id", id, "status", status, "mode", snap.Mode)
	return false
}

// fail moves to the error state. Caller holds c.mu.
func (c *Controller) fail(r *run, id scan.ID, msg string, err error) {
	c.state = StateError
	c.view.SetSubmitting(false)
	c.view.ShowMessage(msg, view.MessageError)
	c.emit(Event{Type: EventErrored, ScanID: id, Request: r.request, Err: err})
	c.endRun(StateError, err)
}

// endRun records the outcome of the current run once. Caller holds c.mu.
func (c *Controller) endRun(state State, err error) {
	r := c.current
	if r == nil {
		return
	}
	select {
	case <-r.finished:
		return
	default:
	}
	r.outcome = Outcome{ScanID: c.scanID, State: state, Snapshot: c.last, Err: err}
	close(r.finished)
}

// detachLoop hands the running loop to the caller, who must pass the result
// to waitLoop after releasing c.mu.
func (c *Controller) detachLoop() (context.CancelFunc, chan struct{}) {
	cancel, done := c.cancel, c.loopDone
	c.cancel, c.loopDone = nil, nil
	return cancel, done
}

// releaseLoop is called by the loop itself when it ends on its own. The done
// channel stays in place so the next StartScan still waits for the goroutine
// to exit.
func (c *Controller) releaseLoop() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func waitLoop(cancel context.CancelFunc, done chan struct{}) {
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func stoppedMessage(id scan.ID) string {
	if id == "" {
		return "Scan stopped."
	}
	return fmt.Sprintf("Scan %s stopped.", id)
}
