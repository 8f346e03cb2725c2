package controller

import (
	"context"
	"sync"
	"time"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/scan"
	"go.uber.org/zap"
)

// EventType names a scan lifecycle transition.
type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventErrored   EventType = "errored"
	EventStopped   EventType = "stopped"
)

// Event is delivered to listeners in the order transitions happen.
type Event struct {
	Type     EventType
	ScanID   scan.ID
	Request  scan.Request
	Snapshot *scan.Snapshot
	Err      error
	At       time.Time
}

// Listener observes scan lifecycle events. Errors are logged and never
// change the scan state.
type Listener interface {
	HandleScanEvent(ctx context.Context, e Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, e Event) error

func (f ListenerFunc) HandleScanEvent(ctx context.Context, e Event) error { return f(ctx, e) }

const (
	eventQueueSize  = 64
	listenerTimeout = 5 * time.Second
)

// dispatcher delivers events to listeners from a single goroutine.
type dispatcher struct {
	listeners []Listener
	logger    *zap.SugaredLogger
	queue     chan Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newDispatcher(listeners []Listener, logger *zap.SugaredLogger) *dispatcher {
	d := &dispatcher{
		listeners: listeners,
		logger:    logger,
		queue:     make(chan Event, eventQueueSize),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer d.wg.Done()
	for e := range d.queue {
		for _, l := range d.listeners {
			ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
			if err := l.HandleScanEvent(ctx, e); err != nil {
				d.logger.Warnw("Scan event listener failed",
					"event", e.Type,
					"scan_id", e.ScanID,
					"error", err,
				)
			}
			cancel()
		}
	}
}

func (d *dispatcher) close() {
	d.closeOnce.Do(func() {
		close(d.queue)
		d.wg.Wait()
	})
}

// emit queues an event. Caller holds c.mu so events keep transition order.
func (c *Controller) emit(e Event) {
	if c.events == nil {
		return
	}
	e.At = time.Now().UTC()
	c.events.queue <- e
}
