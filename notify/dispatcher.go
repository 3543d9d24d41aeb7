/*
dispatcher.go - Asynchronous fan-out of lifecycle events

PURPOSE:
  Dispatcher implements timesheet.Notifier. Emit only enqueues; a single
  worker delivers each event to every sink in order. A failing or
  panicking sink is logged and never reaches the caller, so a committed
  transition cannot be undone by a notification problem.

BACKPRESSURE:
  The queue is bounded. When it is full the event is dropped and logged
  at WARN rather than blocking the request that produced it.

LIFECYCLE:
  d := notify.NewDispatcher(logger, 256, notify.NewLogSink(logger), slackSink)
  d.Start()
  defer d.Close() // drains queued events

SEE ALSO:
  - timesheet/events.go: Event and Notifier
  - slack.go:            Slack sink
*/
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/williambergmann/timesheet/timesheet"
)

// Sink delivers one event to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, e timesheet.Event) error
}

// DefaultQueueSize is used when NewDispatcher is given a non-positive size.
const DefaultQueueSize = 256

type envelope struct {
	ctx   context.Context
	event timesheet.Event
}

// Dispatcher queues events and delivers them on a background worker.
type Dispatcher struct {
	sinks  []Sink
	queue  chan envelope
	logger *slog.Logger

	// SendTimeout bounds a single sink delivery.
	SendTimeout time.Duration

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

var _ timesheet.Notifier = (*Dispatcher)(nil)

func NewDispatcher(logger *slog.Logger, queueSize int, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		sinks:       sinks,
		queue:       make(chan envelope, queueSize),
		logger:      logger.With("component", "notify"),
		SendTimeout: 10 * time.Second,
	}
}

// Start launches the delivery worker. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	d.wg.Add(1)
	go d.run()
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		// nothing is draining; deliver inline so no event is lost
		for env := range d.queue {
			d.deliver(env)
		}
		return
	}
	d.wg.Wait()
}

// Emit enqueues e. It never blocks and never fails the caller.
func (d *Dispatcher) Emit(ctx context.Context, e timesheet.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("event dropped after close", "event", e.Type, "timesheet_id", e.TimesheetID)
		return
	}

	// the request context ends when the handler returns; keep its values only
	env := envelope{ctx: context.WithoutCancel(ctx), event: e}
	select {
	case d.queue <- env:
	default:
		d.logger.Warn("notification queue full, event dropped",
			"event", e.Type, "timesheet_id", e.TimesheetID, "user_id", e.UserID)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for env := range d.queue {
		d.deliver(env)
	}
}

func (d *Dispatcher) deliver(env envelope) {
	for _, sink := range d.sinks {
		if err := d.send(env, sink); err != nil {
			d.logger.Error("notification failed",
				"sink", sink.Name(), "event", env.event.Type,
				"timesheet_id", env.event.TimesheetID, "user_id", env.event.UserID, "error", err)
		}
	}
}

func (d *Dispatcher) send(env envelope, sink Sink) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()

	ctx := env.ctx
	if d.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.SendTimeout)
		defer cancel()
	}
	return sink.Send(ctx, env.event)
}
