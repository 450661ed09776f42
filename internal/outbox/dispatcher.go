package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-liquidacion/internal/obs"
	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

// Result is the outcome of one dispatched command.
type Result struct {
	Command  Command
	Response upstream.Result
	Err      error
	Duration time.Duration
}

// Failure is a diagnostics record of a failed dispatch.
type Failure struct {
	CommandID string    `json:"commandId"`
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"sessionId,omitempty"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

// Stats are running dispatcher counters.
type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
}

// Options configures a Dispatcher.
type Options struct {
	Workers    int
	Buffer     int
	Timeout    time.Duration
	FailureLog int
	Logger     zerolog.Logger
	OnResult   func(Result)
}

// Dispatcher runs commands on a bounded worker pool. Enqueue never blocks
// and nothing is rolled back when a command fails.
type Dispatcher struct {
	transport Transport
	opts      Options
	queue     chan Command
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	failMu   sync.Mutex
	failures []Failure

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher starts the worker pool.
func NewDispatcher(t Transport, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.FailureLog <= 0 {
		opts.FailureLog = 50
	}
	d := &Dispatcher{
		transport: t,
		opts:      opts,
		queue:     make(chan Command, opts.Buffer),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.work()
	}
	return d
}

// Enqueue schedules cmd. It reports false when the command was dropped
// because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Enqueue(cmd Command) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(cmd, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- cmd:
		return true
	default:
		d.drop(cmd, "queue full")
		return false
	}
}

// Close stops accepting commands and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// Failures returns the most recent failures, oldest first.
func (d *Dispatcher) Failures() []Failure {
	d.failMu.Lock()
	defer d.failMu.Unlock()
	return append([]Failure(nil), d.failures...)
}

// Stats returns the running counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		Pending:   len(d.queue),
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for cmd := range d.queue {
		d.dispatch(cmd)
	}
}

func (d *Dispatcher) dispatch(cmd Command) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()
	ctx, span := obs.StartSpan(ctx, "outbox.dispatch",
		attribute.String("outbox.command_id", cmd.ID),
		obs.AttrCommand.String(string(cmd.Kind)),
		obs.AttrSession.String(cmd.SessionID),
		obs.AttrShipment.String(cmd.ShipmentID),
	)
	defer span.End()

	start := time.Now()
	res, err := d.deliver(ctx, cmd)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.failed.Add(1)
		d.recordFailure(cmd, err)
		d.opts.Logger.Error().Err(err).
			Str("command_id", cmd.ID).
			Str("kind", string(cmd.Kind)).
			Str("session_id", cmd.SessionID).
			Str("shipment_id", cmd.ShipmentID).
			Dur("latency", elapsed).
			Msg("outbox dispatch failed")
	} else {
		d.delivered.Add(1)
		d.opts.Logger.Debug().
			Str("command_id", cmd.ID).
			Str("kind", string(cmd.Kind)).
			Str("message", res.Message).
			Dur("latency", elapsed).
			Msg("outbox dispatch ok")
	}
	if obs.OutboxDispatchTotal != nil {
		obs.OutboxDispatchTotal.WithLabelValues(string(cmd.Kind), outcome).Inc()
	}
	if obs.OutboxDispatchLatency != nil {
		obs.OutboxDispatchLatency.WithLabelValues(string(cmd.Kind)).Observe(float64(elapsed.Milliseconds()))
	}
	if d.opts.OnResult != nil {
		d.opts.OnResult(Result{Command: cmd, Response: res, Err: err, Duration: elapsed})
	}
}

func (d *Dispatcher) deliver(ctx context.Context, cmd Command) (res upstream.Result, err error) {
	if d.transport == nil {
		return upstream.Result{}, errors.New("outbox: transport not configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("outbox: transport panicked")
			d.opts.Logger.Error().Interface("panic", r).Str("command_id", cmd.ID).Msg("outbox transport panic")
		}
	}()
	return d.transport.Deliver(ctx, cmd)
}

func (d *Dispatcher) drop(cmd Command, reason string) {
	d.dropped.Add(1)
	if obs.OutboxDropped != nil {
		obs.OutboxDropped.Inc()
	}
	d.opts.Logger.Warn().
		Str("command_id", cmd.ID).
		Str("kind", string(cmd.Kind)).
		Str("session_id", cmd.SessionID).
		Str("reason", reason).
		Msg("outbox command dropped")
}

func (d *Dispatcher) recordFailure(cmd Command, err error) {
	d.failMu.Lock()
	defer d.failMu.Unlock()
	d.failures = append(d.failures, Failure{
		CommandID: cmd.ID,
		Kind:      cmd.Kind,
		SessionID: cmd.SessionID,
		Error:     err.Error(),
		At:        time.Now().UTC(),
	})
	if over := len(d.failures) - d.opts.FailureLog; over > 0 {
		d.failures = append([]Failure(nil), d.failures[over:]...)
	}
}
