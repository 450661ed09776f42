package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a call to the operations backend.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the position of the breaker state machine.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

var stateNames = map[State]string{
	Closed:   "closed",
	Open:     "open",
	HalfOpen: "half_open",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// gauge maps a state onto the breaker_state metric.
func (s State) gauge() float64 {
	if _, ok := stateNames[s]; !ok {
		return -1
	}
	return float64(s)
}

// tally is the sample the failure ratio is computed over.
type tally struct {
	ok, failed int
}

func (t tally) total() int { return t.ok + t.failed }

func (t tally) ratio() float64 {
	if t.total() == 0 {
		return 0
	}
	return float64(t.failed) / float64(t.total())
}

// decay halves the sample, rounding up, so old outcomes lose weight.
func (t tally) decay() tally {
	return tally{ok: (t.ok + 1) / 2, failed: (t.failed + 1) / 2}
}

// Breaker guards calls to a single upstream dependency. It opens once the
// failure ratio over at least minSample calls reaches the threshold, rejects
// calls for the cool-off period and then lets one trial call through.
type Breaker struct {
	mu        sync.Mutex
	state     State
	sample    tally
	minSample int
	threshold float64
	coolOff   time.Duration
	openedAt  time.Time
	probing   bool
	target    string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewBreaker builds a closed breaker. Out-of-range arguments fall back to
// 1 call, a 0.5 ratio and a 30s cool-off.
func NewBreaker(minSample int, threshold float64, coolOff time.Duration) *Breaker {
	if minSample < 1 {
		minSample = 1
	}
	switch {
	case threshold <= 0:
		threshold = 0.5
	case threshold > 1:
		threshold = 1
	}
	if coolOff <= 0 {
		coolOff = 30 * time.Second
	}
	return &Breaker{
		state:     Closed,
		minSample: minSample,
		threshold: threshold,
		coolOff:   coolOff,
		target:    "default",
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
}

// WithTarget names the guarded dependency in metrics and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t := strings.TrimSpace(target); t != "" {
		b.target = t
	}
	b.publishLocked()
	return b
}

// WithLogger sets the logger used when no logger is carried by the context.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

// Target returns the dependency label.
func (b *Breaker) Target() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.target
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. After the cool-off an open
// breaker moves to half-open and admits a single trial call until it is reported.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) < b.coolOff {
			return false
		}
		b.moveLocked(ctx, HalfOpen)
		b.probing = true
		return true
	default:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

// Report records the outcome of an admitted call.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
		return
	}

	if success {
		b.sample.ok++
	} else {
		b.sample.failed++
	}
	if b.sample.total() < b.minSample {
		return
	}
	if b.sample.ratio() >= b.threshold {
		b.moveLocked(ctx, Open)
		return
	}
	if b.sample.total() > 2*b.minSample {
		b.sample = b.sample.decay()
	}
}

func (b *Breaker) moveLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		b.publishLocked()
		return
	}
	b.state = next
	b.sample = tally{}
	switch next {
	case Open:
		b.openedAt = b.now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.publishLocked()

	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(b.target, prev.String(), next.String()).Inc()
	}
	if next == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(b.target).Inc()
	}

	evt := b.loggerFor(ctx).Info().
		Str("target", b.target).
		Str("from_state", prev.String()).
		Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) publishLocked() {
	if BreakerState != nil {
		BreakerState.WithLabelValues(b.target).Set(b.state.gauge())
	}
}

func (b *Breaker) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &b.logger
}
