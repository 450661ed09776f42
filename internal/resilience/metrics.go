package resilience

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "liquidacion"

var (
	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "breaker_state",
		Help:      "Current breaker state: 0=closed,1=open,2=half-open",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "breaker_transition_total",
		Help:      "Count of breaker state transitions",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "breaker_open_total",
		Help:      "Number of times a breaker transitioned into open state",
	}, []string{"target"})
	// UpstreamCalls counts single-attempt upstream calls by outcome: the
	// status code, "rejected" when the breaker was open, or "error".
	UpstreamCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "upstream_calls_total",
		Help:      "Upstream HTTP calls by target and outcome.",
	}, []string{"target", "outcome"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, UpstreamCalls)
}

func callOutcome(resp *http.Response, err error) string {
	switch {
	case errors.Is(err, ErrOpenCircuit):
		return "rejected"
	case err != nil:
		return "error"
	case resp == nil:
		return "error"
	default:
		return strconv.Itoa(resp.StatusCode)
	}
}
