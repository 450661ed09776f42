package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps an http.Client with a per-call timeout and a circuit
// breaker. Each call is a single attempt.
type HTTPClient struct {
	Client   *http.Client
	Breaker  *Breaker
	Timeout  time.Duration
	Fallback func(context.Context, *http.Request, error) (*http.Response, error)
}

// StatusError reports a 5xx response counted as a breaker failure.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("resilience: upstream responded %s", e.Status)
}

// Do executes the request once. When the breaker is open ErrOpenCircuit is
// returned unless a fallback is configured. The caller owns the response
// body and the context deadline spans until the body is closed.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	breaker := cl.Breaker
	if breaker == nil {
		breaker = NewBreaker(1, 1, time.Second)
	}
	target := breaker.Target()
	if !breaker.Allow(ctx) {
		UpstreamCalls.WithLabelValues(target, callOutcome(nil, ErrOpenCircuit)).Inc()
		return cl.fallback(ctx, req, ErrOpenCircuit)
	}

	callCtx, cancel := cl.callContext(ctx)
	resp, err := cl.Client.Do(req.WithContext(callCtx))
	UpstreamCalls.WithLabelValues(target, callOutcome(resp, err)).Inc()
	if err != nil {
		cancel()
		breaker.Report(ctx, false)
		return cl.fallback(ctx, req, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		_ = resp.Body.Close()
		cancel()
		breaker.Report(ctx, false)
		return cl.fallback(ctx, req, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status})
	}
	breaker.Report(ctx, true)
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (cl HTTPClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (cl HTTPClient) fallback(ctx context.Context, req *http.Request, err error) (*http.Response, error) {
	if cl.Fallback != nil {
		return cl.Fallback(ctx, req, err)
	}
	return nil, err
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
