package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// wrap returns a writer that records status and size. Writers already
// wrapped by an outer middleware are reused.
func wrap(w http.ResponseWriter, r *http.Request) middleware.WrapResponseWriter {
	if ww, ok := w.(middleware.WrapResponseWriter); ok {
		return ww
	}
	return middleware.NewWrapResponseWriter(w, r.ProtoMajor)
}

// statusOf treats a handler that never called WriteHeader as 200.
func statusOf(ww middleware.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// HTTPObs instruments HTTP handlers with metrics.
type HTTPObs struct {
	Metrics *HTTPMetrics
}

// Middleware records request count, latency and in-flight requests.
func (o HTTPObs) Middleware(next http.Handler) http.Handler {
	if o.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := wrap(w, r)
		o.Metrics.InFlight.Inc()
		start := time.Now()
		defer func() {
			o.Metrics.InFlight.Dec()
			route := Describe(r).Route
			if route == "" {
				route = "unknown"
			}
			o.Metrics.ReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(statusOf(ww))).Inc()
			o.Metrics.ReqDur.WithLabelValues(r.Method, route).Observe(DurationMillis(time.Since(start)))
		}()
		next.ServeHTTP(ww, r)
	})
}

// RoutePatternMiddleware pins the route chi has matched so far, so handlers
// mounted outside a sub-router still get a stable label.
func RoutePatternMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoutePatternFromContext(r.Context()) == "" {
			if route := Describe(r).Route; route != "" && route != "/*" {
				r = r.WithContext(WithRoutePattern(r.Context(), route))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// TracingMiddleware starts a server span per request. The span is renamed
// once routing has resolved the pattern.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := Tracer().Start(r.Context(), r.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		ww := wrap(w, r)
		r = r.WithContext(ctx)
		next.ServeHTTP(ww, r)

		info := Describe(r)
		route := info.Route
		if route == "" {
			route = r.URL.Path
		}
		span.SetName(r.Method + " " + route)
		status := statusOf(ww)
		attrs := []attribute.KeyValue{
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
			attribute.Int("http.status_code", status),
		}
		if info.SessionID != "" {
			attrs = append(attrs, AttrSession.String(info.SessionID))
		}
		if info.ShipmentID != "" {
			attrs = append(attrs, AttrShipment.String(info.ShipmentID))
		}
		span.SetAttributes(attrs...)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	})
}
