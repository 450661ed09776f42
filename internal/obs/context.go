package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routePatternKey struct{}

// WithRoutePattern pins the route label for a request, overriding the
// pattern chi resolves.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext returns the pinned route label, if any.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}

// RequestInfo is what the observability middlewares label a request with.
type RequestInfo struct {
	Route      string
	SessionID  string
	ShipmentID string
}

// Describe resolves r's route and editor identifiers. chi fills its route
// context while routing, so call it after the handler has run.
func Describe(r *http.Request) RequestInfo {
	info := RequestInfo{Route: RoutePatternFromContext(r.Context())}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if info.Route == "" {
			info.Route = rc.RoutePattern()
		}
		info.SessionID = rc.URLParam("sessionID")
		info.ShipmentID = rc.URLParam("shipmentId")
	}
	return info
}
