package obs

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/quotedesk/internal/common"
)

// unmatchedRoute labels requests chi could not route. Raw paths are never
// used as labels because approval links carry a secret token.
const unmatchedRoute = "unmatched"

type routeKey struct{}

// WithRoutePattern pins a route pattern on ctx, overriding chi's.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RoutePatternFromContext returns the pinned pattern, else chi's matched
// pattern, else "".
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if pinned, _ := ctx.Value(routeKey{}).(string); pinned != "" {
		return pinned
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

type recorder struct {
	http.ResponseWriter
	status int
	bytes  int64
	wrote  bool
}

func (rw *recorder) WriteHeader(code int) {
	if !rw.wrote {
		rw.status = code
		rw.wrote = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(p []byte) (int, error) {
	if !rw.wrote {
		rw.status = http.StatusOK
		rw.wrote = true
	}
	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += int64(n)
	return n, err
}

func (rw *recorder) code() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

// HTTP instruments every request once: a server span, RED metrics and one
// structured access log line. A nil Metrics skips metrics; Trace=false skips
// spans.
type HTTP struct {
	Logger  zerolog.Logger
	Metrics *HTTPMetrics
	Trace   bool
}

// Middleware is the chi middleware form of HTTP.
func (h HTTP) Middleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("quotedesk/http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		var span trace.Span
		if h.Trace {
			ctx, span = tracer.Start(ctx, r.Method, trace.WithSpanKind(trace.SpanKindServer))
			r = r.WithContext(ctx)
		}
		if h.Metrics != nil {
			h.Metrics.InFlight.Inc()
		}

		rw := &recorder{ResponseWriter: w}
		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		route := RoutePatternFromContext(ctx)
		if route == "" {
			route = unmatchedRoute
		}
		status := rw.code()

		if h.Metrics != nil {
			h.Metrics.InFlight.Dec()
			h.Metrics.observe(r.Method, route, status, elapsed)
		}
		if span != nil {
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			span.End()
		}
		h.log(r, route, status, rw.bytes, elapsed)
	})
}

func (h HTTP) log(r *http.Request, route string, status int, bytes int64, elapsed time.Duration) {
	evt := h.Logger.Info()
	switch {
	case status >= http.StatusInternalServerError:
		evt = h.Logger.Error()
	case status == http.StatusTooManyRequests:
		evt = h.Logger.Warn()
	}
	evt = evt.Str("method", r.Method).
		Str("route", route).
		Int("status", status).
		Dur("duration_ms", elapsed).
		Int64("bytes", bytes).
		Str("request_id", middleware.GetReqID(r.Context()))
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}
	if ip := common.ClientIP(r); ip != "" {
		evt = evt.Str("client_ip", ip)
	}
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		evt = evt.Str("user_agent", ua)
	}
	evt.Msg("http_request")
}

func (m *HTTPMetrics) observe(method, route string, status int, elapsed time.Duration) {
	m.ReqTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.ReqDur.WithLabelValues(method, route).Observe(float64(elapsed) / float64(time.Millisecond))
}
