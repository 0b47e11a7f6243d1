package middleware

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/restrack/restrack-ai/internal/tracing"
)

// TraceIDHeader exposes the request's trace ID to clients.
const TraceIDHeader = "X-Trace-ID"

// Tracing wraps handlers with OpenTelemetry instrumentation and adds the
// X-Trace-ID response header when a span is recording.
func Tracing(next http.Handler) http.Handler {
	return otelhttp.NewHandler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if traceID := tracing.TraceIDFromContext(r.Context()); traceID != "" {
				w.Header().Set(TraceIDHeader, traceID)
			}
			next.ServeHTTP(w, r)
		}),
		"http.request",
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
	)
}
