package api

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lexroom/redline/pkg/observability"
)

// TelemetryMiddleware traces each request and records the RED metrics:
// request count, error count on 5xx responses, and duration.
func TelemetryMiddleware(provider *observability.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := provider.StartSpan(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			attrs := []attribute.KeyValue{
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			}
			span.SetAttributes(attrs...)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			statusAttrs := append(attrs, attribute.Int("http.response.status_code", rec.status))
			span.SetAttributes(attribute.Int("http.response.status_code", rec.status))

			provider.RecordRequest(ctx, statusAttrs...)
			provider.RecordDuration(ctx, time.Since(start), statusAttrs...)
			if rec.status >= http.StatusInternalServerError {
				err := fmt.Errorf("request failed with status %d", rec.status)
				span.SetStatus(codes.Error, err.Error())
				provider.RecordError(ctx, err, statusAttrs...)
			}
		})
	}
}
