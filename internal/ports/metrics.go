package ports

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type portsMetrics struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	rateLimited     metric.Int64Counter
}

// Created on first use so the meter comes from the provider installed at startup
var getMetrics = sync.OnceValue(func() portsMetrics {
	meter := otel.Meter("pochinki/ports")

	requests, err := meter.Int64Counter(
		"ports/requests",
		metric.WithDescription("Requests handled by the http api"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create request count metric: %w", err))
	}

	requestDuration, err := meter.Float64Histogram(
		"ports/request_duration_seconds",
		metric.WithDescription("Time spent handling http api requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create request duration metric: %w", err))
	}

	rateLimited, err := meter.Int64Counter(
		"ports/rate_limited_requests",
		metric.WithDescription("Requests rejected by the per client rate limit"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rate limited metric: %w", err))
	}

	return portsMetrics{
		requests:        requests,
		requestDuration: requestDuration,
		rateLimited:     rateLimited,
	}
})

type responseStatus struct {
	http.ResponseWriter
	code int
}

func (s *responseStatus) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// statusClass groups status codes as 2xx, 4xx etc.
func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

func buildMetricsMiddleware(handlerName string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			status := &responseStatus{ResponseWriter: w, code: http.StatusOK}
			next(status, r)

			attrs := metric.WithAttributes(
				attribute.String("handler", handlerName),
				attribute.String("method", r.Method),
				attribute.Int("status_code", status.code),
				attribute.String("status_class", statusClass(status.code)),
			)

			m := getMetrics()
			m.requests.Add(r.Context(), 1, attrs)
			m.requestDuration.Record(r.Context(), time.Since(start).Seconds(), attrs)
		}
	}
}
