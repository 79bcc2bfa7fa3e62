package ports

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pochinki/pochinki/internal/logging"
	"github.com/pochinki/pochinki/internal/ratelimiting"
)

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

// ComposeMiddlewares applies middlewares so that the first one given is the outermost
func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		for _, middleware := range slices.Backward(middlewares) {
			h = middleware(h)
		}
		return h
	}
}

// NewAdminAuthMiddleware requires "Authorization: Bearer <token>". An empty token rejects every request.
func NewAdminAuthMiddleware(adminToken string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			provided, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || adminToken == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(adminToken)) != 1 {
				logging.FromContext(r.Context()).WarnContext(r.Context(), "rejected admin request")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next(w, r)
		}
	}
}

func buildOnLimitExceeded(handlerName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		getMetrics().rateLimited.Add(r.Context(), 1, metric.WithAttributes(attribute.String("handler", handlerName)))
		logging.FromContext(r.Context()).InfoContext(r.Context(), "rate limit exceeded")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	}
}

// buildHandlerMiddleware is the middleware stack shared by every public handler
func buildHandlerMiddleware(
	handlerName string,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	refillPerSecond ratelimiting.RefillPerSecond,
	burstSize ratelimiting.BurstSize,
) func(http.HandlerFunc) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(refillPerSecond, burstSize)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)

	return ComposeMiddlewares(
		buildMetricsMiddleware(handlerName),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, buildOnLimitExceeded(handlerName)),
	)
}
