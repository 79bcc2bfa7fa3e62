package logging

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// NewRequestLoggerMiddleware adds a request scoped logger to the context and logs every
// completed request with its status and duration
func NewRequestLoggerMiddleware(logger *slog.Logger) func(next http.HandlerFunc) http.HandlerFunc {
	return NewRequestLoggerMiddlewareWithClock(logger, time.Now)
}

func NewRequestLoggerMiddlewareWithClock(logger *slog.Logger, nowFunc func() time.Time) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := nowFunc()

			attrs := []any{
				slog.String("requestID", uuid.NewString()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			}
			if userAgent := r.UserAgent(); userAgent != "" {
				attrs = append(attrs, slog.String("userAgent", userAgent))
			}
			if playerID := r.PathValue("playerID"); playerID != "" {
				attrs = append(attrs, slog.Group("player", slog.String("id", playerID)))
			}

			requestLogger := logger.With(attrs...)
			ctx := AddToContext(r.Context(), requestLogger)

			recorder := &statusRecorder{ResponseWriter: w}
			next(recorder, r.WithContext(ctx))

			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			requestLogger.Log(ctx, level, "Request handled",
				slog.Int("status", status),
				slog.Int64("durationMs", nowFunc().Sub(start).Milliseconds()),
			)
		}
	}
}
