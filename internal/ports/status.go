package ports

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pochinki/pochinki/internal/app"
	"github.com/pochinki/pochinki/internal/reporting"
)

type apiCallsResponse struct {
	Used          int `json:"used"`
	Remaining     int `json:"remaining"`
	Limit         int `json:"limit"`
	WindowSeconds int `json:"windowSeconds"`
}

type statusResponse struct {
	Success  bool             `json:"success"`
	Status   string           `json:"status"`
	APICalls apiCallsResponse `json:"apiCalls"`
	// Null until the first ingestion has stored stats
	LastUpdated *time.Time `json:"lastUpdated"`
}

func MakeGetStatusHandler(
	getAPIStatus app.GetAPIStatus,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildHandlerMiddleware("status", allowedOrigins, rootLogger, sentryMiddleware, 2, 120)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		status, err := getAPIStatus(ctx)
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to get api status: %w", err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		var lastUpdated *time.Time
		if !status.LastUpdated.IsZero() {
			utc := status.LastUpdated.UTC()
			lastUpdated = &utc
		}

		err = writeJSON(w, http.StatusOK, statusResponse{
			Success: true,
			Status:  status.Status,
			APICalls: apiCallsResponse{
				Used:          status.Usage.Used,
				Remaining:     status.Usage.Remaining,
				Limit:         status.Usage.Limit,
				WindowSeconds: int(status.Usage.Window.Seconds()),
			},
			LastUpdated: lastUpdated,
		})
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to write status response: %w", err))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}

	return middleware(handler)
}
