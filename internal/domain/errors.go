package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrPlayerNotFound         = errors.New("player not found")
	ErrStatsNotFound          = errors.New("stats not found")
	ErrNoCurrentSeason        = errors.New("no current season")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")

	// Admission was denied because the outbound call budget for the live window is used up
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	ErrTransport         = errors.New("transport error")
	ErrTimeout           = errors.New("request timed out")
	ErrMalformedResponse = errors.New("malformed response")
	ErrPersistence       = errors.New("persistence error")

	ErrInvalidLeaderboardSort = errors.New("invalid leaderboard sort")
	ErrInvalidInput           = errors.New("invalid input")
)

// UpstreamError is returned when the stats API answers with a non-2xx status
type UpstreamError struct {
	StatusCode int
	// Detail is errors[0].detail from the response envelope, if present
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("upstream error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream error: HTTP %d - %s", e.StatusCode, e.Detail)
}

func (e *UpstreamError) Is(target error) bool {
	if target != ErrTemporarilyUnavailable {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
