package calllog

import (
	"context"
	"time"

	"github.com/pochinki/pochinki/internal/domain"
)

// Reservation is an admitted call that has been counted against the window, but not completed yet
type Reservation struct {
	ID         int64
	Endpoint   string
	Method     string
	ReservedAt time.Time
}

type Outcome struct {
	// Zero when no response was received
	StatusCode int
	Latency    time.Duration
	// Empty on transport-level success
	ErrorMessage string
}

// CallLog admits outbound calls against a sliding window and records their telemetry.
//
// Reserve must check the window and record the call atomically.
// It returns domain.ErrRateLimitExceeded when the window is full.
type CallLog interface {
	Reserve(ctx context.Context, endpoint, method string) (Reservation, error)
	Complete(ctx context.Context, reservation Reservation, outcome Outcome) error
	Usage(ctx context.Context) (domain.CallUsage, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
