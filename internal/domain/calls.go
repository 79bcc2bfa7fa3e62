package domain

import "time"

// APICall is one outbound request to the stats API, as recorded in the call log
type APICall struct {
	Endpoint   string
	Method     string
	StatusCode int
	Latency    time.Duration
	// Empty when the call succeeded at the transport level
	ErrorMessage string
	CalledAt     time.Time
}

// CallUsage describes the admission budget in the live window
type CallUsage struct {
	Used      int
	Limit     int
	Remaining int
	Window    time.Duration
}

func NewCallUsage(used, limit int, window time.Duration) CallUsage {
	return CallUsage{
		Used:      used,
		Limit:     limit,
		Remaining: max(0, limit-used),
		Window:    window,
	}
}
