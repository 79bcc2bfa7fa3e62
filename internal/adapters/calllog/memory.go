package calllog

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pochinki/pochinki/internal/domain"
	"github.com/pochinki/pochinki/internal/ratelimiting"
)

type admitter interface {
	Admit() (time.Time, bool)
	Used() int
	Limit() int
	Window() time.Duration
}

type memoryCallLog struct {
	admitter admitter

	calls  []domain.APICall
	nextID int64
	mutex  sync.Mutex
}

// NewMemory returns a call log for a single process
func NewMemory(limit int, window time.Duration, nowFunc func() time.Time) *memoryCallLog {
	return &memoryCallLog{
		admitter: ratelimiting.NewSlidingWindowAdmitter(limit, window, nowFunc),
		calls:    []domain.APICall{},
		nextID:   0,
	}
}

func (m *memoryCallLog) Reserve(ctx context.Context, endpoint, method string) (Reservation, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	reservedAt, ok := m.admitter.Admit()
	if !ok {
		return Reservation{}, domain.ErrRateLimitExceeded
	}

	m.calls = append(m.calls, domain.APICall{
		Endpoint: endpoint,
		Method:   method,
		CalledAt: reservedAt,
	})
	id := m.nextID
	m.nextID++

	return Reservation{
		ID:         id,
		Endpoint:   endpoint,
		Method:     method,
		ReservedAt: reservedAt,
	}, nil
}

func (m *memoryCallLog) Complete(ctx context.Context, reservation Reservation, outcome Outcome) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Calls are only ever removed from the front
	index := len(m.calls) - int(m.nextID-reservation.ID)
	if index < 0 || index >= len(m.calls) {
		return fmt.Errorf("reservation %d is no longer in the call log", reservation.ID)
	}

	call := &m.calls[index]
	call.StatusCode = outcome.StatusCode
	call.Latency = outcome.Latency
	call.ErrorMessage = outcome.ErrorMessage

	return nil
}

func (m *memoryCallLog) Usage(ctx context.Context) (domain.CallUsage, error) {
	return domain.NewCallUsage(m.admitter.Used(), m.admitter.Limit(), m.admitter.Window()), nil
}

func (m *memoryCallLog) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	firstKept := slices.IndexFunc(m.calls, func(call domain.APICall) bool {
		return !call.CalledAt.Before(cutoff)
	})
	if firstKept == -1 {
		firstKept = len(m.calls)
	}

	m.calls = m.calls[firstKept:]
	return int64(firstKept), nil
}

// Calls returns a copy of the recorded calls, oldest first
func (m *memoryCallLog) Calls() []domain.APICall {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return slices.Clone(m.calls)
}
