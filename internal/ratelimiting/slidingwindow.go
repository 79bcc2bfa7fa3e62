package ratelimiting

import (
	"slices"
	"sync"
	"time"
)

// slidingWindowAdmitter admits at most limit calls within any trailing window.
// A call made at t counts against every decision taken up to and including t+window.
type slidingWindowAdmitter struct {
	limit   int
	window  time.Duration
	nowFunc func() time.Time

	// Sorted ascending
	admitted []time.Time
	mutex    sync.Mutex
}

func NewSlidingWindowAdmitter(limit int, window time.Duration, nowFunc func() time.Time) *slidingWindowAdmitter {
	return &slidingWindowAdmitter{
		limit:   limit,
		window:  window,
		nowFunc: nowFunc,

		admitted: make([]time.Time, 0, limit),
		mutex:    sync.Mutex{},
	}
}

func insertSortedOrder(arr []time.Time, t time.Time) []time.Time {
	i, _ := slices.BinarySearchFunc(arr, t, func(a, b time.Time) int {
		return a.Compare(b)
	})
	return slices.Insert(arr, i, t)
}

// Drop calls that no longer count towards the window [now-window, now).
// A call made exactly at now-window still counts. Caller must hold the mutex.
func (a *slidingWindowAdmitter) prune(now time.Time) {
	cutoff := now.Add(-a.window)
	firstLive, _ := slices.BinarySearchFunc(a.admitted, cutoff, func(admittedAt, cutoff time.Time) int {
		if admittedAt.Before(cutoff) {
			return -1
		}
		return 1
	})
	a.admitted = a.admitted[firstLive:]
}

// Admit checks the window and records the call in one step.
// Returns the time the call was recorded at, and whether it was admitted.
func (a *slidingWindowAdmitter) Admit() (time.Time, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	now := a.nowFunc()
	a.prune(now)

	if len(a.admitted) >= a.limit {
		return now, false
	}

	a.admitted = insertSortedOrder(a.admitted, now)
	return now, true
}

// Used returns the number of admitted calls within the current window
func (a *slidingWindowAdmitter) Used() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.prune(a.nowFunc())
	return len(a.admitted)
}

func (a *slidingWindowAdmitter) Limit() int {
	return a.limit
}

func (a *slidingWindowAdmitter) Window() time.Duration {
	return a.window
}
