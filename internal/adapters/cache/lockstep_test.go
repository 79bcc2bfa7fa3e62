package cache

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// lockstep advances a set of goroutines through shared ticks. A tick ends when every
// goroutine has called step, which makes cache interleavings deterministic in tests.
type lockstep struct {
	tick     atomic.Int64
	arrived  atomic.Int64
	maxTicks int64
	members  int64
}

func (l *lockstep) done() bool {
	return l.tick.Load() >= l.maxTicks
}

func (l *lockstep) currentTick() int {
	return int(l.tick.Load())
}

// run drives the ticks until maxTicks is reached
func (l *lockstep) run() {
	for !l.done() {
		if l.arrived.Load() < l.members {
			runtime.Gosched()
			continue
		}
		l.arrived.Store(0)
		l.tick.Add(1)
	}
}

type lockstepEntry[T any] struct {
	data    T
	pending bool
}

type lockstepStore[T any] struct {
	mu      sync.Mutex
	entries map[string]lockstepEntry[T]
}

// lockstepCache is one goroutine's view of a shared cache. Backing off ends its current tick.
type lockstepCache[T any] struct {
	clock  *lockstep
	shared *lockstepStore[T]

	nextTick int64
}

func (c *lockstepCache[T]) lookupOrClaim(ctx context.Context, key string) lookup[T] {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()

	if entry, ok := c.shared.entries[key]; ok {
		if entry.pending {
			return lookup[T]{state: lookupPending}
		}
		return lookup[T]{data: entry.data, state: lookupHit}
	}

	c.shared.entries[key] = lockstepEntry[T]{pending: true}
	return lookup[T]{state: lookupClaimed}
}

func (c *lockstepCache[T]) store(ctx context.Context, key string, data T, ttl time.Duration) {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()

	c.shared.entries[key] = lockstepEntry[T]{data: data}
}

func (c *lockstepCache[T]) release(ctx context.Context, key string) {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()

	delete(c.shared.entries, key)
}

func (c *lockstepCache[T]) backoff(ctx context.Context) error {
	c.step()
	return nil
}

func (c *lockstepCache[T]) step() {
	if c.clock.done() {
		panic("step() called after the last tick")
	}

	c.clock.arrived.Add(1)
	c.nextTick++

	for c.clock.tick.Load() < c.nextTick {
		runtime.Gosched()
	}
}

func (c *lockstepCache[T]) stepUntilDone() {
	for !c.clock.done() {
		c.step()
	}
}

func newLockstepCaches[T any](members int, maxTicks int) (*lockstep, []*lockstepCache[T]) {
	clock := &lockstep{
		maxTicks: int64(maxTicks),
		members:  int64(members),
	}
	shared := &lockstepStore[T]{entries: make(map[string]lockstepEntry[T])}

	caches := make([]*lockstepCache[T], members)
	for i := range members {
		caches[i] = &lockstepCache[T]{clock: clock, shared: shared}
	}
	return clock, caches
}
