package ratelimiting

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// RateLimiter protects the http ports. Outbound calls are admitted by the sliding window instead.
type RateLimiter interface {
	Consume(key string) bool
}

type RefillPerSecond int
type BurstSize int

// Idle buckets are evicted after this long. A new bucket starts full, so this must exceed the time
// to refill a bucket.
const bucketIdleTTL = 30 * time.Minute

type tokenBucketRateLimiter struct {
	buckets *ttlcache.Cache[string, *rate.Limiter]

	refill rate.Limit
	burst  int
}

func (l *tokenBucketRateLimiter) Consume(key string) bool {
	bucket, _ := l.buckets.GetOrSetFunc(key, func() *rate.Limiter {
		return rate.NewLimiter(l.refill, l.burst)
	})
	return bucket.Value().Allow()
}

// NewTokenBucketRateLimiter returns a limiter with one bucket per key, and a func stopping the eviction loop
func NewTokenBucketRateLimiter(refillPerSecond RefillPerSecond, burstSize BurstSize) (RateLimiter, func()) {
	buckets := ttlcache.New(
		ttlcache.WithTTL[string, *rate.Limiter](bucketIdleTTL),
	)
	go buckets.Start()

	return &tokenBucketRateLimiter{
		buckets: buckets,
		refill:  rate.Limit(refillPerSecond),
		burst:   int(burstSize),
	}, buckets.Stop
}

type RequestRateLimiter interface {
	Consume(r *http.Request) bool
	KeyFor(r *http.Request) string
}

type keyedRequestRateLimiter struct {
	limiter RateLimiter
	keyFunc func(r *http.Request) string
}

func (l *keyedRequestRateLimiter) Consume(r *http.Request) bool {
	return l.limiter.Consume(l.keyFunc(r))
}

func (l *keyedRequestRateLimiter) KeyFor(r *http.Request) string {
	return l.keyFunc(r)
}

func NewRequestBasedRateLimiter(limiter RateLimiter, keyFunc func(r *http.Request) string) RequestRateLimiter {
	return &keyedRequestRateLimiter{
		limiter: limiter,
		keyFunc: keyFunc,
	}
}

// IPKeyFunc keys requests by the address of the connecting peer.
// X-Forwarded-For is client controlled and never used for the key.
func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// No port
		host = r.RemoteAddr
	}

	return fmt.Sprintf("ip: %s", host)
}
