// Package ratelimit implements C4: a per-key token bucket, sharded to
// reduce lock contention across unrelated keys (spec.md §9).
package ratelimit

import (
	"hash/fnv"
	"math"
	"sync"
	"time"
)

const shardCount = 32

// Decision is the result of an admission check.
type Decision struct {
	Allowed    bool
	Capacity   int
	Remaining  int
	ResetEpoch int64
}

type bucket struct {
	tokens        float64
	capacity      float64
	windowSeconds float64
	lastRefill    time.Time
	lastTouched   time.Time
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Limiter is the sharded, in-memory RateLimiter described in spec.md
// §4.2 and §9. The zero value is not usable; construct with New.
type Limiter struct {
	shards [shardCount]*shard
	nowFn  func() time.Time
}

// New returns a Limiter with shardCount empty shards.
func New() *Limiter {
	l := &Limiter{nowFn: time.Now}
	for i := range l.shards {
		l.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	return l
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

// Admit applies the token-bucket algorithm of spec.md §4.2 for apiKey
// with the given capacity (requests per window) and window length. The
// bucket is constructed lazily, full, on first sighting of the key.
func (l *Limiter) Admit(apiKey string, capacity int, window time.Duration) Decision {
	s := l.shardFor(apiKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.nowFn()
	b, ok := s.buckets[apiKey]
	if !ok {
		b = &bucket{
			tokens:        float64(capacity),
			capacity:      float64(capacity),
			windowSeconds: window.Seconds(),
			lastRefill:    now,
		}
		s.buckets[apiKey] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	refillRate := b.capacity / b.windowSeconds
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*refillRate)
	b.lastRefill = now
	b.lastTouched = now

	if b.tokens >= 1 {
		b.tokens--
		fullInSeconds := (b.capacity - b.tokens) * (b.windowSeconds / b.capacity)
		return Decision{
			Allowed:    true,
			Capacity:   capacity,
			Remaining:  int(math.Floor(b.tokens)),
			ResetEpoch: now.Unix() + int64(math.Ceil(fullInSeconds)),
		}
	}

	deficitSeconds := (1 - b.tokens) * (b.windowSeconds / b.capacity)
	resetEpoch := now.Unix() + int64(math.Ceil(deficitSeconds))
	return Decision{
		Allowed:    false,
		Capacity:   capacity,
		Remaining:  0,
		ResetEpoch: resetEpoch,
	}
}

// Reap evicts buckets untouched for longer than staleAfter, bounding
// memory for keys that stop sending traffic. Driven by a robfig/cron
// job at window cadence (cmd/gateway/main.go).
func (l *Limiter) Reap(staleAfter time.Duration) {
	cutoff := l.nowFn().Add(-staleAfter)
	for _, s := range l.shards {
		s.mu.Lock()
		for key, b := range s.buckets {
			if b.lastTouched.Before(cutoff) {
				delete(s.buckets, key)
			}
		}
		s.mu.Unlock()
	}
}
