package ratelimit

import (
	"context"
	"sync"
	"time"
)

// bucket tracks the token balance for one key.
type bucket struct {
	remaining float64
	last      time.Time
}

// MemoryLimiter is a per-key token bucket held in process memory.
//
// Every key refills at rate tokens per second up to a burst ceiling. A
// background goroutine drops buckets idle for more than ten minutes so the
// map stays bounded. Suitable for single-instance deployments; a shared
// deployment needs a limiter backed by shared state.
type MemoryLimiter struct {
	rate  float64
	burst float64

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryLimiter creates a token bucket limiter allowing rate requests per
// second per key with bursts up to burst. Call Close to stop the eviction
// goroutine.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go m.evictLoop()
	return m
}

// Allow takes one token from the bucket for key, creating a full bucket on
// first sight. Returns false when the bucket is empty.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{remaining: m.burst, last: now}
		m.buckets[key] = b
	} else {
		b.remaining += now.Sub(b.last).Seconds() * m.rate
		if b.remaining > m.burst {
			b.remaining = m.burst
		}
		b.last = now
	}

	if b.remaining < 1 {
		return false, nil
	}
	b.remaining--
	return true, nil
}

// Close stops the eviction goroutine. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

const bucketIdleLimit = 10 * time.Minute

func (m *MemoryLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle(time.Now().Add(-bucketIdleLimit))
		}
	}
}

func (m *MemoryLimiter) evictIdle(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, b := range m.buckets {
		if b.last.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
