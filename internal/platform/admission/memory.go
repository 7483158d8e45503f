package admission

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShards = 32

type bucket struct {
	windowStart time.Time
	window      time.Duration
	count       int64
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// MemoryLimiter keeps counters in process. Counters for an elapsed window are
// reset on the next hit; Sweep drops idle ones.
type MemoryLimiter struct {
	shards [memoryShards]*shard
}

func NewMemoryLimiter() *MemoryLimiter {
	l := &MemoryLimiter{}
	for i := range l.shards {
		l.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	return l
}

func (l *MemoryLimiter) Hit(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}
	windowStart := now.Truncate(window)
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || !b.windowStart.Equal(windowStart) || b.window != window {
		b = &bucket{windowStart: windowStart, window: window}
		s.buckets[key] = b
	}
	b.count++
	return b.count, windowStart, nil
}

// Sweep removes every counter whose window ended at or before now and
// returns how many were removed.
func (l *MemoryLimiter) Sweep(now time.Time) int {
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for key, b := range s.buckets {
			if !b.windowStart.Add(b.window).After(now) {
				delete(s.buckets, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

func (l *MemoryLimiter) Len() int {
	total := 0
	for _, s := range l.shards {
		s.mu.Lock()
		total += len(s.buckets)
		s.mu.Unlock()
	}
	return total
}

func (l *MemoryLimiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%memoryShards]
}
