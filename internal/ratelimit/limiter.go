package ratelimit

import (
	"context"
	"sync"
	"time"

	"evalsum/internal/redis"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter admits at most a fixed number of requests per key per window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryLimiter is a sliding-window limiter for a single process.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, window: window, now: time.Now, hits: make(map[string][]time.Time)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	queue := l.hits[key]
	cutoff := now.Add(-l.window)
	idx := 0
	for _, t := range queue {
		if t.After(cutoff) {
			break
		}
		idx++
	}
	if idx > 0 {
		queue = queue[idx:]
	}
	if len(queue) >= l.limit {
		l.hits[key] = queue
		return Decision{Allowed: false, RetryAfter: queue[0].Add(l.window).Sub(now)}, nil
	}
	l.hits[key] = append(queue, now)
	l.prune(cutoff)
	return Decision{Allowed: true}, nil
}

// prune drops keys without hits inside the window once the map is large.
func (l *MemoryLimiter) prune(cutoff time.Time) {
	if len(l.hits) < 1024 {
		return
	}
	for key, queue := range l.hits {
		if len(queue) == 0 || !queue[len(queue)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// RedisLimiter is a fixed-window limiter shared by every process using the
// same redis instance.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "evalsum:ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, ttl, err := l.client.IncrWindow(ctx, l.prefix+key, l.window)
	if err != nil {
		return Decision{}, err
	}
	if count > int64(l.limit) {
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true}, nil
}
