package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// VelocityWindow is the span UNUSUAL_ACTIVITY counts appends over.
const VelocityWindow = time.Minute

// VelocityCounter records one append for an account and returns the number
// of appends it has made within the current window.
type VelocityCounter interface {
	Hit(ctx context.Context, accountID uuid.UUID, at time.Time) (int, error)
}

var velocityScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, ttl}
`)

// RedisVelocityCounter counts appends in a fixed window shared by every
// replica of the service.
type RedisVelocityCounter struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
}

func NewRedisVelocityCounter(client redis.UniversalClient, prefix string) *RedisVelocityCounter {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "sup:velocity"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisVelocityCounter{
		client: client,
		prefix: trimmedPrefix,
		window: VelocityWindow,
	}
}

func (r *RedisVelocityCounter) Hit(ctx context.Context, accountID uuid.UUID, at time.Time) (int, error) {
	if r == nil || r.client == nil {
		return 0, nil
	}

	key := fmt.Sprintf("%s:%s", r.prefix, accountID)
	rawResult, err := velocityScript.Run(ctx, r.client, []string{key}, r.window.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return 0, fmt.Errorf("unexpected redis velocity response shape: %T", rawResult)
	}

	currentCount, ok := values[0].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected redis velocity count type: %T", values[0])
	}
	return int(currentCount), nil
}

// MemoryVelocityCounter is a per-process sliding window used when Redis is
// not configured.
type MemoryVelocityCounter struct {
	mu     sync.Mutex
	window time.Duration
	hits   map[uuid.UUID][]time.Time
}

func NewMemoryVelocityCounter() *MemoryVelocityCounter {
	return &MemoryVelocityCounter{
		window: VelocityWindow,
		hits:   make(map[uuid.UUID][]time.Time),
	}
}

func (m *MemoryVelocityCounter) Hit(ctx context.Context, accountID uuid.UUID, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := at.Add(-m.window)
	kept := m.hits[accountID][:0]
	for _, ts := range m.hits[accountID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, at)
	m.hits[accountID] = kept

	// Drop idle accounts so the map does not grow without bound.
	if len(m.hits) > 10_000 {
		for id, times := range m.hits {
			if len(times) == 0 || !times[len(times)-1].After(cutoff) {
				delete(m.hits, id)
			}
		}
	}
	return len(kept), nil
}
