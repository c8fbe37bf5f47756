package tenant

import (
	"sync"
	"time"
)

// bucket is a token-bucket limiter's mutable state for one (tenant,
// operation) pair.
type bucket struct {
	tokens   float64
	lastFill time.Time
}

// RateLimiter enforces the per-tenant, per-operation RateLimit table
// carried on ScimConfiguration, checked by the Server façade before
// delegating to the Provider. Fails open: an operation with no configured limit, or a tenant
// with no registered configuration, is never throttled, so protocol
// behavior never depends on a limiter being configured.
type RateLimiter struct {
	mutex   sync.Mutex
	buckets map[string]*bucket
	configs *ConfigStore
}

// NewRateLimiter returns a limiter reading limits from configs.
func NewRateLimiter(configs *ConfigStore) *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*bucket), configs: configs}
}

// Allow reports whether tenantID may perform operation right now,
// consuming a token if so.
func (rl *RateLimiter) Allow(tenantID, operation string) bool {
	limit, ok := rl.configs.Get(tenantID).RateLimits[operation]
	if !ok || limit.Max <= 0 || limit.Window <= 0 {
		return true
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	key := tenantID + "\x00" + operation
	now := time.Now()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(limit.Max + limit.Burst), lastFill: now}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastFill).Seconds()
	refillRate := float64(limit.Max) / float64(limit.Window)

	max := float64(limit.Max + limit.Burst)

	b.tokens += elapsed * refillRate
	if b.tokens > max {
		b.tokens = max
	}

	b.lastFill = now

	if b.tokens < 1 {
		return false
	}

	b.tokens--

	return true
}
