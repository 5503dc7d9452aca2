// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit throttles request bursts per subject with a one-minute
// sliding window, stored in Redis when configured and in memory otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"tripcount/platform/shared/logger"
)

const window = time.Minute

// Result is the outcome of one Allow call
type Result struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}

// Limiter decides whether one more request fits in the window
type Limiter interface {
	Allow(ctx context.Context, key string, limitPerMinute int) Result
}

// NewRedisClient parses url and checks connectivity
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisLimiter keeps one sorted set of request timestamps per key
type RedisLimiter struct {
	client *redis.Client
	log    *logger.Logger
	now    func() time.Time
}

// NewRedisLimiter creates a limiter on client
func NewRedisLimiter(client *redis.Client, log *logger.Logger) *RedisLimiter {
	return &RedisLimiter{client: client, log: log, now: time.Now}
}

// Allow records the request and reports whether it fits. Redis errors fail open.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limitPerMinute int) Result {
	now := l.now()
	redisKey := fmt.Sprintf("ratelimit:%s", key)
	res := Result{Allowed: true, Limit: limitPerMinute, ResetAt: now.Add(window)}

	pipe := l.client.Pipeline()
	minScore := now.Add(-window).UnixNano()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", minScore))
	pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
	})
	pipe.Expire(ctx, redisKey, 2*window)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		l.log.Warn(key, "", "redis rate limit check failed, failing open", map[string]interface{}{"error": err.Error()})
		return res
	}

	// ZCARD ran before ZADD, so this is the count of earlier requests
	prior := int(cmds[1].(*redis.IntCmd).Val())
	res.Count = prior + 1
	res.Allowed = prior < limitPerMinute
	return res
}

// MemoryLimiter is the single-process fallback
type MemoryLimiter struct {
	mu        sync.Mutex
	events    map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryLimiter creates an empty in-memory limiter
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{events: make(map[string][]time.Time), now: time.Now}
}

// Allow records the request and reports whether it fits
func (l *MemoryLimiter) Allow(_ context.Context, key string, limitPerMinute int) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)
	if now.Sub(l.lastSweep) >= window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	kept := l.events[key][:0]
	for _, ts := range l.events[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	prior := len(kept)
	kept = append(kept, now)
	l.events[key] = kept

	return Result{
		Allowed: prior < limitPerMinute,
		Count:   prior + 1,
		Limit:   limitPerMinute,
		ResetAt: now.Add(window),
	}
}

// sweep drops keys with no request inside the window
func (l *MemoryLimiter) sweep(cutoff time.Time) {
	for key, ts := range l.events {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(l.events, key)
		}
	}
}

var (
	_ Limiter = (*RedisLimiter)(nil)
	_ Limiter = (*MemoryLimiter)(nil)
)
