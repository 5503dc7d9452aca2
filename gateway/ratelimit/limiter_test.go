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

package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripcount/platform/shared/logger"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLimiter_WithinAndOverLimit(t *testing.T) {
	_, client := setupRedis(t)
	limiter := NewRedisLimiter(client, logger.New("test"))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res := limiter.Allow(ctx, "user-1", 3)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, i, res.Count)
	}

	res := limiter.Allow(ctx, "user-1", 3)
	assert.False(t, res.Allowed)

	// other subjects have their own window
	assert.True(t, limiter.Allow(ctx, "user-2", 3).Allowed)
}

func TestRedisLimiter_WindowSlides(t *testing.T) {
	_, client := setupRedis(t)
	limiter := NewRedisLimiter(client, logger.New("test"))
	ctx := context.Background()

	start := time.Now()
	limiter.now = func() time.Time { return start }
	assert.True(t, limiter.Allow(ctx, "user-1", 1).Allowed)
	assert.False(t, limiter.Allow(ctx, "user-1", 1).Allowed)

	limiter.now = func() time.Time { return start.Add(61 * time.Second) }
	assert.True(t, limiter.Allow(ctx, "user-1", 1).Allowed)
}

func TestRedisLimiter_SetsExpiry(t *testing.T) {
	mr, client := setupRedis(t)
	limiter := NewRedisLimiter(client, logger.New("test"))

	limiter.Allow(context.Background(), "user-1", 5)
	assert.True(t, mr.Exists("ratelimit:user-1"))
	assert.Equal(t, 2*time.Minute, mr.TTL("ratelimit:user-1"))
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	mr, client := setupRedis(t)
	limiter := NewRedisLimiter(client, logger.New("test"))
	mr.Close()

	res := limiter.Allow(context.Background(), "user-1", 1)
	assert.True(t, res.Allowed)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestMemoryLimiter(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	start := time.Now()
	limiter.now = func() time.Time { return start }

	assert.True(t, limiter.Allow(ctx, "k", 2).Allowed)
	assert.True(t, limiter.Allow(ctx, "k", 2).Allowed)
	assert.False(t, limiter.Allow(ctx, "k", 2).Allowed)

	limiter.now = func() time.Time { return start.Add(2 * time.Minute) }
	res := limiter.Allow(ctx, "k", 2)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Count)
}

func TestMemoryLimiter_DropsIdleKeys(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	start := time.Now()
	limiter.now = func() time.Time { return start }

	for i := 0; i < 100; i++ {
		limiter.Allow(ctx, fmt.Sprintf("anon_%d", i), 5)
	}
	assert.Len(t, limiter.events, 100)

	limiter.now = func() time.Time { return start.Add(2 * time.Minute) }
	res := limiter.Allow(ctx, "anon_new", 5)
	assert.True(t, res.Allowed)
	assert.Len(t, limiter.events, 1)
	assert.Contains(t, limiter.events, "anon_new")
}

func TestMiddleware(t *testing.T) {
	limiter := NewMemoryLimiter()
	handler := Middleware(limiter, 1, func(r *http.Request) string { return r.Header.Get("X-Subject-Id") })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	send := func(subject string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ai-proxy", nil)
		req.Header.Set("X-Subject-Id", subject)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("a").Code)
	rec := send("a")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limited")
	assert.Equal(t, http.StatusOK, send("b").Code)
}

func TestMiddleware_Disabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(NewMemoryLimiter(), 0, func(*http.Request) string { return "k" })(next)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}
