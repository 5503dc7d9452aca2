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

package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectedAnon(input string) string {
	sum := sha256.Sum256([]byte(input))
	return "anon_" + hex.EncodeToString(sum[:])[:16]
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestResolve_HeaderWins(t *testing.T) {
	r := NewResolver("")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Subject-Id", "  user-42 ")
	req.Header.Set("User-Agent", "Mozilla")

	assert.Equal(t, "user-42", r.Resolve(req))
}

func TestResolve_Anonymous(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*http.Request)
		expected string
	}{
		{
			name: "forwarded ip and ua",
			setup: func(req *http.Request) {
				req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
				req.Header.Set("User-Agent", "TripCount/1.0")
			},
			expected: expectedAnon("203.0.113.7:TripCount/1.0"),
		},
		{
			name: "real ip header",
			setup: func(req *http.Request) {
				req.Header.Set("X-Real-IP", "198.51.100.2")
				req.Header.Set("User-Agent", "curl/8")
			},
			expected: expectedAnon("198.51.100.2:curl/8"),
		},
		{
			name: "remote addr and missing ua",
			setup: func(req *http.Request) {
				req.RemoteAddr = "192.0.2.1:5555"
				req.Header.Del("User-Agent")
			},
			expected: expectedAnon("192.0.2.1:unknown"),
		},
		{
			name: "nothing known",
			setup: func(req *http.Request) {
				req.RemoteAddr = ""
				req.Header.Del("User-Agent")
			},
			expected: expectedAnon("unknown:unknown"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			got := NewResolver("").Resolve(req)
			assert.Equal(t, tt.expected, got)
			assert.Len(t, got, len("anon_")+16)
			assert.True(t, IsAnonymous(got))
		})
	}
}

func TestResolve_StableForSameFingerprint(t *testing.T) {
	r := NewResolver("")
	a := httptest.NewRequest(http.MethodGet, "/", nil)
	b := httptest.NewRequest(http.MethodPost, "/ai-proxy", nil)
	for _, req := range []*http.Request{a, b} {
		req.RemoteAddr = "192.0.2.9:1234"
		req.Header.Set("User-Agent", "Same")
	}
	assert.Equal(t, r.Resolve(a), r.Resolve(b))
}

func TestResolve_BearerToken(t *testing.T) {
	const secret = "test-secret"
	r := NewResolver(secret)

	valid := signToken(t, secret, jwt.MapClaims{"sub": "user-7", "exp": time.Now().Add(time.Hour).Unix()}, jwt.SigningMethodHS256)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	assert.Equal(t, "user-7", r.Resolve(req))

	// header still takes precedence
	req.Header.Set(SubjectHeader, "header-user")
	assert.Equal(t, "header-user", r.Resolve(req))
}

func TestResolve_BadTokensFallBackToAnonymous(t *testing.T) {
	const secret = "test-secret"
	r := NewResolver(secret)

	tokens := map[string]string{
		"wrong secret": signToken(t, "other", jwt.MapClaims{"sub": "user-7"}, jwt.SigningMethodHS256),
		"expired":      signToken(t, secret, jwt.MapClaims{"sub": "user-7", "exp": time.Now().Add(-time.Hour).Unix()}, jwt.SigningMethodHS256),
		"wrong alg":    signToken(t, secret, jwt.MapClaims{"sub": "user-7"}, jwt.SigningMethodHS512),
		"garbage":      "not-a-token",
	}

	for name, tok := range tokens {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			assert.True(t, IsAnonymous(r.Resolve(req)))
		})
	}
}

func TestResolve_TokensIgnoredWithoutSecret(t *testing.T) {
	tok := signToken(t, "s", jwt.MapClaims{"sub": "user-7"}, jwt.SigningMethodHS256)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	assert.True(t, IsAnonymous(NewResolver("").Resolve(req)))
}

func TestMiddleware_StoresSubject(t *testing.T) {
	r := NewResolver("")
	var seen string
	h := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen = r.Subject(req)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SubjectHeader, "user-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user-1", seen)
}
