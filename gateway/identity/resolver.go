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

// Package identity derives the subject every request is metered against.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SubjectHeader carries a caller-asserted subject id. It is trusted verbatim.
const SubjectHeader = "x-subject-id"

// AnonymousPrefix marks subjects derived from network fingerprints
const AnonymousPrefix = "anon_"

const unknown = "unknown"

type contextKey struct{}

// Resolver maps a request to a stable subject id
type Resolver struct {
	jwtSecret []byte
}

// NewResolver creates a resolver. When jwtSecret is non-empty, HS256 bearer
// tokens are accepted as a second identity source after the header.
func NewResolver(jwtSecret string) *Resolver {
	r := &Resolver{}
	if jwtSecret != "" {
		r.jwtSecret = []byte(jwtSecret)
	}
	return r
}

// Resolve returns the header subject, then a verified token subject, then an
// anonymous id derived from client IP and user agent.
func (r *Resolver) Resolve(req *http.Request) string {
	if id := strings.TrimSpace(req.Header.Get(SubjectHeader)); id != "" {
		return id
	}
	if sub := r.tokenSubject(req); sub != "" {
		return sub
	}
	return Anonymous(ClientIP(req), req.UserAgent())
}

func (r *Resolver) tokenSubject(req *http.Request) string {
	if len(r.jwtSecret) == 0 {
		return ""
	}
	auth := req.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return r.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return ""
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(sub)
}

// Anonymous builds "anon_" + the first 16 hex chars of sha256("ip:ua").
// Empty inputs are replaced by "unknown".
func Anonymous(ip, userAgent string) string {
	if ip == "" {
		ip = unknown
	}
	if userAgent == "" {
		userAgent = unknown
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", ip, userAgent)))
	return AnonymousPrefix + hex.EncodeToString(sum[:])[:16]
}

// IsAnonymous reports whether subject was derived rather than asserted
func IsAnonymous(subject string) bool {
	return strings.HasPrefix(subject, AnonymousPrefix)
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// address host. It returns "" when none is available.
func ClientIP(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if req.RemoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// WithSubject stores subject on ctx
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, contextKey{}, subject)
}

// FromContext returns the subject stored by Middleware
func FromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(contextKey{}).(string)
	return s, ok && s != ""
}

// Middleware resolves the subject once and stores it on the request context
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if _, ok := FromContext(req.Context()); !ok {
			req = req.WithContext(WithSubject(req.Context(), r.Resolve(req)))
		}
		next.ServeHTTP(w, req)
	})
}

// Subject returns the subject on the request context, resolving it if absent
func (r *Resolver) Subject(req *http.Request) string {
	if s, ok := FromContext(req.Context()); ok {
		return s
	}
	return r.Resolve(req)
}
