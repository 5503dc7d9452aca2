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

package orchestrator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripcount/platform/shared/config"
	"tripcount/platform/shared/logger"
)

func TestBuild_MemoryStores(t *testing.T) {
	cfg := config.Defaults()
	app, err := Build(context.Background(), cfg, logger.NewWithWriter("test", io.Discard))
	require.NoError(t, err)
	defer app.Close()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"providers":[]`)

	req = httptest.NewRequest(http.MethodPost, "/ai-proxy", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	app.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/airports/LHR/schedule", nil)
	w = httptest.NewRecorder()
	app.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSOptions_Credentials(t *testing.T) {
	cfg := config.Defaults()
	assert.False(t, corsOptions(cfg).AllowCredentials)

	cfg.CORSAllowCredentials = true
	assert.False(t, corsOptions(cfg).AllowCredentials, "wildcard origin must not carry credentials")

	cfg.AllowedOrigins = []string{"https://app.tripcount.example"}
	assert.True(t, corsOptions(cfg).AllowCredentials)
}

func TestBuild_WildcardPreflightHasNoCredentials(t *testing.T) {
	cfg := config.Defaults()
	app, err := Build(context.Background(), cfg, logger.NewWithWriter("test", io.Discard))
	require.NoError(t, err)
	defer app.Close()

	req := httptest.NewRequest(http.MethodOptions, "/ai-proxy", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	app.Handler.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}
