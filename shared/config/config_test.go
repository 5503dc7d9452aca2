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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "RATE_LIMIT_PER_MINUTE", "ALLOWED_ORIGINS",
		"OPENAI_API_KEY", "DEEPSEEK_API_KEY", "XAI_API_KEY", "AI_PROVIDER_TIMEOUT_SECONDS",
		"AMADEUS_ENV", "AVIATIONSTACK_CACHE_SIZE", "TRIPCOUNT_TEST_KEY", "CORS_ALLOW_CREDENTIALS",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tripcount.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 15*time.Second, cfg.AITimeout())
	assert.Equal(t, 12*time.Second, cfg.AviationTimeout())
	assert.Equal(t, 168*time.Hour, cfg.CacheTTL())
	assert.Equal(t, "test", cfg.Aviation.AmadeusEnv)
}

func TestLoadFrom_YAMLWithExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRIPCOUNT_TEST_KEY", "sk-from-env")

	path := writeFile(t, `
port: "9090"
ai:
  openai_api_key: ${TRIPCOUNT_TEST_KEY}
  deepseek_api_key: ${MISSING_KEY:-fallback}
aviation:
  cache_size: 50
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sk-from-env", cfg.AI.OpenAIAPIKey)
	assert.Equal(t, "fallback", cfg.AI.DeepseekAPIKey)
	assert.Equal(t, 50, cfg.Aviation.CacheSize)
	// untouched keys keep defaults
	assert.Equal(t, "https://api.x.ai/v1", cfg.AI.XAIBaseURL)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AI_PROVIDER_TIMEOUT_SECONDS", "10")

	path := writeFile(t, "port: \"9090\"\n")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.AITimeout())
}

func TestLoadFrom_CORSCredentials(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.False(t, cfg.CORSAllowCredentials)
	assert.True(t, cfg.HasWildcardOrigin())

	t.Setenv("ALLOWED_ORIGINS", "https://app.tripcount.example")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")
	cfg, err = LoadFrom("")
	require.NoError(t, err)
	assert.True(t, cfg.CORSAllowCredentials)
	assert.False(t, cfg.HasWildcardOrigin())
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		file  string
		isCfg bool
	}{
		{"bad int", map[string]string{"RATE_LIMIT_PER_MINUTE": "lots"}, "", true},
		{"negative rate", map[string]string{"RATE_LIMIT_PER_MINUTE": "-1"}, "", true},
		{"bad amadeus env", map[string]string{"AMADEUS_ENV": "staging"}, "", true},
		{"zero cache", map[string]string{"AVIATIONSTACK_CACHE_SIZE": "0"}, "", true},
		{"bad bool", map[string]string{"CORS_ALLOW_CREDENTIALS": "sometimes"}, "", true},
		{"credentials with wildcard", map[string]string{"CORS_ALLOW_CREDENTIALS": "true"}, "", true},
		{"bad yaml", nil, "port: [", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			_, err := LoadFrom(path)
			require.Error(t, err)
			if tt.isCfg {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TRIPCOUNT_TEST_KEY", "abc")
	assert.Equal(t, "key=abc", expandEnvVars("key=${TRIPCOUNT_TEST_KEY}"))
	assert.Equal(t, "key=abc", expandEnvVars("key=$TRIPCOUNT_TEST_KEY"))
	assert.Equal(t, "key=", expandEnvVars("key=${TRIPCOUNT_UNSET_VAR}"))
	assert.Equal(t, "key=d", expandEnvVars("key=${TRIPCOUNT_UNSET_VAR:-d}"))
}
