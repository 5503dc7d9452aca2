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

// Package config loads service settings from defaults, an optional YAML file
// and the process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete runtime configuration of the backend
type Config struct {
	Port               string   `yaml:"port"`
	DatabaseURL        string   `yaml:"database_url"`
	RedisURL           string   `yaml:"redis_url"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	SubjectJWTSecret   string   `yaml:"subject_jwt_secret"`
	AWSRegion          string   `yaml:"aws_region"`

	// CORSAllowCredentials is opt-in and requires explicit origins
	CORSAllowCredentials bool `yaml:"cors_allow_credentials"`

	AI       AIConfig       `yaml:"ai"`
	Aviation AviationConfig `yaml:"aviation"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// AIConfig holds AI provider credentials and endpoints
type AIConfig struct {
	OpenAIAPIKey         string `yaml:"openai_api_key"`
	DeepseekAPIKey       string `yaml:"deepseek_api_key"`
	XAIAPIKey            string `yaml:"xai_api_key"`
	OpenAIBaseURL        string `yaml:"openai_base_url"`
	DeepseekBaseURL      string `yaml:"deepseek_base_url"`
	XAIBaseURL           string `yaml:"xai_base_url"`
	TimeoutSeconds       int    `yaml:"timeout_seconds"`
	CredentialsSecretARN string `yaml:"credentials_secret_arn"`
}

// AviationConfig holds flight data provider settings
type AviationConfig struct {
	AeroDataBoxAPIKey    string `yaml:"aerodatabox_api_key"`
	AeroDataBoxHost      string `yaml:"aerodatabox_host"`
	AviationStackAPIKey  string `yaml:"aviationstack_api_key"`
	AviationStackBaseURL string `yaml:"aviationstack_base_url"`
	AmadeusAPIKey        string `yaml:"amadeus_api_key"`
	AmadeusAPISecret     string `yaml:"amadeus_api_secret"`
	AmadeusEnv           string `yaml:"amadeus_env"`
	TimeoutSeconds       int    `yaml:"timeout_seconds"`
	CacheTTLHours        int    `yaml:"cache_ttl_hours"`
	CacheSize            int    `yaml:"cache_size"`
}

// IngestConfig holds itinerary ingest settings
type IngestConfig struct {
	ArchiveBucket    string `yaml:"archive_bucket"`
	ArchiveEndpoint  string `yaml:"archive_endpoint"`
	ArchiveAccessKey string `yaml:"archive_access_key"`
	ArchiveSecretKey string `yaml:"archive_secret_key"`
}

// Defaults returns the configuration used when nothing else is set
func Defaults() *Config {
	return &Config{
		Port:               "8080",
		RateLimitPerMinute: 60,
		AllowedOrigins:     []string{"*"},
		AWSRegion:          "us-east-1",
		AI: AIConfig{
			OpenAIBaseURL:   "https://api.openai.com/v1",
			DeepseekBaseURL: "https://api.deepseek.com/v1",
			XAIBaseURL:      "https://api.x.ai/v1",
			TimeoutSeconds:  15,
		},
		Aviation: AviationConfig{
			AeroDataBoxHost:      "aerodatabox.p.rapidapi.com",
			AviationStackBaseURL: "http://api.aviationstack.com/v1",
			AmadeusEnv:           "test",
			TimeoutSeconds:       12,
			CacheTTLHours:        7 * 24,
			CacheSize:            500,
		},
	}
}

// Load reads .env (when present), then CONFIG_FILE (when set), then the environment
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom is Load with an explicit YAML path. An empty path skips the file.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	overrideString(&c.Port, "PORT")
	overrideString(&c.DatabaseURL, "DATABASE_URL")
	overrideString(&c.RedisURL, "REDIS_URL")
	overrideString(&c.SubjectJWTSecret, "SUBJECT_JWT_SECRET")
	overrideString(&c.AWSRegion, "AWS_REGION")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if err := overrideBool(&c.CORSAllowCredentials, "CORS_ALLOW_CREDENTIALS"); err != nil {
		return err
	}

	overrideString(&c.AI.OpenAIAPIKey, "OPENAI_API_KEY")
	overrideString(&c.AI.DeepseekAPIKey, "DEEPSEEK_API_KEY")
	overrideString(&c.AI.XAIAPIKey, "XAI_API_KEY")
	overrideString(&c.AI.OpenAIBaseURL, "OPENAI_BASE_URL")
	overrideString(&c.AI.DeepseekBaseURL, "DEEPSEEK_BASE_URL")
	overrideString(&c.AI.XAIBaseURL, "XAI_BASE_URL")
	overrideString(&c.AI.CredentialsSecretARN, "AI_CREDENTIALS_SECRET_ARN")

	overrideString(&c.Aviation.AeroDataBoxAPIKey, "AERODATABOX_API_KEY")
	overrideString(&c.Aviation.AeroDataBoxHost, "AERODATABOX_HOST")
	overrideString(&c.Aviation.AviationStackAPIKey, "AVIATIONSTACK_API_KEY")
	overrideString(&c.Aviation.AviationStackBaseURL, "AVIATIONSTACK_BASE_URL")
	overrideString(&c.Aviation.AmadeusAPIKey, "AMADEUS_API_KEY")
	overrideString(&c.Aviation.AmadeusAPISecret, "AMADEUS_API_SECRET")
	overrideString(&c.Aviation.AmadeusEnv, "AMADEUS_ENV")

	overrideString(&c.Ingest.ArchiveBucket, "ITINERARY_ARCHIVE_BUCKET")
	overrideString(&c.Ingest.ArchiveEndpoint, "ITINERARY_ARCHIVE_ENDPOINT")
	overrideString(&c.Ingest.ArchiveAccessKey, "ITINERARY_ARCHIVE_ACCESS_KEY")
	overrideString(&c.Ingest.ArchiveSecretKey, "ITINERARY_ARCHIVE_SECRET_KEY")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE"},
		{&c.AI.TimeoutSeconds, "AI_PROVIDER_TIMEOUT_SECONDS"},
		{&c.Aviation.TimeoutSeconds, "AVIATION_TIMEOUT_SECONDS"},
		{&c.Aviation.CacheTTLHours, "AVIATIONSTACK_CACHE_TTL_HOURS"},
		{&c.Aviation.CacheSize, "AVIATIONSTACK_CACHE_SIZE"},
	}
	for _, i := range ints {
		if err := overrideInt(i.dst, i.key); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("%w: port is required", ErrInvalidConfig)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("%w: rate_limit_per_minute must not be negative", ErrInvalidConfig)
	}
	if c.AI.TimeoutSeconds <= 0 || c.Aviation.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.Aviation.CacheSize <= 0 || c.Aviation.CacheTTLHours <= 0 {
		return fmt.Errorf("%w: aviation cache size and ttl must be positive", ErrInvalidConfig)
	}
	if c.CORSAllowCredentials && c.HasWildcardOrigin() {
		return fmt.Errorf("%w: cors_allow_credentials needs explicit allowed_origins, not *", ErrInvalidConfig)
	}
	switch c.Aviation.AmadeusEnv {
	case "test", "production":
	default:
		return fmt.Errorf("%w: amadeus_env must be test or production, got %q", ErrInvalidConfig, c.Aviation.AmadeusEnv)
	}
	return nil
}

// HasWildcardOrigin reports whether any allowed origin is "*"
func (c *Config) HasWildcardOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// AITimeout is the per-attempt deadline for an AI provider call
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

// AviationTimeout is the deadline for a single aviation upstream call
func (c *Config) AviationTimeout() time.Duration {
	return time.Duration(c.Aviation.TimeoutSeconds) * time.Second
}

// CacheTTL is how long AviationStack route results stay cached
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Aviation.CacheTTLHours) * time.Hour
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
	}
	*dst = n
	return nil
}

func overrideBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
