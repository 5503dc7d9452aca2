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

package llm

import (
	"errors"
	"fmt"
)

// ProviderID identifies an AI vendor
type ProviderID string

const (
	ProviderOpenAI   ProviderID = "openai"
	ProviderDeepseek ProviderID = "deepseek"
	ProviderGrok     ProviderID = "grok"
)

// Providers lists every known provider
var Providers = []ProviderID{ProviderOpenAI, ProviderDeepseek, ProviderGrok}

const (
	// DefaultTemperature is used when a request leaves temperature unset
	DefaultTemperature = 0.7
	// DefaultMaxTokens is used when a request leaves maxTokens unset
	DefaultMaxTokens = 2048
)

// Message is one chat turn. Name is omitted from the wire when empty.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ChatRequest is a provider-neutral completion request
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Model       Model     `json:"model,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"maxTokens,omitempty"`
}

// WithDefaults returns a copy with temperature and maxTokens filled in
func (r ChatRequest) WithDefaults() ChatRequest {
	if r.Temperature == nil {
		t := DefaultTemperature
		r.Temperature = &t
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	return r
}

// UsageStats holds token counts. Missing upstream counts are zero.
type UsageStats struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Completion is what an Adapter returns for one successful call
type Completion struct {
	Content string
	Model   string
	Usage   UsageStats
}

// AIResponse is the routed result returned to callers
type AIResponse struct {
	Content      string     `json:"content"`
	Provider     ProviderID `json:"provider"`
	Model        Model      `json:"model"`
	Usage        UsageStats `json:"usage"`
	CostEstimate float64    `json:"costEstimate"`
	Attempts     int        `json:"attempts"`
}

var (
	// ErrNoProvidersConfigured is returned when no provider has a credential
	ErrNoProvidersConfigured = errors.New("no AI providers configured")
	// ErrAllProvidersFailed is returned when every candidate failed
	ErrAllProvidersFailed = errors.New("all providers failed")
	// ErrEmptyMessages is returned for a request without messages
	ErrEmptyMessages = errors.New("messages must not be empty")
)

// ProviderError is a failure reported by one provider call
type ProviderError struct {
	Provider   ProviderID `json:"provider"`
	Code       string     `json:"code"`
	Message    string     `json:"message"`
	StatusCode int        `json:"status_code,omitempty"`
	Cause      error      `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Common error codes.
const (
	ErrCodeRateLimit   = "rate_limit"
	ErrCodeAuth        = "authentication_error"
	ErrCodeBadRequest  = "invalid_request"
	ErrCodeServerError = "server_error"
	ErrCodeTimeout     = "timeout"
	ErrCodeMalformed   = "malformed_response"
	ErrCodeUnavailable = "unavailable"
)

// codeForStatus maps an HTTP status to an error code
func codeForStatus(status int) string {
	switch {
	case status == 401 || status == 403:
		return ErrCodeAuth
	case status == 429:
		return ErrCodeRateLimit
	case status >= 500:
		return ErrCodeServerError
	case status >= 400:
		return ErrCodeBadRequest
	}
	return ErrCodeUnavailable
}
