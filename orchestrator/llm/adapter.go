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
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Adapter performs one chat completion against one provider
type Adapter interface {
	Complete(ctx context.Context, apiKey string, model Model, req ChatRequest) (*Completion, error)
}

// OpenAICompatAdapter talks to any OpenAI-compatible chat completions API.
// OpenAI, Deepseek and xAI all expose one.
type OpenAICompatAdapter struct {
	provider   ProviderID
	baseURL    string
	httpClient *http.Client
}

// NewOpenAICompatAdapter creates an adapter for provider at baseURL
func NewOpenAICompatAdapter(provider ProviderID, baseURL string, timeout time.Duration) *OpenAICompatAdapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAICompatAdapter{
		provider:   provider,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// DefaultAdapters builds one adapter per provider from base URLs
func DefaultAdapters(openAIBaseURL, deepseekBaseURL, xaiBaseURL string, timeout time.Duration) map[ProviderID]Adapter {
	return map[ProviderID]Adapter{
		ProviderOpenAI:   NewOpenAICompatAdapter(ProviderOpenAI, openAIBaseURL, timeout),
		ProviderDeepseek: NewOpenAICompatAdapter(ProviderDeepseek, deepseekBaseURL, timeout),
		ProviderGrok:     NewOpenAICompatAdapter(ProviderGrok, xaiBaseURL, timeout),
	}
}

// Complete sends req with the given key and model
func (a *OpenAICompatAdapter) Complete(ctx context.Context, apiKey string, model Model, req ChatRequest) (*Completion, error) {
	cfg := openai.DefaultConfig(apiKey)
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	cfg.HTTPClient = a.httpClient
	client := openai.NewClientWithConfig(cfg)

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
			Name:    m.Name,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     string(model),
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
		// go-openai drops a zero temperature from the wire
		if chatReq.Temperature == 0 {
			chatReq.Temperature = math.SmallestNonzeroFloat32
		}
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, a.wrapError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ProviderError{
			Provider: a.provider,
			Code:     ErrCodeMalformed,
			Message:  "response contained no choices",
		}
	}

	usage := UsageStats{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	returned := resp.Model
	if returned == "" {
		returned = string(model)
	}
	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   returned,
		Usage:   usage,
	}, nil
}

func (a *OpenAICompatAdapter) wrapError(ctx context.Context, err error) error {
	pe := &ProviderError{Provider: a.provider, Message: err.Error(), Cause: err, Code: ErrCodeUnavailable}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		pe.StatusCode = apiErr.HTTPStatusCode
		pe.Message = apiErr.Message
		pe.Code = codeForStatus(apiErr.HTTPStatusCode)
	case errors.As(err, &reqErr):
		pe.StatusCode = reqErr.HTTPStatusCode
		pe.Code = codeForStatus(reqErr.HTTPStatusCode)
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		pe.Code = ErrCodeTimeout
	}
	return pe
}

var _ Adapter = (*OpenAICompatAdapter)(nil)
