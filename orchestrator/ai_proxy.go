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
	"errors"
	"net/http"

	"tripcount/platform/common/usage"
	"tripcount/platform/orchestrator/itinerary"
	"tripcount/platform/orchestrator/llm"
)

type aiMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
	Name    string `json:"name,omitempty" validate:"omitempty,max=64"`
}

// AIProxyRequest is the body of POST /ai-proxy
type AIProxyRequest struct {
	Messages    []aiMessage `json:"messages" validate:"required,min=1,dive"`
	Model       string      `json:"model,omitempty" validate:"omitempty,max=64"`
	Temperature *float64    `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int         `json:"maxTokens,omitempty" validate:"omitempty,gte=1,lte=32768"`
}

func (req AIProxyRequest) chatRequest() llm.ChatRequest {
	msgs := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content, Name: m.Name})
	}
	return llm.ChatRequest{
		Messages:    msgs,
		Model:       llm.Model(req.Model),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

// AIProxy handles POST /ai-proxy
func (h *Handler) AIProxy(w http.ResponseWriter, r *http.Request) {
	s := h.scope(r, false)

	var req AIProxyRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	resp, err := h.AI.Dispatch(r.Context(), h.Credentials, req.chatRequest())
	if err != nil {
		h.writeDispatchError(w, s, err)
		return
	}

	h.Recorder.Record(r.Context(), usage.Event{
		SubjectID: s.subject,
		RequestID: s.requestID,
		Provider:  string(resp.Provider),
		Endpoint:  "ai-proxy",
		Units:     resp.Usage.TotalTokens,
		CostCents: usage.CostCents(resp.CostEstimate),
	})

	writeJSON(w, http.StatusOK, resp)
}

// writeDispatchError maps router failures: exhausted or missing providers
// are a bad gateway, anything else is internal.
func (h *Handler) writeDispatchError(w http.ResponseWriter, s requestScope, err error) {
	h.Logger.ErrorWithCode(s.subject, s.requestID, "AI dispatch failed", http.StatusBadGateway, err, nil)
	switch {
	case errors.Is(err, llm.ErrAllProvidersFailed):
		h.writeError(w, http.StatusBadGateway, "all_providers_failed", "All AI providers failed, try again later", nil)
	case errors.Is(err, llm.ErrNoProvidersConfigured):
		h.writeError(w, http.StatusBadGateway, "no_providers_configured", "No AI provider is available", nil)
	case errors.Is(err, llm.ErrEmptyMessages):
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	default:
		h.writeError(w, http.StatusInternalServerError, "internal_error", "AI request failed", nil)
	}
}

// fallbackCounter counts fallbacks on every dispatch it forwards
type fallbackCounter struct {
	next itinerary.Dispatcher
}

func (d fallbackCounter) Dispatch(ctx context.Context, creds llm.CredentialRegistry, req llm.ChatRequest) (*llm.AIResponse, error) {
	resp, err := d.next.Dispatch(ctx, creds, req)
	if resp != nil && resp.Attempts > 1 {
		promAIFallbacks.Add(float64(resp.Attempts - 1))
	}
	return resp, err
}
