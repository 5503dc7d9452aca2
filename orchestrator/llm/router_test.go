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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripcount/platform/shared/logger"
)

// fakeAdapter records calls and returns a canned result or error
type fakeAdapter struct {
	mu     sync.Mutex
	calls  []Model
	keys   []string
	reqs   []ChatRequest
	err    error
	result *Completion
	delay  time.Duration
}

func (f *fakeAdapter) Complete(ctx context.Context, apiKey string, model Model, req ChatRequest) (*Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model)
	f.keys = append(f.keys, apiKey)
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &Completion{Content: "ok", Model: string(model), Usage: UsageStats{PromptTokens: 600, CompletionTokens: 400, TotalTokens: 1000}}, nil
}

func newTestRouter(adapters map[ProviderID]Adapter, opts ...RouterOption) *Router {
	return NewRouter(adapters, logger.New("llm-test"), opts...)
}

func allFakes() (map[ProviderID]Adapter, *fakeAdapter, *fakeAdapter, *fakeAdapter) {
	o, d, g := &fakeAdapter{}, &fakeAdapter{}, &fakeAdapter{}
	return map[ProviderID]Adapter{ProviderOpenAI: o, ProviderDeepseek: d, ProviderGrok: g}, o, d, g
}

var hello = []Message{{Role: "user", Content: "hi"}}

func TestSortedModels_TotalOrder(t *testing.T) {
	models := SortedModels()
	require.Len(t, models, len(CostTable))

	var names []Model
	for _, m := range models {
		names = append(names, m.Model)
	}
	assert.Equal(t, []Model{ModelGrok1, ModelGrokBeta, ModelDeepseekChat, ModelGPT4oMini, ModelGPT35Turbo, ModelGPT4o}, names)

	for i := 1; i < len(models); i++ {
		assert.True(t, less(models[i-1], models[i]))
	}
}

func TestSelectCheapestProvider(t *testing.T) {
	adapters, _, _, _ := allFakes()
	r := newTestRouter(adapters)

	tests := []struct {
		name      string
		creds     StaticCredentials
		requested Model
		want      Model
		wantErr   error
	}{
		{"no credentials", StaticCredentials{}, "", "", ErrNoProvidersConfigured},
		{"only openai", StaticCredentials{ProviderOpenAI: "sk"}, "", ModelGPT4oMini, nil},
		{"grok requested without xai key routes to openai", StaticCredentials{ProviderOpenAI: "sk"}, ModelGrok1, ModelGPT4oMini, nil},
		{"requested model honoured", StaticCredentials{ProviderOpenAI: "sk", ProviderDeepseek: "ds"}, ModelGPT4o, ModelGPT4o, nil},
		{"unknown model ignored", StaticCredentials{ProviderDeepseek: "ds"}, Model("claude-3"), ModelDeepseekChat, nil},
		{"grok is cheapest", StaticCredentials{ProviderOpenAI: "sk", ProviderDeepseek: "ds", ProviderGrok: "xai"}, "", ModelGrok1, nil},
		{"blank key is absent", StaticCredentials{ProviderGrok: "  ", ProviderDeepseek: "ds"}, "", ModelDeepseekChat, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := r.SelectCheapestProvider(tt.creds, tt.requested)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel.Model)
			assert.Equal(t, CostTable[tt.want].Provider, sel.Provider)
		})
	}
}

func TestCandidates_OnePerProviderInCostOrder(t *testing.T) {
	adapters, _, _, _ := allFakes()
	r := newTestRouter(adapters)
	creds := StaticCredentials{ProviderOpenAI: "sk", ProviderDeepseek: "ds", ProviderGrok: "xai"}

	cands, err := r.Candidates(creds, ModelGPT4o)
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, ModelGPT4o, cands[0].Model)
	assert.Equal(t, ModelGrok1, cands[1].Model)
	assert.Equal(t, ModelDeepseekChat, cands[2].Model)
}

func TestDispatch_CheapestSucceeds(t *testing.T) {
	adapters, openai, deepseek, _ := allFakes()
	r := newTestRouter(adapters)
	creds := StaticCredentials{ProviderOpenAI: "sk-openai", ProviderDeepseek: "sk-ds"}

	resp, err := r.Dispatch(context.Background(), creds, ChatRequest{Messages: hello})
	require.NoError(t, err)

	assert.Equal(t, ProviderDeepseek, resp.Provider)
	assert.Equal(t, ModelDeepseekChat, resp.Model)
	assert.Equal(t, 1, resp.Attempts)
	assert.InDelta(t, 0.00014, resp.CostEstimate, 1e-12)
	assert.Empty(t, openai.calls)
	require.Len(t, deepseek.reqs, 1)
	assert.Equal(t, "sk-ds", deepseek.keys[0])
	assert.Equal(t, DefaultTemperature, *deepseek.reqs[0].Temperature)
	assert.Equal(t, DefaultMaxTokens, deepseek.reqs[0].MaxTokens)
}

func TestDispatch_ExplicitParamsKept(t *testing.T) {
	adapters, _, deepseek, _ := allFakes()
	r := newTestRouter(adapters)
	temp := 0.0

	_, err := r.Dispatch(context.Background(), StaticCredentials{ProviderDeepseek: "ds"}, ChatRequest{Messages: hello, Temperature: &temp, MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, 0.0, *deepseek.reqs[0].Temperature)
	assert.Equal(t, 100, deepseek.reqs[0].MaxTokens)
}

func TestDispatch_FallsBackToSecondCheapest(t *testing.T) {
	adapters, openai, deepseek, grok := allFakes()
	deepseek.err = &ProviderError{Provider: ProviderDeepseek, Code: ErrCodeServerError, StatusCode: 500, Message: "boom"}
	r := newTestRouter(adapters)
	creds := StaticCredentials{ProviderOpenAI: "sk", ProviderDeepseek: "ds"}

	resp, err := r.Dispatch(context.Background(), creds, ChatRequest{Messages: hello})
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, resp.Provider)
	assert.Equal(t, ModelGPT4oMini, resp.Model)
	assert.Equal(t, 2, resp.Attempts)
	assert.Len(t, deepseek.calls, 1)
	assert.Equal(t, []Model{ModelGPT4oMini}, openai.calls)
	assert.Empty(t, grok.calls)
}

func TestDispatch_AllFail(t *testing.T) {
	adapters, openai, deepseek, grok := allFakes()
	openai.err = errors.New("openai down")
	deepseek.err = errors.New("deepseek down")
	grok.err = errors.New("grok down")

	var observed []ProviderID
	r := newTestRouter(adapters, WithAttemptObserver(func(p ProviderID, _ Model, err error, _ time.Duration) {
		assert.Error(t, err)
		observed = append(observed, p)
	}))
	creds := StaticCredentials{ProviderOpenAI: "sk", ProviderDeepseek: "ds", ProviderGrok: "xai"}

	_, err := r.Dispatch(context.Background(), creds, ChatRequest{Messages: hello})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "deepseek down")

	// each provider exactly once, cheapest first
	assert.Equal(t, []ProviderID{ProviderGrok, ProviderDeepseek, ProviderOpenAI}, observed)
	assert.Len(t, openai.calls, 1)
	assert.Len(t, deepseek.calls, 1)
	assert.Len(t, grok.calls, 1)
}

func TestDispatch_AttemptTimeout(t *testing.T) {
	adapters, openai, deepseek, _ := allFakes()
	deepseek.delay = time.Second
	r := newTestRouter(adapters, WithAttemptTimeout(20*time.Millisecond))

	resp, err := r.Dispatch(context.Background(), StaticCredentials{ProviderOpenAI: "sk", ProviderDeepseek: "ds"}, ChatRequest{Messages: hello})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, resp.Provider)
	assert.Len(t, openai.calls, 1)
}

func TestDispatch_Errors(t *testing.T) {
	adapters, _, _, _ := allFakes()
	r := newTestRouter(adapters)

	_, err := r.Dispatch(context.Background(), StaticCredentials{}, ChatRequest{Messages: hello})
	assert.ErrorIs(t, err, ErrNoProvidersConfigured)

	_, err = r.Dispatch(context.Background(), StaticCredentials{ProviderOpenAI: "sk"}, ChatRequest{})
	assert.ErrorIs(t, err, ErrEmptyMessages)
}

func TestDispatch_CostEstimate(t *testing.T) {
	adapters, openai, _, _ := allFakes()
	openai.result = &Completion{Content: "x", Usage: UsageStats{TotalTokens: 2500}}
	r := newTestRouter(adapters)

	resp, err := r.Dispatch(context.Background(), StaticCredentials{ProviderOpenAI: "sk"}, ChatRequest{Messages: hello, Model: ModelGPT4o})
	require.NoError(t, err)
	assert.InDelta(t, 2.5*0.0025, resp.CostEstimate, 1e-12)
}

func TestDispatch_GrokIsFree(t *testing.T) {
	adapters, _, _, _ := allFakes()
	r := newTestRouter(adapters)

	resp, err := r.Dispatch(context.Background(), StaticCredentials{ProviderGrok: "xai"}, ChatRequest{Messages: hello})
	require.NoError(t, err)
	assert.Equal(t, ModelGrok1, resp.Model)
	assert.Zero(t, resp.CostEstimate)
}

func TestProviderError(t *testing.T) {
	cause := errors.New("reset")
	err := &ProviderError{Provider: ProviderOpenAI, StatusCode: 503, Message: "unavailable", Cause: cause}
	assert.Equal(t, "openai error (status 503): unavailable", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, ErrCodeAuth, codeForStatus(401))
	assert.Equal(t, ErrCodeRateLimit, codeForStatus(429))
	assert.Equal(t, ErrCodeServerError, codeForStatus(502))
	assert.Equal(t, ErrCodeBadRequest, codeForStatus(422))
}
