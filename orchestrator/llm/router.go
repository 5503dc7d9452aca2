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
	"fmt"
	"time"

	"tripcount/platform/shared/logger"
)

// Selection is one routable (model, provider) pair
type Selection struct {
	Model           Model      `json:"model"`
	Provider        ProviderID `json:"provider"`
	CostPer1KTokens float64    `json:"costPer1kTokens"`
	Priority        int        `json:"priority"`
}

func selectionOf(info ModelInfo) Selection {
	return Selection{
		Model:           info.Model,
		Provider:        info.Provider,
		CostPer1KTokens: info.CostPer1KTokens,
		Priority:        info.Priority,
	}
}

// AttemptObserver is told about every provider attempt
type AttemptObserver func(provider ProviderID, model Model, err error, elapsed time.Duration)

// RouterOption configures the Router.
type RouterOption func(*Router)

// WithAttemptTimeout bounds each provider call
func WithAttemptTimeout(d time.Duration) RouterOption {
	return func(r *Router) { r.attemptTimeout = d }
}

// WithAttemptObserver registers a callback for each attempt
func WithAttemptObserver(fn AttemptObserver) RouterOption {
	return func(r *Router) { r.observer = fn }
}

// Router picks the cheapest available provider and falls back in cost order
type Router struct {
	adapters       map[ProviderID]Adapter
	log            *logger.Logger
	attemptTimeout time.Duration
	observer       AttemptObserver
}

// NewRouter creates a router over one adapter per provider
func NewRouter(adapters map[ProviderID]Adapter, log *logger.Logger, opts ...RouterOption) *Router {
	r := &Router{
		adapters:       adapters,
		log:            log,
		attemptTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) available(creds CredentialRegistry) map[ProviderID]bool {
	out := make(map[ProviderID]bool)
	for _, p := range Configured(creds) {
		if _, ok := r.adapters[p]; ok {
			out[p] = true
		}
	}
	return out
}

// SelectCheapestProvider honours requested when it is in the table and its
// provider is available; otherwise it returns the cheapest available model.
func (r *Router) SelectCheapestProvider(creds CredentialRegistry, requested Model) (Selection, error) {
	return selectFrom(r.available(creds), requested)
}

func selectFrom(available map[ProviderID]bool, requested Model) (Selection, error) {
	if len(available) == 0 {
		return Selection{}, ErrNoProvidersConfigured
	}
	if info, ok := Lookup(requested); ok && available[info.Provider] {
		return selectionOf(info), nil
	}
	for _, info := range SortedModels() {
		if available[info.Provider] {
			return selectionOf(info), nil
		}
	}
	return Selection{}, ErrNoProvidersConfigured
}

// Candidates returns the ordered attempt list: the selection, then the
// cheapest model of each other available provider in cost order.
func (r *Router) Candidates(creds CredentialRegistry, requested Model) ([]Selection, error) {
	available := r.available(creds)
	first, err := selectFrom(available, requested)
	if err != nil {
		return nil, err
	}

	out := []Selection{first}
	seen := map[ProviderID]bool{first.Provider: true}
	for _, info := range SortedModels() {
		if !available[info.Provider] || seen[info.Provider] {
			continue
		}
		seen[info.Provider] = true
		out = append(out, selectionOf(info))
	}
	return out, nil
}

// Dispatch sends req to the candidates in order until one succeeds. Each
// provider is tried at most once per call.
func (r *Router) Dispatch(ctx context.Context, creds CredentialRegistry, req ChatRequest) (*AIResponse, error) {
	if len(req.Messages) == 0 {
		return nil, ErrEmptyMessages
	}
	req = req.WithDefaults()

	candidates, err := r.Candidates(creds, req.Model)
	if err != nil {
		return nil, err
	}

	tried := make(map[ProviderID]bool, len(candidates))
	var errs []error
	for i, c := range candidates {
		if tried[c.Provider] {
			continue
		}
		tried[c.Provider] = true

		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if i > 0 {
			r.log.Warn("", "", "falling back to next provider", map[string]interface{}{
				"provider": string(c.Provider),
				"model":    string(c.Model),
				"attempt":  i + 1,
			})
		}

		resp, err := r.attempt(ctx, creds, c, req)
		if err != nil {
			r.log.Warn("", "", "provider call failed", map[string]interface{}{
				"provider": string(c.Provider),
				"model":    string(c.Model),
				"error":    err.Error(),
			})
			errs = append(errs, err)
			continue
		}
		resp.Attempts = i + 1
		return resp, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

func (r *Router) attempt(ctx context.Context, creds CredentialRegistry, c Selection, req ChatRequest) (*AIResponse, error) {
	key, ok := creds.APIKey(c.Provider)
	if !ok {
		return nil, &ProviderError{Provider: c.Provider, Code: ErrCodeAuth, Message: "credential disappeared"}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	start := time.Now()
	comp, err := r.adapters[c.Provider].Complete(attemptCtx, key, c.Model, req)
	if r.observer != nil {
		r.observer(c.Provider, c.Model, err, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	info, _ := Lookup(c.Model)
	return &AIResponse{
		Content:      comp.Content,
		Provider:     c.Provider,
		Model:        c.Model,
		Usage:        comp.Usage,
		CostEstimate: EstimateCost(info, comp.Usage.TotalTokens),
	}, nil
}
