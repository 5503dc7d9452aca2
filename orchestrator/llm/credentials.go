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
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CredentialRegistry reports the API key for a provider
type CredentialRegistry interface {
	APIKey(provider ProviderID) (string, bool)
}

// StaticCredentials is a fixed provider → key map. Empty keys are absent.
type StaticCredentials map[ProviderID]string

// APIKey returns the key for provider
func (c StaticCredentials) APIKey(provider ProviderID) (string, bool) {
	key := strings.TrimSpace(c[provider])
	return key, key != ""
}

// Configured lists the providers reg holds a key for, in stable order
func Configured(reg CredentialRegistry) []ProviderID {
	var out []ProviderID
	if reg == nil {
		return out
	}
	for _, p := range Providers {
		if _, ok := reg.APIKey(p); ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SecretFetcher reads a secret string by id
type SecretFetcher interface {
	GetSecretString(ctx context.Context, secretID string) (string, error)
}

// secretKeys maps the JSON fields of the credentials secret to providers
var secretKeys = map[string]ProviderID{
	"openai":   ProviderOpenAI,
	"deepseek": ProviderDeepseek,
	"xai":      ProviderGrok,
	"grok":     ProviderGrok,
}

// LoadCredentials merges env-provided keys with an optional JSON secret of
// the form {"openai": "...", "deepseek": "...", "xai": "..."}. Keys already
// set in env are kept.
func LoadCredentials(ctx context.Context, env StaticCredentials, secretID string, fetcher SecretFetcher) (StaticCredentials, error) {
	out := make(StaticCredentials, len(Providers))
	for p, k := range env {
		if strings.TrimSpace(k) != "" {
			out[p] = k
		}
	}
	if secretID == "" || fetcher == nil {
		return out, nil
	}

	raw, err := fetcher.GetSecretString(ctx, secretID)
	if err != nil {
		return out, fmt.Errorf("failed to load AI credentials secret %s: %w", maskARN(secretID), err)
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return out, fmt.Errorf("AI credentials secret %s is not a JSON object: %w", maskARN(secretID), err)
	}
	for name, value := range fields {
		p, ok := secretKeys[strings.ToLower(name)]
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if _, set := out.APIKey(p); !set {
			out[p] = value
		}
	}
	return out, nil
}

// maskARN masks an ARN for safe logging
func maskARN(arn string) string {
	if len(arn) <= 12 {
		return "***"
	}
	return "..." + arn[len(arn)-8:]
}
