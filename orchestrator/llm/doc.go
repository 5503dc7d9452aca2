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

/*
Package llm routes chat completions to the cheapest configured AI provider
and falls back through the remaining providers when a call fails.

# Providers and models

The model table is closed: every model belongs to exactly one provider and
carries a cost per 1k tokens and a priority. Routing orders models by cost,
then priority, then name.

	| model          | provider | USD / 1k tokens | priority |
	|----------------|----------|-----------------|----------|
	| grok-1         | grok     | 0               | 1        |
	| grok-beta      | grok     | 0               | 2        |
	| deepseek-chat  | deepseek | 0.00014         | 1        |
	| gpt-4o-mini    | openai   | 0.00015         | 1        |
	| gpt-3.5-turbo  | openai   | 0.0005          | 2        |
	| gpt-4o         | openai   | 0.0025          | 3        |

A provider is available when the CredentialRegistry passed to a call holds
a key for it. The registry is read once per request.

# Dispatch

	router := llm.NewRouter(adapters, log)
	resp, err := router.Dispatch(ctx, creds, llm.ChatRequest{
	    Messages: []llm.Message{{Role: "user", Content: "Hello"}},
	})

Dispatch tries the selected model first, then the cheapest model of every
other available provider, each provider at most once. When all attempts
fail the error wraps ErrAllProvidersFailed.
*/
package llm
