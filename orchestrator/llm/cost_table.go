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

import "sort"

// Model is a model id from the closed cost table
type Model string

const (
	ModelGrok1        Model = "grok-1"
	ModelGrokBeta     Model = "grok-beta"
	ModelDeepseekChat Model = "deepseek-chat"
	ModelGPT4oMini    Model = "gpt-4o-mini"
	ModelGPT35Turbo   Model = "gpt-3.5-turbo"
	ModelGPT4o        Model = "gpt-4o"
)

// ModelInfo is one row of the cost table
type ModelInfo struct {
	Model           Model      `json:"model"`
	Provider        ProviderID `json:"provider"`
	CostPer1KTokens float64    `json:"costPer1kTokens"`
	Priority        int        `json:"priority"`
}

// CostTable maps every routable model to its provider, cost and priority
var CostTable = map[Model]ModelInfo{
	ModelGrok1:        {ModelGrok1, ProviderGrok, 0, 1},
	ModelGrokBeta:     {ModelGrokBeta, ProviderGrok, 0, 2},
	ModelDeepseekChat: {ModelDeepseekChat, ProviderDeepseek, 0.00014, 1},
	ModelGPT4oMini:    {ModelGPT4oMini, ProviderOpenAI, 0.00015, 1},
	ModelGPT35Turbo:   {ModelGPT35Turbo, ProviderOpenAI, 0.0005, 2},
	ModelGPT4o:        {ModelGPT4o, ProviderOpenAI, 0.0025, 3},
}

// Lookup returns the table row for m
func Lookup(m Model) (ModelInfo, bool) {
	info, ok := CostTable[m]
	return info, ok
}

// SortedModels returns every model ordered by cost, priority, then name
func SortedModels() []ModelInfo {
	out := make([]ModelInfo, 0, len(CostTable))
	for _, info := range CostTable {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func less(a, b ModelInfo) bool {
	if a.CostPer1KTokens != b.CostPer1KTokens {
		return a.CostPer1KTokens < b.CostPer1KTokens
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Model < b.Model
}

// EstimateCost returns USD for totalTokens on info's model
func EstimateCost(info ModelInfo, totalTokens int) float64 {
	return float64(totalTokens) / 1000 * info.CostPer1KTokens
}
