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
	"net/http"
	"time"

	"tripcount/platform/orchestrator/llm"
)

// Health handles GET /health. Any failing dependency makes it 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	components := make(map[string]string, len(h.HealthChecks))
	for _, hc := range h.HealthChecks {
		if err := hc.Check(ctx); err != nil {
			h.Logger.Warn("", "", "health check failed", map[string]interface{}{
				"component": hc.Name,
				"error":     err.Error(),
			})
			components[hc.Name] = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[hc.Name] = "ok"
	}

	providers := llm.Configured(h.Credentials)
	if providers == nil {
		providers = []llm.ProviderID{}
	}

	writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"service":    "tripcount-api",
		"timestamp":  time.Now().UTC(),
		"components": components,
		"providers":  providers,
	})
}
