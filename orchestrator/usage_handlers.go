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
	"net/http"
	"sync"

	"tripcount/platform/common/usage"
	"tripcount/platform/gateway/entitlement"
)

const (
	legacyFreeLimit = 10
	legacyProLimit  = 1000
)

// legacyCounter is the process-local quota kept for older app builds. It is
// not persisted and resets on restart.
type legacyCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newLegacyCounter() *legacyCounter {
	return &legacyCounter{counts: make(map[string]int)}
}

// take increments the counter when it is below limit
func (c *legacyCounter) take(userID, monthKey string, limit int) (used int, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := userID + "|" + monthKey
	used = c.counts[key]
	if used >= limit {
		return used, false
	}
	used++
	c.counts[key] = used
	return used, true
}

// LegacyUsageRequest is the body of POST /usage
type LegacyUsageRequest struct {
	UserID    string `json:"userId" validate:"required,max=128"`
	HasPro    bool   `json:"hasPro"`
	FreeLimit *int   `json:"freeLimit,omitempty" validate:"omitempty,gte=0"`
	ProLimit  *int   `json:"proLimit,omitempty" validate:"omitempty,gte=0"`
}

// LegacyUsage handles POST /usage
func (h *Handler) LegacyUsage(w http.ResponseWriter, r *http.Request) {
	var req LegacyUsageRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	limit := legacyFreeLimit
	if req.FreeLimit != nil {
		limit = *req.FreeLimit
	}
	if req.HasPro {
		limit = legacyProLimit
		if req.ProLimit != nil {
			limit = *req.ProLimit
		}
	}

	used, allowed := h.legacy.take(req.UserID, usage.MonthKey(h.Evaluator.Now()), limit)
	status := http.StatusOK
	if !allowed {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, map[string]interface{}{
		"allowed": allowed,
		"used":    used,
		"limit":   limit,
	})
}

// GetUsage handles GET /api/usage
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	s := h.scope(r, true)
	monthKey := usage.MonthKey(h.Evaluator.Now())

	meter, err := h.Meters.GetMeter(r.Context(), s.subject, monthKey)
	if err != nil {
		h.Logger.ErrorWithCode(s.subject, s.requestID, "failed to read usage", http.StatusServiceUnavailable, err, nil)
		h.writeError(w, http.StatusServiceUnavailable, "usage_unavailable", "Usage is temporarily unavailable", nil)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		SubjectID string `json:"subjectId"`
		entitlement.Summary
	}{
		SubjectID: s.subject,
		Summary:   entitlement.Summarize(s.plan, monthKey, meter),
	})
}
