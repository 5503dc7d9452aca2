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
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"tripcount/platform/common/usage"
	"tripcount/platform/connectors/aviation"
	"tripcount/platform/gateway/entitlement"
)

const (
	defaultScheduleOffset = -60
	defaultSearchLimit    = 10
	maxSearchLimit        = 100
)

// ScheduleResponse is the body of GET /api/airports/{iata}/schedule
type ScheduleResponse struct {
	IATA              string             `json:"iata"`
	Arrivals          []aviation.Flight  `json:"arrivals"`
	Departures        []aviation.Flight  `json:"departures"`
	Direction         aviation.Direction `json:"direction"`
	OffsetMinutes     int                `json:"offsetMinutes"`
	RequestedDuration int                `json:"requestedDuration"`
	ActualDuration    int                `json:"actualDuration"`
	Entitlements      scheduleLimits     `json:"entitlements"`
	Usage             usageInfo          `json:"usage"`
}

type scheduleLimits struct {
	Plan          entitlement.Plan  `json:"plan"`
	WindowMinutes entitlement.Limit `json:"windowMinutes"`
	Clamped       bool              `json:"clamped"`
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// AirportSchedule handles GET /api/airports/{iata}/schedule
func (h *Handler) AirportSchedule(w http.ResponseWriter, r *http.Request) {
	s := h.scope(r, true)

	iata, ok := aviation.NormalizeIATA(mux.Vars(r)["iata"])
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_iata", "Airport code must be three letters", nil)
		return
	}
	direction, ok := aviation.ParseDirection(r.URL.Query().Get("direction"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "direction must be both, arrivals or departures", nil)
		return
	}

	window := entitlement.ComputeLimit(entitlement.AirportScheduleWindowMinutes, s.plan)
	offset, ok := queryInt(r, "offsetMinutes", defaultScheduleOffset)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "offsetMinutes must be an integer", nil)
		return
	}
	requested, ok := queryInt(r, "durationMinutes", window.Int())
	if !ok || requested <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "durationMinutes must be a positive integer", nil)
		return
	}
	actual := requested
	if capMinutes := window.Int(); actual > capMinutes {
		actual = capMinutes
	}

	check, ok := h.checkMonthly(w, r, s, usage.KindAirportQueries)
	if !ok {
		return
	}

	start := time.Now()
	board, err := h.Board.AirportSchedule(r.Context(), iata, offset, actual, direction)
	if err != nil {
		h.writeAviationError(w, s, "airport schedule lookup failed", err)
		return
	}
	h.Logger.InfoWithDuration(s.subject, s.requestID, "airport schedule served", float64(time.Since(start).Milliseconds()), map[string]interface{}{
		"iata":       iata,
		"arrivals":   len(board.Arrivals),
		"departures": len(board.Departures),
	})

	h.Recorder.Record(r.Context(), usage.Event{
		SubjectID: s.subject,
		RequestID: s.requestID,
		Kind:      usage.KindAirportQueries,
		Provider:  aviation.SourceAeroDataBox,
		Endpoint:  "airports/schedule",
		Units:     1,
	})

	writeJSON(w, http.StatusOK, ScheduleResponse{
		IATA:              iata,
		Arrivals:          board.Arrivals,
		Departures:        board.Departures,
		Direction:         direction,
		OffsetMinutes:     offset,
		RequestedDuration: requested,
		ActualDuration:    actual,
		Entitlements: scheduleLimits{
			Plan:          s.plan,
			WindowMinutes: window,
			Clamped:       actual != requested,
		},
		Usage: afterUse(s.plan, check),
	})
}

// SearchAirports handles GET /api/airports/search
func (h *Handler) SearchAirports(w http.ResponseWriter, r *http.Request) {
	s := h.scope(r, false)
	q := r.URL.Query()

	if q.Get("origin") == "" || q.Get("destination") == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "origin and destination are required", nil)
		return
	}
	origin, okOrigin := aviation.NormalizeIATA(q.Get("origin"))
	destination, okDest := aviation.NormalizeIATA(q.Get("destination"))
	if !okOrigin || !okDest {
		h.writeError(w, http.StatusBadRequest, "invalid_iata", "Airport codes must be three letters", nil)
		return
	}
	date := q.Get("date")
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD", nil)
			return
		}
	}
	limit, ok := queryInt(r, "limit", defaultSearchLimit)
	if !ok || limit <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer", nil)
		return
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	res, err := h.Routes.Search(r.Context(), origin, destination, date, limit)
	if err != nil {
		h.writeAviationError(w, s, "flight search failed", err)
		return
	}

	if !res.Cached {
		h.Recorder.Record(r.Context(), usage.Event{
			SubjectID: s.subject,
			RequestID: s.requestID,
			Provider:  res.Source,
			Endpoint:  "airports/search",
			Units:     1,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flights": res.Flights,
		"count":   len(res.Flights),
		"source":  res.Source,
		"cached":  res.Cached,
	})
}

// writeAviationError maps upstream aviation failures
func (h *Handler) writeAviationError(w http.ResponseWriter, s requestScope, msg string, err error) {
	switch {
	case errors.Is(err, aviation.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", "Flight not found", nil)
	case errors.Is(err, aviation.ErrNotConfigured):
		h.Logger.Error(s.subject, s.requestID, msg, map[string]interface{}{"error": err.Error()})
		h.writeError(w, http.StatusServiceUnavailable, "not_configured", "Flight data is not available", nil)
	default:
		h.Logger.ErrorWithCode(s.subject, s.requestID, msg, http.StatusInternalServerError, err, nil)
		h.writeError(w, http.StatusInternalServerError, "upstream_error", "Flight data provider failed", nil)
	}
}
