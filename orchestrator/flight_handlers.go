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
	"strings"

	"github.com/gorilla/mux"

	"tripcount/platform/common/usage"
	"tripcount/platform/connectors/aviation"
	"tripcount/platform/gateway/entitlement"
	"tripcount/platform/orchestrator/flights"
)

// ResolveFlightRequest is the body of POST /api/flights/resolve
type ResolveFlightRequest struct {
	AirlineIATA     string `json:"airlineIATA" validate:"required,min=2,max=3"`
	FlightNumber    string `json:"flightNumber" validate:"required,max=8"`
	DepartDateLocal string `json:"departDateLocal" validate:"required,datetime=2006-01-02"`
	TripID          string `json:"tripId,omitempty" validate:"omitempty,max=128"`
}

// ResolveFlight handles POST /api/flights/resolve
func (h *Handler) ResolveFlight(w http.ResponseWriter, r *http.Request) {
	s := h.scope(r, true)

	var req ResolveFlightRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	carrier, number, ok := aviation.NormalizeFlight(req.AirlineIATA, req.FlightNumber)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_flight", "Flight number is not valid for this airline", nil)
		return
	}
	tripID := strings.TrimSpace(req.TripID)

	check, ok := h.checkMonthly(w, r, s, usage.KindFlightResolves)
	if !ok {
		return
	}

	allowed, err := h.Evaluator.CheckFlightResolveLimitForPlan(r.Context(), s.plan, tripID)
	switch {
	case errors.Is(err, entitlement.ErrTripRequired):
		h.writeError(w, http.StatusBadRequest, "trip_required", "tripId is required on the free plan", nil)
		return
	case err != nil:
		h.Logger.ErrorWithCode(s.subject, s.requestID, "trip limit check failed", http.StatusInternalServerError, err, nil)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Could not check trip limit", nil)
		return
	case !allowed:
		limit := entitlement.ComputeLimit(entitlement.FlightResolvePerTrip, s.plan)
		h.writeLimitError(w, s, &entitlement.LimitError{
			Kind:    entitlement.FlightResolvePerTrip,
			Plan:    s.plan,
			Current: limit.Int(),
			Limit:   limit,
		})
		return
	}

	flight, err := h.Flights.Resolve(r.Context(), carrier, number, req.DepartDateLocal)
	if err != nil {
		h.writeAviationError(w, s, "flight resolve failed", err)
		return
	}

	var segment *flights.Segment
	if tripID != "" {
		segment, err = h.Segments.Upsert(r.Context(), flights.FromFlight(tripID, flight))
		if err != nil {
			h.Logger.ErrorWithCode(s.subject, s.requestID, "failed to save flight segment", http.StatusInternalServerError, err, map[string]interface{}{
				"trip_id": tripID,
			})
			h.writeError(w, http.StatusInternalServerError, "internal_error", "Could not save flight", nil)
			return
		}
	}

	h.Recorder.Record(r.Context(), usage.Event{
		SubjectID: s.subject,
		RequestID: s.requestID,
		Kind:      usage.KindFlightResolves,
		Provider:  flight.Source,
		Endpoint:  "flights/resolve",
		Units:     1,
	})

	body := map[string]interface{}{
		"success": true,
		"flight":  flight,
		"usage":   afterUse(s.plan, check),
	}
	if segment != nil {
		body["segment"] = segment
	}
	writeJSON(w, http.StatusOK, body)
}

// FlightStatus handles GET /api/flights/status
func (h *Handler) FlightStatus(w http.ResponseWriter, r *http.Request) {
	s := h.scope(r, false)
	q := r.URL.Query()

	carrierIn, numberIn, date := q.Get("carrier"), q.Get("number"), q.Get("date")
	if carrierIn == "" || numberIn == "" || date == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "carrier, number and date are required", nil)
		return
	}
	if err := validate.Var(date, "datetime=2006-01-02"); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD", nil)
		return
	}
	carrier, number, ok := aviation.NormalizeFlight(carrierIn, numberIn)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_flight", "Flight number is not valid for this airline", nil)
		return
	}

	flight, err := h.Flights.Resolve(r.Context(), carrier, number, date)
	if err != nil {
		h.writeAviationError(w, s, "flight status lookup failed", err)
		return
	}

	h.Recorder.Record(r.Context(), usage.Event{
		SubjectID: s.subject,
		RequestID: s.requestID,
		Provider:  flight.Source,
		Endpoint:  "flights/status",
		Units:     1,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"flight":  flight,
	})
}

// TripFlights handles GET /api/flights/trip/{tripId}
func (h *Handler) TripFlights(w http.ResponseWriter, r *http.Request) {
	s := h.scope(r, false)

	tripID := strings.TrimSpace(mux.Vars(r)["tripId"])
	if tripID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "tripId is required", nil)
		return
	}

	segments, err := h.Segments.ListByTrip(r.Context(), tripID)
	if err != nil {
		h.Logger.ErrorWithCode(s.subject, s.requestID, "failed to list trip flights", http.StatusInternalServerError, err, map[string]interface{}{
			"trip_id": tripID,
		})
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Could not list flights", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flights": segments,
		"count":   len(segments),
	})
}
