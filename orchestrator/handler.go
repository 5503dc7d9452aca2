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
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tripcount/platform/common/usage"
	"tripcount/platform/connectors/aviation"
	"tripcount/platform/gateway/entitlement"
	"tripcount/platform/gateway/identity"
	"tripcount/platform/gateway/ratelimit"
	"tripcount/platform/orchestrator/flights"
	"tripcount/platform/orchestrator/itinerary"
	"tripcount/platform/orchestrator/llm"
	"tripcount/platform/shared/logger"
)

// AirportBoard serves airport arrivals/departures
type AirportBoard interface {
	AirportSchedule(ctx context.Context, iata string, offsetMinutes, durationMinutes int, direction aviation.Direction) (*aviation.Schedule, error)
}

// FlightFinder resolves one dated flight
type FlightFinder interface {
	Resolve(ctx context.Context, carrier, number, date string) (*aviation.Flight, error)
}

// RouteFinder lists flights between two airports
type RouteFinder interface {
	Search(ctx context.Context, origin, destination, date string, limit int) (*aviation.RouteResult, error)
}

// HealthCheck is one dependency probed by /health
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators a Handler needs. Limiter and Ingest may be nil.
type Deps struct {
	Identity           *identity.Resolver
	Evaluator          *entitlement.Evaluator
	Meters             usage.MeterReader
	Recorder           *usage.Recorder
	AI                 itinerary.Dispatcher
	Credentials        llm.CredentialRegistry
	Board              AirportBoard
	Routes             RouteFinder
	Flights            FlightFinder
	Segments           flights.Store
	Ingest             *itinerary.Service
	Limiter            ratelimit.Limiter
	RateLimitPerMinute int
	HealthChecks       []HealthCheck
	Logger             *logger.Logger
}

// Handler serves the public HTTP API
type Handler struct {
	Deps
	legacy *legacyCounter
}

// NewHandler creates a new API handler
func NewHandler(deps Deps) *Handler {
	return &Handler{Deps: deps, legacy: newLegacyCounter()}
}

// RegisterRoutes registers all API routes with a gorilla/mux router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(instrument, h.Identity.Middleware)

	burst := ratelimit.Middleware(h.Limiter, h.RateLimitPerMinute, h.Identity.Subject)

	// AI
	r.Handle("/ai-proxy", burst(http.HandlerFunc(h.AIProxy))).Methods("POST")
	r.Handle("/api/ingest/itinerary", burst(http.HandlerFunc(h.IngestItinerary))).Methods("POST")

	// Aviation
	r.HandleFunc("/api/airports/search", h.SearchAirports).Methods("GET")
	r.HandleFunc("/api/airports/{iata}/schedule", h.AirportSchedule).Methods("GET")
	r.HandleFunc("/api/flights/resolve", h.ResolveFlight).Methods("POST")
	r.HandleFunc("/api/flights/status", h.FlightStatus).Methods("GET")
	r.HandleFunc("/api/flights/trip/", h.TripFlights).Methods("GET")
	r.HandleFunc("/api/flights/trip/{tripId}", h.TripFlights).Methods("GET")

	// Usage
	r.HandleFunc("/usage", h.LegacyUsage).Methods("POST")
	r.HandleFunc("/api/usage", h.GetUsage).Methods("GET")

	// Operations
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// validate reports fields by their JSON names
var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// requestScope carries the per-request identity
type requestScope struct {
	subject   string
	requestID string
	plan      entitlement.Plan
}

func (h *Handler) scope(r *http.Request, withPlan bool) requestScope {
	s := requestScope{
		subject:   h.Identity.Subject(r),
		requestID: r.Header.Get("X-Request-ID"),
	}
	if s.requestID == "" {
		s.requestID = "req_" + uuid.New().String()
	}
	if withPlan {
		s.plan = h.Evaluator.GetPlan(r.Context(), s.subject)
	}
	return s
}

// usageInfo is the counter state after this request
type usageInfo struct {
	Plan  entitlement.Plan  `json:"plan"`
	Kind  usage.Kind        `json:"kind"`
	Used  int               `json:"used"`
	Limit entitlement.Limit `json:"limit"`
}

func afterUse(plan entitlement.Plan, check entitlement.UsageCheck) usageInfo {
	return usageInfo{Plan: plan, Kind: check.Kind, Used: check.Current + 1, Limit: check.Limit}
}

// checkMonthly writes a 429 and returns false when the plan's monthly cap is
// reached. A failed meter read is logged and lets the request through.
func (h *Handler) checkMonthly(w http.ResponseWriter, r *http.Request, s requestScope, kind usage.Kind) (entitlement.UsageCheck, bool) {
	check, err := h.Evaluator.CheckMonthlyUsageLimit(r.Context(), s.subject, s.plan, kind)
	if err != nil {
		h.Logger.Warn(s.subject, s.requestID, "usage check failed, allowing request", map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
		return entitlement.UsageCheck{
			Kind:    kind,
			Allowed: true,
			Limit:   entitlement.ComputeLimit(entitlement.MonthlyLimitKind(kind), s.plan),
		}, true
	}
	if !check.Allowed {
		h.writeLimitError(w, s, &entitlement.LimitError{
			Kind:    entitlement.MonthlyLimitKind(kind),
			Plan:    s.plan,
			Current: check.Current,
			Limit:   check.Limit,
		})
		return check, false
	}
	return check, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, extra map[string]interface{}) {
	body := map[string]interface{}{
		"error":   code,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeLimitError answers 403 for the per-trip cap and 429 for monthly caps
func (h *Handler) writeLimitError(w http.ResponseWriter, s requestScope, le *entitlement.LimitError) {
	status := http.StatusTooManyRequests
	code := "usage_limit_reached"
	if le.Kind == entitlement.FlightResolvePerTrip {
		status = http.StatusForbidden
		code = "trip_limit_reached"
	}
	promQuotaDenials.WithLabelValues(string(le.Kind)).Inc()
	h.Logger.Info(s.subject, s.requestID, "request denied by plan limit", map[string]interface{}{
		"kind":    string(le.Kind),
		"plan":    string(le.Plan),
		"current": le.Current,
		"limit":   le.Limit.String(),
	})
	h.writeError(w, status, code, le.Error(), map[string]interface{}{
		"kind": le.Kind,
		"plan": le.Plan,
		"usage": map[string]interface{}{
			"current": le.Current,
			"limit":   le.Limit,
		},
	})
}

// writeValidationError reports field-level validator failures
func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	fields := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, map[string]string{
			"field": fe.Field(),
			"rule":  fe.Tag(),
		})
	}
	h.writeError(w, http.StatusBadRequest, "invalid_request", "request validation failed", map[string]interface{}{
		"fields": fields,
	})
}

// decodeBody decodes JSON into dst and runs struct validation
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		h.writeValidationError(w, err)
		return false
	}
	return true
}
