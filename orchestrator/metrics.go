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
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"tripcount/platform/common/usage"
	"tripcount/platform/orchestrator/llm"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripcount_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripcount_http_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 20000},
		},
		[]string{"route"},
	)
	promAIProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripcount_ai_provider_calls_total",
			Help: "Total number of AI provider attempts",
		},
		[]string{"provider", "status"},
	)
	promAIFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tripcount_ai_fallbacks_total",
			Help: "Total number of fallbacks to a more expensive AI provider",
		},
	)
	promQuotaDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripcount_quota_denials_total",
			Help: "Total number of requests denied by plan limits",
		},
		[]string{"kind"},
	)
	promUsageRecordFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tripcount_usage_record_failures_total",
			Help: "Total number of usage records that could not be written",
		},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promAIProviderCalls)
	prometheus.MustRegister(promAIFallbacks)
	prometheus.MustRegister(promQuotaDenials)
	prometheus.MustRegister(promUsageRecordFailures)
}

// observeAttempt is the router's AttemptObserver
func observeAttempt(provider llm.ProviderID, _ llm.Model, err error, _ time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	promAIProviderCalls.WithLabelValues(string(provider), status).Inc()
}

// recordFailure is the recorder's error hook
func recordFailure(usage.Event, error) {
	promUsageRecordFailures.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument counts requests per route template
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		promRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		promRequestDuration.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}
