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

package usage

import (
	"fmt"
	"time"
)

// Kind names one metered counter
type Kind string

const (
	KindAIGenerations  Kind = "aiGenerations"
	KindFlightResolves Kind = "flightResolves"
	KindAirportQueries Kind = "airportQueries"
)

// Kinds lists every metered counter
var Kinds = []Kind{KindAIGenerations, KindFlightResolves, KindAirportQueries}

// Valid reports whether k is one of the metered counters
func (k Kind) Valid() bool {
	switch k {
	case KindAIGenerations, KindFlightResolves, KindAirportQueries:
		return true
	}
	return false
}

// MonthKey returns the YYYY-MM bucket for t in UTC
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// ParseMonthKey validates a YYYY-MM key
func ParseMonthKey(key string) (time.Time, error) {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month key %q: %w", key, err)
	}
	return t, nil
}

// Meter is the monthly counter row for one subject
type Meter struct {
	SubjectID      string    `json:"subjectId"`
	MonthKey       string    `json:"monthKey"`
	AIGenerations  int       `json:"aiGenerations"`
	FlightResolves int       `json:"flightResolves"`
	AirportQueries int       `json:"airportQueries"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
}

// Count returns the counter value for kind
func (m *Meter) Count(kind Kind) int {
	if m == nil {
		return 0
	}
	switch kind {
	case KindAIGenerations:
		return m.AIGenerations
	case KindFlightResolves:
		return m.FlightResolves
	case KindAirportQueries:
		return m.AirportQueries
	}
	return 0
}

func (m *Meter) add(kind Kind, n int) {
	switch kind {
	case KindAIGenerations:
		m.AIGenerations += n
	case KindFlightResolves:
		m.FlightResolves += n
	case KindAirportQueries:
		m.AirportQueries += n
	}
}

// ProviderUsage is one append-only record of an upstream call
type ProviderUsage struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Endpoint  string    `json:"endpoint"`
	Units     int       `json:"units"`
	CostCents int       `json:"costCents"`
	SubjectID string    `json:"subjectId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Trial is a time-boxed elevated plan for a subject
type Trial struct {
	SubjectID string    `json:"subjectId"`
	StartedAt time.Time `json:"startedAt"`
	EndsAt    time.Time `json:"endsAt"`
}

// Active reports whether now falls inside [StartedAt, EndsAt)
func (t *Trial) Active(now time.Time) bool {
	if t == nil {
		return false
	}
	return !now.Before(t.StartedAt) && now.Before(t.EndsAt)
}
