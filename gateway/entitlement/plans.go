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

// Package entitlement decides which plan a subject is on and whether a
// metered action still fits inside that plan's limits.
package entitlement

import (
	"encoding/json"
	"fmt"
	"math"

	"tripcount/platform/common/usage"
)

// Plan is a subscription tier
type Plan string

const (
	PlanFree  Plan = "free"
	PlanTrial Plan = "trial"
	PlanPro   Plan = "pro"
)

// LimitKind names one entry of the plan table
type LimitKind string

const (
	FlightResolvePerTrip         LimitKind = "flightResolvePerTrip"
	AirportScheduleWindowMinutes LimitKind = "airportScheduleWindowMinutes"
	AIGenerationsPerMonth        LimitKind = "aiGenerationsPerMonth"
	FlightResolvesPerMonth       LimitKind = "flightResolvesPerMonth"
	AirportQueriesPerMonth       LimitKind = "airportQueriesPerMonth"
	FileSizeLimitBytes           LimitKind = "fileSizeLimitBytes"
)

// Limit is a numeric cap. Unlimited is +Inf and encodes to JSON null.
type Limit float64

// Unlimited never denies
var Unlimited = Limit(math.Inf(1))

const mib = 1024 * 1024

var limitTable = map[LimitKind]map[Plan]Limit{
	FlightResolvePerTrip:         {PlanFree: 1, PlanTrial: Unlimited, PlanPro: Unlimited},
	AirportScheduleWindowMinutes: {PlanFree: 240, PlanTrial: 720, PlanPro: 720},
	AIGenerationsPerMonth:        {PlanFree: 10, PlanTrial: 50, PlanPro: Unlimited},
	FlightResolvesPerMonth:       {PlanFree: 5, PlanTrial: Unlimited, PlanPro: Unlimited},
	AirportQueriesPerMonth:       {PlanFree: 20, PlanTrial: Unlimited, PlanPro: Unlimited},
	FileSizeLimitBytes:           {PlanFree: 5 * mib, PlanTrial: 10 * mib, PlanPro: 10 * mib},
}

// ComputeLimit returns the limit for kind on plan. Unknown plans get the free
// tier; unknown kinds get zero.
func ComputeLimit(kind LimitKind, plan Plan) Limit {
	row, ok := limitTable[kind]
	if !ok {
		return 0
	}
	if l, ok := row[plan]; ok {
		return l
	}
	return row[PlanFree]
}

// MonthlyLimitKind maps a usage counter to its monthly cap
func MonthlyLimitKind(kind usage.Kind) LimitKind {
	switch kind {
	case usage.KindAIGenerations:
		return AIGenerationsPerMonth
	case usage.KindFlightResolves:
		return FlightResolvesPerMonth
	case usage.KindAirportQueries:
		return AirportQueriesPerMonth
	}
	return ""
}

// IsUnlimited reports whether l is infinite
func (l Limit) IsUnlimited() bool {
	return math.IsInf(float64(l), 1)
}

// Allows reports whether one more action fits when current are already used
func (l Limit) Allows(current int) bool {
	return float64(current) < float64(l)
}

// Int returns l as an int. Unlimited saturates to math.MaxInt.
func (l Limit) Int() int {
	if l.IsUnlimited() {
		return math.MaxInt
	}
	return int(l)
}

// MarshalJSON encodes Unlimited as null
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.IsUnlimited() {
		return []byte("null"), nil
	}
	return json.Marshal(int64(l))
}

// UnmarshalJSON decodes null as Unlimited
func (l *Limit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Unlimited
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*l = Limit(n)
	return nil
}

func (l Limit) String() string {
	if l.IsUnlimited() {
		return "unlimited"
	}
	return fmt.Sprintf("%d", int64(l))
}
