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

package entitlement

import "tripcount/platform/common/usage"

// UsageLine is one counter with its cap
type UsageLine struct {
	Used  int   `json:"used"`
	Limit Limit `json:"limit"`
}

// Summary is the plan and usage block attached to metered responses
type Summary struct {
	Plan     Plan                     `json:"plan"`
	MonthKey string                   `json:"monthKey"`
	Usage    map[usage.Kind]UsageLine `json:"usage"`
	Limits   map[LimitKind]Limit      `json:"limits"`
}

// Summarize builds a Summary from a meter snapshot. A nil meter reads as zero.
func Summarize(plan Plan, monthKey string, meter *usage.Meter) Summary {
	s := Summary{
		Plan:     plan,
		MonthKey: monthKey,
		Usage:    make(map[usage.Kind]UsageLine, len(usage.Kinds)),
		Limits: map[LimitKind]Limit{
			FlightResolvePerTrip:         ComputeLimit(FlightResolvePerTrip, plan),
			AirportScheduleWindowMinutes: ComputeLimit(AirportScheduleWindowMinutes, plan),
			FileSizeLimitBytes:           ComputeLimit(FileSizeLimitBytes, plan),
		},
	}
	for _, kind := range usage.Kinds {
		s.Usage[kind] = UsageLine{
			Used:  meter.Count(kind),
			Limit: ComputeLimit(MonthlyLimitKind(kind), plan),
		}
	}
	return s
}
