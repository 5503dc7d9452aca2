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

package aviation

import (
	"context"
	"errors"
)

// FlightLookup resolves one dated flight
type FlightLookup interface {
	Name() string
	IsConfigured() bool
	FlightByNumber(ctx context.Context, carrier, number, date string) (*Flight, error)
}

// FlightResolver asks the primary source first and the secondary only when
// the primary is unconfigured or failed for a reason other than not-found.
type FlightResolver struct {
	sources []FlightLookup
}

// NewFlightResolver creates a resolver over sources in priority order
func NewFlightResolver(sources ...FlightLookup) *FlightResolver {
	return &FlightResolver{sources: sources}
}

// IsConfigured reports whether any source can answer
func (r *FlightResolver) IsConfigured() bool {
	for _, s := range r.sources {
		if s.IsConfigured() {
			return true
		}
	}
	return false
}

// Resolve returns the flight and the source that answered
func (r *FlightResolver) Resolve(ctx context.Context, carrier, number, date string) (*Flight, error) {
	var errs []error
	for _, s := range r.sources {
		if !s.IsConfigured() {
			continue
		}
		f, err := s.FlightByNumber(ctx, carrier, number, date)
		if err == nil {
			return f, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrNotConfigured
	}
	return nil, errors.Join(errs...)
}

// RouteResult is the answer of a route search
type RouteResult struct {
	Flights []Flight `json:"flights"`
	Source  string   `json:"source"`
	Cached  bool     `json:"cached"`
}

// RouteSearcher tries AviationStack, then AeroDataBox
type RouteSearcher struct {
	stack *AviationStack
	adb   *AeroDataBox
}

// NewRouteSearcher creates the search chain. Either client may be nil.
func NewRouteSearcher(stack *AviationStack, adb *AeroDataBox) *RouteSearcher {
	return &RouteSearcher{stack: stack, adb: adb}
}

// IsConfigured reports whether any source can answer
func (s *RouteSearcher) IsConfigured() bool {
	return (s.stack != nil && s.stack.IsConfigured()) || (s.adb != nil && s.adb.IsConfigured())
}

// Search returns the first non-empty answer. An empty answer from the last
// source that responded is returned as-is.
func (s *RouteSearcher) Search(ctx context.Context, origin, destination, date string, limit int) (*RouteResult, error) {
	var errs []error
	var empty *RouteResult

	if s.stack != nil && s.stack.IsConfigured() {
		flights, cached, err := s.stack.SearchRoute(ctx, origin, destination, date, limit)
		switch {
		case err != nil:
			errs = append(errs, err)
		case len(flights) > 0:
			return &RouteResult{Flights: flights, Source: SourceAviationStack, Cached: cached}, nil
		default:
			empty = &RouteResult{Flights: []Flight{}, Source: SourceAviationStack, Cached: cached}
		}
	}

	if s.adb != nil && s.adb.IsConfigured() && date != "" {
		flights, err := s.adb.SearchRoute(ctx, origin, destination, date, limit)
		switch {
		case err != nil:
			errs = append(errs, err)
		default:
			if flights == nil {
				flights = []Flight{}
			}
			return &RouteResult{Flights: flights, Source: SourceAeroDataBox}, nil
		}
	}

	if empty != nil {
		return empty, nil
	}
	if len(errs) == 0 {
		return nil, ErrNotConfigured
	}
	return nil, errors.Join(errs...)
}

var (
	_ FlightLookup = (*AeroDataBox)(nil)
	_ FlightLookup = (*Amadeus)(nil)
)
