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

// Package aviation wraps the flight data providers behind one normalized
// Flight model: AeroDataBox for schedules and flight lookups, AviationStack
// for cached route search, and Amadeus as a secondary lookup source.
package aviation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Source names used in responses and usage records
const (
	SourceAeroDataBox   = "aerodatabox"
	SourceAviationStack = "aviationstack"
	SourceAmadeus       = "amadeus"
)

var (
	// ErrNotFound is returned when the provider has no matching flight
	ErrNotFound = errors.New("flight not found")
	// ErrNotConfigured is returned when the provider has no credentials
	ErrNotConfigured = errors.New("aviation provider not configured")
)

// UpstreamError is a non-success answer from a provider
type UpstreamError struct {
	Source     string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s returned status %d: %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Source, e.Message)
}

// Endpoint is one end of a flight leg
type Endpoint struct {
	IATA           string `json:"iata"`
	Airport        string `json:"airport,omitempty"`
	ScheduledLocal string `json:"scheduledLocal,omitempty"`
	ScheduledUTC   string `json:"scheduledUtc,omitempty"`
	Terminal       string `json:"terminal,omitempty"`
	Gate           string `json:"gate,omitempty"`
}

// Flight is the provider-neutral flight record
type Flight struct {
	Carrier     string   `json:"carrier"`
	Number      string   `json:"number"`
	AirlineName string   `json:"airlineName,omitempty"`
	Status      string   `json:"status,omitempty"`
	Departure   Endpoint `json:"departure"`
	Arrival     Endpoint `json:"arrival"`
	Source      string   `json:"source"`
}

// Designator returns e.g. "BA178"
func (f Flight) Designator() string {
	return f.Carrier + f.Number
}

// Direction filters an airport board
type Direction string

const (
	DirectionBoth       Direction = "both"
	DirectionArrivals   Direction = "arrivals"
	DirectionDepartures Direction = "departures"
)

// ParseDirection accepts both/arrivals/departures, case-insensitively.
// Empty means both.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case "", DirectionBoth:
		return DirectionBoth, true
	case DirectionArrivals:
		return DirectionArrivals, true
	case DirectionDepartures:
		return DirectionDepartures, true
	}
	return "", false
}

// Schedule is an airport arrivals/departures board
type Schedule struct {
	IATA       string   `json:"iata"`
	Arrivals   []Flight `json:"arrivals"`
	Departures []Flight `json:"departures"`
}

var (
	iataRe       = regexp.MustCompile(`^[A-Z]{3}$`)
	designatorRe = regexp.MustCompile(`^([A-Z0-9]{2}[A-Z]?)\s*(\d{1,4}[A-Z]?)$`)
	carrierRe    = regexp.MustCompile(`^[A-Z0-9]{2,3}$`)
	numberRe     = regexp.MustCompile(`^\d{1,4}[A-Z]?$`)
)

// NormalizeIATA upper-cases code and reports whether it is three letters
func NormalizeIATA(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return code, iataRe.MatchString(code)
}

// ParseDesignator splits "BA178" or "BA 178" into carrier and number
func ParseDesignator(s string) (carrier, number string, ok bool) {
	m := designatorRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// NormalizeFlight validates and upper-cases a carrier/number pair. A number
// that already carries the carrier prefix is accepted.
func NormalizeFlight(carrier, number string) (string, string, bool) {
	carrier = strings.ToUpper(strings.TrimSpace(carrier))
	number = strings.ToUpper(strings.TrimSpace(number))
	if carrierRe.MatchString(carrier) && numberRe.MatchString(number) {
		return carrier, number, true
	}
	if strings.IndexFunc(number, unicode.IsLetter) == -1 {
		return "", "", false
	}
	if c, n, ok := ParseDesignator(number); ok && (carrier == "" || c == carrier) {
		return c, n, true
	}
	return "", "", false
}
