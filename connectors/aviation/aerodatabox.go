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
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AeroDataBox is a client for the AeroDataBox API on RapidAPI
type AeroDataBox struct {
	apiKey     string
	host       string
	baseURL    string
	httpClient *http.Client
}

// NewAeroDataBox creates a client. baseURL defaults to https://<host>.
func NewAeroDataBox(apiKey, host string, timeout time.Duration) *AeroDataBox {
	if host == "" {
		host = "aerodatabox.p.rapidapi.com"
	}
	return &AeroDataBox{
		apiKey:     apiKey,
		host:       host,
		baseURL:    "https://" + host,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithBaseURL points the client at another server, for tests and proxies
func (c *AeroDataBox) WithBaseURL(baseURL string) *AeroDataBox {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// IsConfigured checks if API credentials are available
func (c *AeroDataBox) IsConfigured() bool {
	return c.apiKey != ""
}

// Name is the source tag for results from this client
func (c *AeroDataBox) Name() string {
	return SourceAeroDataBox
}

type adbTime struct {
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

type adbAirport struct {
	IATA string `json:"iata"`
	Name string `json:"name"`
}

type adbMovement struct {
	Airport       adbAirport `json:"airport"`
	ScheduledTime adbTime    `json:"scheduledTime"`
	Terminal      string     `json:"terminal"`
	Gate          string     `json:"gate"`
}

type adbAirline struct {
	Name string `json:"name"`
	IATA string `json:"iata"`
}

type adbFlight struct {
	Number    string       `json:"number"`
	Status    string       `json:"status"`
	Airline   adbAirline   `json:"airline"`
	Departure *adbMovement `json:"departure,omitempty"`
	Arrival   *adbMovement `json:"arrival,omitempty"`
	Movement  *adbMovement `json:"movement,omitempty"`
}

type adbBoard struct {
	Departures []adbFlight `json:"departures"`
	Arrivals   []adbFlight `json:"arrivals"`
}

func (m *adbMovement) endpoint() Endpoint {
	if m == nil {
		return Endpoint{}
	}
	return Endpoint{
		IATA:           m.Airport.IATA,
		Airport:        m.Airport.Name,
		ScheduledLocal: m.ScheduledTime.Local,
		ScheduledUTC:   m.ScheduledTime.UTC,
		Terminal:       m.Terminal,
		Gate:           m.Gate,
	}
}

func (f adbFlight) normalize() Flight {
	carrier, number, ok := ParseDesignator(f.Number)
	if !ok {
		carrier, number = f.Airline.IATA, strings.TrimSpace(f.Number)
	}
	return Flight{
		Carrier:     carrier,
		Number:      number,
		AirlineName: f.Airline.Name,
		Status:      f.Status,
		Departure:   f.Departure.endpoint(),
		Arrival:     f.Arrival.endpoint(),
		Source:      SourceAeroDataBox,
	}
}

// boardFlight maps a board row without legs. movement.airport is the other
// airport; the scheduled time is at the board airport.
func boardFlight(f adbFlight, boardIATA string, departing bool) Flight {
	out := f.normalize()
	if f.Movement == nil {
		return out
	}
	here := Endpoint{
		IATA:           boardIATA,
		ScheduledLocal: f.Movement.ScheduledTime.Local,
		ScheduledUTC:   f.Movement.ScheduledTime.UTC,
		Terminal:       f.Movement.Terminal,
		Gate:           f.Movement.Gate,
	}
	there := Endpoint{IATA: f.Movement.Airport.IATA, Airport: f.Movement.Airport.Name}
	if departing {
		out.Departure, out.Arrival = here, there
	} else {
		out.Departure, out.Arrival = there, here
	}
	return out
}

func (c *AeroDataBox) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.host)
	req.Header.Set("Accept", "application/json")
	return doJSON(c.httpClient, req, SourceAeroDataBox, out)
}

// FlightByNumber looks up a flight on a local departure date (YYYY-MM-DD)
func (c *AeroDataBox) FlightByNumber(ctx context.Context, carrier, number, date string) (*Flight, error) {
	var flights []adbFlight
	path := fmt.Sprintf("/flights/number/%s/%s", url.PathEscape(carrier+number), url.PathEscape(date))
	if err := c.get(ctx, path, url.Values{"withAircraftImage": {"false"}, "withLocation": {"false"}}, &flights); err != nil {
		return nil, err
	}
	if len(flights) == 0 {
		return nil, ErrNotFound
	}
	f := flights[0].normalize()
	return &f, nil
}

// AirportSchedule reads the board at iata from now+offset for duration
func (c *AeroDataBox) AirportSchedule(ctx context.Context, iata string, offsetMinutes, durationMinutes int, direction Direction) (*Schedule, error) {
	q := url.Values{
		"offsetMinutes":   {fmt.Sprintf("%d", offsetMinutes)},
		"durationMinutes": {fmt.Sprintf("%d", durationMinutes)},
		"direction":       {adbDirection(direction)},
		"withLeg":         {"false"},
		"withCancelled":   {"true"},
		"withCodeshared":  {"false"},
	}
	var board adbBoard
	err := c.get(ctx, "/flights/airports/iata/"+url.PathEscape(iata), q, &board)
	if errors.Is(err, ErrNotFound) {
		return &Schedule{IATA: iata, Arrivals: []Flight{}, Departures: []Flight{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return buildSchedule(iata, board), nil
}

// SearchRoute lists departures from origin to destination on a local date.
// The board API caps a window at 12 hours so the day is read in two halves.
func (c *AeroDataBox) SearchRoute(ctx context.Context, origin, destination, date string, limit int) ([]Flight, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	var out []Flight
	for _, half := range [][2]string{{"00:00", "11:59"}, {"12:00", "23:59"}} {
		path := fmt.Sprintf("/flights/airports/iata/%s/%sT%s/%sT%s", url.PathEscape(origin), date, half[0], date, half[1])
		q := url.Values{"direction": {"Departure"}, "withLeg": {"false"}, "withCodeshared": {"false"}}

		var board adbBoard
		err := c.get(ctx, path, q, &board)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, f := range board.Departures {
			if f.Movement == nil || f.Movement.Airport.IATA != destination {
				continue
			}
			out = append(out, boardFlight(f, origin, true))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func buildSchedule(iata string, board adbBoard) *Schedule {
	s := &Schedule{IATA: iata, Arrivals: make([]Flight, 0, len(board.Arrivals)), Departures: make([]Flight, 0, len(board.Departures))}
	for _, f := range board.Departures {
		s.Departures = append(s.Departures, boardFlight(f, iata, true))
	}
	for _, f := range board.Arrivals {
		s.Arrivals = append(s.Arrivals, boardFlight(f, iata, false))
	}
	return s
}

func adbDirection(d Direction) string {
	switch d {
	case DirectionArrivals:
		return "Arrival"
	case DirectionDepartures:
		return "Departure"
	}
	return "Both"
}
