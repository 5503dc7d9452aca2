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
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// AviationStack is a client for the AviationStack flights API with an
// in-process result cache
type AviationStack struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *expirable.LRU[string, []Flight]
}

// NewAviationStack creates a client caching up to cacheSize route results
// for ttl each
func NewAviationStack(apiKey, baseURL string, timeout time.Duration, cacheSize int, ttl time.Duration) *AviationStack {
	if baseURL == "" {
		baseURL = "http://api.aviationstack.com/v1"
	}
	return &AviationStack{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      expirable.NewLRU[string, []Flight](cacheSize, nil, ttl),
	}
}

// IsConfigured checks if API credentials are available
func (c *AviationStack) IsConfigured() bool {
	return c.apiKey != ""
}

// Name is the source tag for results from this client
func (c *AviationStack) Name() string {
	return SourceAviationStack
}

// CacheLen reports the number of cached route results
func (c *AviationStack) CacheLen() int {
	return c.cache.Len()
}

type asEndpoint struct {
	Airport   string `json:"airport"`
	IATA      string `json:"iata"`
	Terminal  string `json:"terminal"`
	Gate      string `json:"gate"`
	Scheduled string `json:"scheduled"`
}

type asFlight struct {
	FlightDate   string     `json:"flight_date"`
	FlightStatus string     `json:"flight_status"`
	Departure    asEndpoint `json:"departure"`
	Arrival      asEndpoint `json:"arrival"`
	Airline      struct {
		Name string `json:"name"`
		IATA string `json:"iata"`
	} `json:"airline"`
	Flight struct {
		Number string `json:"number"`
		IATA   string `json:"iata"`
	} `json:"flight"`
}

type asResponse struct {
	Data  []asFlight `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (e asEndpoint) endpoint() Endpoint {
	return Endpoint{
		IATA:           e.IATA,
		Airport:        e.Airport,
		ScheduledLocal: e.Scheduled,
		Terminal:       e.Terminal,
		Gate:           e.Gate,
	}
}

func (f asFlight) normalize() Flight {
	carrier, number := f.Airline.IATA, f.Flight.Number
	if c, n, ok := ParseDesignator(f.Flight.IATA); ok {
		carrier, number = c, n
	}
	return Flight{
		Carrier:     carrier,
		Number:      number,
		AirlineName: f.Airline.Name,
		Status:      f.FlightStatus,
		Departure:   f.Departure.endpoint(),
		Arrival:     f.Arrival.endpoint(),
		Source:      SourceAviationStack,
	}
}

func routeCacheKey(origin, destination, date string, limit int) string {
	return fmt.Sprintf("%s|%s|%s|%d", origin, destination, date, limit)
}

// SearchRoute returns flights from origin to destination. cached reports
// whether the result came from the in-process cache.
func (c *AviationStack) SearchRoute(ctx context.Context, origin, destination, date string, limit int) (flights []Flight, cached bool, err error) {
	if !c.IsConfigured() {
		return nil, false, ErrNotConfigured
	}

	key := routeCacheKey(origin, destination, date, limit)
	if hit, ok := c.cache.Get(key); ok {
		return hit, true, nil
	}

	q := url.Values{
		"access_key": {c.apiKey},
		"dep_iata":   {origin},
		"arr_iata":   {destination},
	}
	if date != "" {
		q.Set("flight_date", date)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/flights?"+q.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	var resp asResponse
	if err := doJSON(c.httpClient, req, SourceAviationStack, &resp); err != nil {
		return nil, false, err
	}
	if resp.Error != nil {
		return nil, false, &UpstreamError{Source: SourceAviationStack, Message: resp.Error.Code + ": " + resp.Error.Message}
	}

	flights = make([]Flight, 0, len(resp.Data))
	for _, f := range resp.Data {
		flights = append(flights, f.normalize())
	}
	c.cache.Add(key, flights)
	return flights, false, nil
}
