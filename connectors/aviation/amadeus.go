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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Amadeus looks up dated flights through the Amadeus On-Demand Flight Status API
type Amadeus struct {
	apiKey      string
	apiSecret   string
	baseURL     string
	accessToken string
	tokenExpiry time.Time
	httpClient  *http.Client
	mu          sync.Mutex
}

type amadeusToken struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// NewAmadeus creates a client for env "test" or "production"
func NewAmadeus(apiKey, apiSecret, env string, timeout time.Duration) *Amadeus {
	baseURL := "https://test.api.amadeus.com"
	if env == "production" {
		baseURL = "https://api.amadeus.com"
	}
	return &Amadeus{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithBaseURL points the client at another server, for tests
func (c *Amadeus) WithBaseURL(baseURL string) *Amadeus {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// IsConfigured checks if API credentials are available
func (c *Amadeus) IsConfigured() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// Name is the source tag for results from this client
func (c *Amadeus) Name() string {
	return SourceAmadeus
}

// getAccessToken obtains or refreshes the OAuth access token
func (c *Amadeus) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.apiKey)
	form.Set("client_secret", c.apiSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &UpstreamError{Source: SourceAmadeus, StatusCode: resp.StatusCode, Message: "token request failed: " + string(body)}
	}

	var tok amadeusToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	// 5 min buffer before the advertised expiry
	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-300) * time.Second)
	return c.accessToken, nil
}

type amadeusTiming struct {
	Qualifier string `json:"qualifier"`
	Value     string `json:"value"`
}

type amadeusFlightPoint struct {
	IATACode  string `json:"iataCode"`
	Departure *struct {
		Timings []amadeusTiming `json:"timings"`
	} `json:"departure,omitempty"`
	Arrival *struct {
		Timings []amadeusTiming `json:"timings"`
	} `json:"arrival,omitempty"`
}

type amadeusDatedFlight struct {
	FlightDesignator struct {
		CarrierCode  string `json:"carrierCode"`
		FlightNumber int    `json:"flightNumber"`
		Suffix       string `json:"operationalSuffix"`
	} `json:"flightDesignator"`
	FlightPoints []amadeusFlightPoint `json:"flightPoints"`
}

func firstTiming(timings []amadeusTiming, qualifier string) string {
	for _, t := range timings {
		if t.Qualifier == qualifier {
			return t.Value
		}
	}
	return ""
}

func (f amadeusDatedFlight) normalize() Flight {
	out := Flight{
		Carrier: f.FlightDesignator.CarrierCode,
		Number:  strconv.Itoa(f.FlightDesignator.FlightNumber) + f.FlightDesignator.Suffix,
		Status:  "scheduled",
		Source:  SourceAmadeus,
	}
	for _, p := range f.FlightPoints {
		if p.Departure != nil && out.Departure.IATA == "" {
			out.Departure = Endpoint{IATA: p.IATACode, ScheduledLocal: firstTiming(p.Departure.Timings, "STD")}
		}
		if p.Arrival != nil {
			out.Arrival = Endpoint{IATA: p.IATACode, ScheduledLocal: firstTiming(p.Arrival.Timings, "STA")}
		}
	}
	return out
}

// FlightByNumber looks up a dated flight (date is YYYY-MM-DD)
func (c *Amadeus) FlightByNumber(ctx context.Context, carrier, number, date string) (*Flight, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	q := url.Values{
		"carrierCode":            {carrier},
		"flightNumber":           {number},
		"scheduledDepartureDate": {date},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/schedule/flights?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var resp struct {
		Data []amadeusDatedFlight `json:"data"`
	}
	if err := doJSON(c.httpClient, req, SourceAmadeus, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrNotFound
	}
	f := resp.Data[0].normalize()
	return &f, nil
}
