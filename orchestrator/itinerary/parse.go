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

package itinerary

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidItinerary is returned when the model output is not the expected JSON
var ErrInvalidItinerary = errors.New("AI response is not a valid itinerary")

// SystemPrompt instructs the model to answer with the itinerary JSON only
const SystemPrompt = `You extract travel bookings from confirmation emails and documents.
Respond with ONLY a JSON object, no prose and no markdown, in exactly this shape:
{
  "flights": [
    {
      "airline": "two-letter IATA airline code",
      "flightNumber": "digits, optionally followed by one letter",
      "departureAirport": "three-letter IATA code",
      "arrivalAirport": "three-letter IATA code",
      "departureDate": "YYYY-MM-DD",
      "departureTime": "HH:MM local",
      "arrivalDate": "YYYY-MM-DD",
      "arrivalTime": "HH:MM local",
      "confirmationCode": "booking reference or empty string"
    }
  ],
  "hotels": [
    {
      "name": "hotel name",
      "address": "street address or empty string",
      "checkIn": "YYYY-MM-DD",
      "checkOut": "YYYY-MM-DD",
      "confirmationCode": "booking reference or empty string"
    }
  ]
}
Use empty arrays when nothing of a kind is present. Use empty strings for unknown values.
Never invent bookings that are not in the text.`

// Flight is one extracted flight booking
type Flight struct {
	Airline          string `json:"airline" validate:"required,max=3"`
	FlightNumber     string `json:"flightNumber" validate:"required,max=8"`
	DepartureAirport string `json:"departureAirport" validate:"omitempty,len=3,alpha"`
	ArrivalAirport   string `json:"arrivalAirport" validate:"omitempty,len=3,alpha"`
	DepartureDate    string `json:"departureDate" validate:"omitempty,datetime=2006-01-02"`
	DepartureTime    string `json:"departureTime" validate:"omitempty,datetime=15:04"`
	ArrivalDate      string `json:"arrivalDate" validate:"omitempty,datetime=2006-01-02"`
	ArrivalTime      string `json:"arrivalTime" validate:"omitempty,datetime=15:04"`
	ConfirmationCode string `json:"confirmationCode"`
}

// Hotel is one extracted hotel booking
type Hotel struct {
	Name             string `json:"name" validate:"required"`
	Address          string `json:"address"`
	CheckIn          string `json:"checkIn" validate:"omitempty,datetime=2006-01-02"`
	CheckOut         string `json:"checkOut" validate:"omitempty,datetime=2006-01-02"`
	ConfirmationCode string `json:"confirmationCode"`
}

// Itinerary is the structured extraction result
type Itinerary struct {
	Flights []Flight `json:"flights" validate:"required,dive"`
	Hotels  []Hotel  `json:"hotels" validate:"required,dive"`
}

var fenceTagRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_+-]*`)

var validate = validator.New(validator.WithRequiredStructEnabled())

// StripCodeFences removes a markdown code fence (with optional language tag)
// and any prose around it. Text without a fence is only trimmed.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	// drop the language tag, e.g. ```json on its own line or ```json {...}
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	} else if tag := fenceTagRe.FindString(body); tag != "" {
		rest := body[len(tag):]
		if rest == "" || strings.ContainsRune(" \t\r\n{[", rune(rest[0])) {
			body = rest
		}
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// Parse decodes and validates the model output
func Parse(content string) (*Itinerary, error) {
	raw := StripCodeFences(content)

	var it Itinerary
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidItinerary, err)
	}
	for i := range it.Flights {
		it.Flights[i].Airline = strings.ToUpper(strings.TrimSpace(it.Flights[i].Airline))
		it.Flights[i].DepartureAirport = strings.ToUpper(strings.TrimSpace(it.Flights[i].DepartureAirport))
		it.Flights[i].ArrivalAirport = strings.ToUpper(strings.TrimSpace(it.Flights[i].ArrivalAirport))
	}
	if err := validate.Struct(&it); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidItinerary, err)
	}
	return &it, nil
}
