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

// Package flights stores the flight segments resolved for each trip.
package flights

import (
	"context"
	"errors"
	"time"

	"tripcount/platform/connectors/aviation"
)

// ErrInvalidSegment is returned when a segment lacks its identifying tuple
var ErrInvalidSegment = errors.New("segment requires trip id, carrier and number")

// Segment is one resolved flight attached to a trip. (TripID, Carrier, Number)
// identifies it.
type Segment struct {
	TripID             string    `json:"tripId"`
	Carrier            string    `json:"carrier"`
	Number             string    `json:"number"`
	DepartureIATA      string    `json:"departureIata"`
	ArrivalIATA        string    `json:"arrivalIata"`
	ScheduledDeparture string    `json:"scheduledDeparture,omitempty"`
	ScheduledArrival   string    `json:"scheduledArrival,omitempty"`
	DepartureTerminal  string    `json:"departureTerminal,omitempty"`
	DepartureGate      string    `json:"departureGate,omitempty"`
	ArrivalTerminal    string    `json:"arrivalTerminal,omitempty"`
	ArrivalGate        string    `json:"arrivalGate,omitempty"`
	Status             string    `json:"status,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// FromFlight builds the segment stored for a resolved flight
func FromFlight(tripID string, f *aviation.Flight) *Segment {
	return &Segment{
		TripID:             tripID,
		Carrier:            f.Carrier,
		Number:             f.Number,
		DepartureIATA:      f.Departure.IATA,
		ArrivalIATA:        f.Arrival.IATA,
		ScheduledDeparture: f.Departure.ScheduledLocal,
		ScheduledArrival:   f.Arrival.ScheduledLocal,
		DepartureTerminal:  f.Departure.Terminal,
		DepartureGate:      f.Departure.Gate,
		ArrivalTerminal:    f.Arrival.Terminal,
		ArrivalGate:        f.Arrival.Gate,
		Status:             f.Status,
	}
}

func (s *Segment) validate() error {
	if s.TripID == "" || s.Carrier == "" || s.Number == "" {
		return ErrInvalidSegment
	}
	return nil
}

// Store persists flight segments
type Store interface {
	// Upsert inserts the segment or refreshes the existing row for the same tuple
	Upsert(ctx context.Context, seg *Segment) (*Segment, error)
	CountByTrip(ctx context.Context, tripID string) (int, error)
	// ListByTrip returns segments ordered by scheduled departure
	ListByTrip(ctx context.Context, tripID string) ([]Segment, error)
}
