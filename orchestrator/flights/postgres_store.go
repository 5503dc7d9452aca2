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

package flights

import (
	"context"
	"database/sql"
	"fmt"
)

const segmentColumns = `trip_id, carrier, number, departure_iata, arrival_iata,
	scheduled_departure, scheduled_arrival, departure_terminal, departure_gate,
	arrival_terminal, arrival_gate, status, created_at, updated_at`

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL segment store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert stores the segment keyed on (trip_id, carrier, number)
func (s *PostgresStore) Upsert(ctx context.Context, seg *Segment) (*Segment, error) {
	if err := seg.validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO flight_segments (
			trip_id, carrier, number, departure_iata, arrival_iata,
			scheduled_departure, scheduled_arrival, departure_terminal, departure_gate,
			arrival_terminal, arrival_gate, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (trip_id, carrier, number) DO UPDATE SET
			departure_iata = EXCLUDED.departure_iata,
			arrival_iata = EXCLUDED.arrival_iata,
			scheduled_departure = EXCLUDED.scheduled_departure,
			scheduled_arrival = EXCLUDED.scheduled_arrival,
			departure_terminal = EXCLUDED.departure_terminal,
			departure_gate = EXCLUDED.departure_gate,
			arrival_terminal = EXCLUDED.arrival_terminal,
			arrival_gate = EXCLUDED.arrival_gate,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING ` + segmentColumns

	row := s.db.QueryRowContext(ctx, query,
		seg.TripID, seg.Carrier, seg.Number, seg.DepartureIATA, seg.ArrivalIATA,
		seg.ScheduledDeparture, seg.ScheduledArrival, seg.DepartureTerminal, seg.DepartureGate,
		seg.ArrivalTerminal, seg.ArrivalGate, seg.Status,
	)
	out, err := scanSegment(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert flight segment: %w", err)
	}
	return out, nil
}

// CountByTrip counts the segments attached to a trip
func (s *PostgresStore) CountByTrip(ctx context.Context, tripID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flight_segments WHERE trip_id = $1`, tripID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count flight segments: %w", err)
	}
	return n, nil
}

// ListByTrip lists a trip's segments
func (s *PostgresStore) ListByTrip(ctx context.Context, tripID string) ([]Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM flight_segments
		WHERE trip_id = $1
		ORDER BY scheduled_departure ASC, carrier ASC, number ASC`

	rows, err := s.db.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flight segments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	segments := []Segment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flight segment: %w", err)
		}
		segments = append(segments, *seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flight segments: %w", err)
	}
	return segments, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSegment(row scanner) (*Segment, error) {
	var seg Segment
	err := row.Scan(
		&seg.TripID, &seg.Carrier, &seg.Number, &seg.DepartureIATA, &seg.ArrivalIATA,
		&seg.ScheduledDeparture, &seg.ScheduledArrival, &seg.DepartureTerminal, &seg.DepartureGate,
		&seg.ArrivalTerminal, &seg.ArrivalGate, &seg.Status, &seg.CreatedAt, &seg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &seg, nil
}

var _ Store = (*PostgresStore)(nil)
