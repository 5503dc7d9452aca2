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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripcount/platform/connectors/aviation"
)

var segmentRowColumns = []string{
	"trip_id", "carrier", "number", "departure_iata", "arrival_iata",
	"scheduled_departure", "scheduled_arrival", "departure_terminal", "departure_gate",
	"arrival_terminal", "arrival_gate", "status", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func sampleFlight() *aviation.Flight {
	return &aviation.Flight{
		Carrier: "BA",
		Number:  "178",
		Status:  "Expected",
		Departure: aviation.Endpoint{
			IATA: "JFK", ScheduledLocal: "2025-05-01 18:00-04:00", Terminal: "7", Gate: "B2",
		},
		Arrival: aviation.Endpoint{IATA: "LHR", ScheduledLocal: "2025-05-02 06:00+01:00", Terminal: "5"},
	}
}

func TestFromFlight(t *testing.T) {
	seg := FromFlight("t1", sampleFlight())
	assert.Equal(t, "t1", seg.TripID)
	assert.Equal(t, "JFK", seg.DepartureIATA)
	assert.Equal(t, "LHR", seg.ArrivalIATA)
	assert.Equal(t, "B2", seg.DepartureGate)
	assert.Equal(t, "5", seg.ArrivalTerminal)
	assert.Equal(t, "Expected", seg.Status)
}

func TestPostgresStore_Upsert(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	seg := FromFlight("t1", sampleFlight())

	mock.ExpectQuery(`INSERT INTO flight_segments .* ON CONFLICT \(trip_id, carrier, number\) DO UPDATE SET .* RETURNING trip_id`).
		WithArgs("t1", "BA", "178", "JFK", "LHR",
			"2025-05-01 18:00-04:00", "2025-05-02 06:00+01:00", "7", "B2", "5", "", "Expected").
		WillReturnRows(sqlmock.NewRows(segmentRowColumns).AddRow(
			"t1", "BA", "178", "JFK", "LHR",
			"2025-05-01 18:00-04:00", "2025-05-02 06:00+01:00", "7", "B2", "5", "", "Expected", now, now))

	out, err := store.Upsert(context.Background(), seg)
	require.NoError(t, err)
	assert.Equal(t, "BA", out.Carrier)
	assert.Equal(t, now, out.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertInvalid(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.Upsert(context.Background(), &Segment{Carrier: "BA", Number: "178"})
	assert.ErrorIs(t, err, ErrInvalidSegment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountByTrip(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM flight_segments WHERE trip_id = \$1`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := store.CountByTrip(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mock.ExpectQuery(`SELECT COUNT`).WithArgs("t2").WillReturnError(errors.New("connection reset"))
	_, err = store.CountByTrip(context.Background(), "t2")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListByTrip(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM flight_segments WHERE trip_id = \$1 ORDER BY scheduled_departure`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(segmentRowColumns).
			AddRow("t1", "BA", "178", "JFK", "LHR", "2025-05-01 18:00", "", "", "", "", "", "", now, now).
			AddRow("t1", "BA", "117", "LHR", "JFK", "2025-05-09 08:20", "", "", "", "", "", "", now, now))

	segs, err := store.ListByTrip(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "178", segs[0].Number)
	assert.Equal(t, "117", segs[1].Number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListByTripEmpty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM flight_segments`).
		WithArgs("none").
		WillReturnRows(sqlmock.NewRows(segmentRowColumns))

	segs, err := store.ListByTrip(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, segs)
	assert.Empty(t, segs)
}

func TestMemoryStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.Upsert(ctx, FromFlight("t1", sampleFlight()))
	require.NoError(t, err)

	updated := FromFlight("t1", sampleFlight())
	updated.Status = "Departed"
	second, err := store.Upsert(ctx, updated)
	require.NoError(t, err)

	n, err := store.CountByTrip(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	segs, err := store.ListByTrip(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "Departed", segs[0].Status)
}

func TestMemoryStore_ListOrderAndIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	late := &Segment{TripID: "t1", Carrier: "AA", Number: "100", ScheduledDeparture: "2025-05-09 10:00"}
	early := &Segment{TripID: "t1", Carrier: "BA", Number: "178", ScheduledDeparture: "2025-05-01 18:00"}
	other := &Segment{TripID: "t2", Carrier: "BA", Number: "178"}
	for _, s := range []*Segment{late, early, other} {
		_, err := store.Upsert(ctx, s)
		require.NoError(t, err)
	}

	segs, err := store.ListByTrip(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "178", segs[0].Number)
	assert.Equal(t, "100", segs[1].Number)

	n, err := store.CountByTrip(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}
