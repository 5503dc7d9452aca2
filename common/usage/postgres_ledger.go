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

package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// counterColumns whitelists the column each kind increments
var counterColumns = map[Kind]string{
	KindAIGenerations:  "ai_generations",
	KindFlightResolves: "flight_resolves",
	KindAirportQueries: "airport_queries",
}

const meterColumns = `subject_id, month_key, ai_generations, flight_resolves, airport_queries, created_at, updated_at`

// PostgresLedger implements Ledger using PostgreSQL
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger creates a new PostgreSQL ledger
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// GetMeter retrieves the monthly meter, or a zero meter when none exists
func (l *PostgresLedger) GetMeter(ctx context.Context, subjectID, monthKey string) (*Meter, error) {
	query := `SELECT ` + meterColumns + ` FROM usage_meters WHERE subject_id = $1 AND month_key = $2`

	m, err := scanMeter(l.db.QueryRowContext(ctx, query, subjectID, monthKey))
	if errors.Is(err, sql.ErrNoRows) {
		return &Meter{SubjectID: subjectID, MonthKey: monthKey}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage meter: %w", err)
	}
	return m, nil
}

// Increment upserts the meter row and adds n to the counter for kind
func (l *PostgresLedger) Increment(ctx context.Context, subjectID, monthKey string, kind Kind, n int) (*Meter, error) {
	if err := validateIncrement(kind, n); err != nil {
		return nil, err
	}
	col := counterColumns[kind]

	query := fmt.Sprintf(`
		INSERT INTO usage_meters (subject_id, month_key, %[1]s, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (subject_id, month_key)
		DO UPDATE SET %[1]s = usage_meters.%[1]s + EXCLUDED.%[1]s, updated_at = NOW()
		RETURNING `+meterColumns, col)

	m, err := scanMeter(l.db.QueryRowContext(ctx, query, subjectID, monthKey, n))
	if err != nil {
		return nil, fmt.Errorf("failed to increment %s: %w", kind, err)
	}
	return m, nil
}

// AppendProviderUsage inserts one provider usage record
func (l *PostgresLedger) AppendProviderUsage(ctx context.Context, rec *ProviderUsage) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO provider_usage (id, provider, endpoint, units, cost_cents, subject_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := l.db.ExecContext(ctx, query,
		rec.ID, rec.Provider, rec.Endpoint, rec.Units, rec.CostCents,
		nullString(rec.SubjectID), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append provider usage: %w", err)
	}
	return nil
}

// GetTrial retrieves the subject's trial
func (l *PostgresLedger) GetTrial(ctx context.Context, subjectID string) (*Trial, error) {
	query := `SELECT subject_id, started_at, ends_at FROM trials WHERE subject_id = $1`

	var t Trial
	err := l.db.QueryRowContext(ctx, query, subjectID).Scan(&t.SubjectID, &t.StartedAt, &t.EndsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTrialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trial: %w", err)
	}
	return &t, nil
}

// StartTrial creates or replaces the subject's trial window
func (l *PostgresLedger) StartTrial(ctx context.Context, subjectID string, start time.Time, duration time.Duration) (*Trial, error) {
	t, err := newTrial(subjectID, start, duration)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO trials (subject_id, started_at, ends_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (subject_id) DO UPDATE SET started_at = EXCLUDED.started_at, ends_at = EXCLUDED.ends_at`

	if _, err := l.db.ExecContext(ctx, query, t.SubjectID, t.StartedAt, t.EndsAt); err != nil {
		return nil, fmt.Errorf("failed to start trial: %w", err)
	}
	return t, nil
}

// Ping checks database connectivity
func (l *PostgresLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func scanMeter(row *sql.Row) (*Meter, error) {
	var m Meter
	err := row.Scan(&m.SubjectID, &m.MonthKey, &m.AIGenerations, &m.FlightResolves, &m.AirportQueries, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// nullString returns sql.NullString for optional string fields
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
