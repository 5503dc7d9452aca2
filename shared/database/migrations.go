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

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a single idempotent schema step
type Migration struct {
	Name string
	SQL  string
}

// Migrations are applied in order on every start. Each statement must be
// safe to re-run.
var Migrations = []Migration{
	{
		Name: "001_usage_meters",
		SQL: `CREATE TABLE IF NOT EXISTS usage_meters (
	subject_id      TEXT NOT NULL,
	month_key       CHAR(7) NOT NULL,
	ai_generations  INTEGER NOT NULL DEFAULT 0 CHECK (ai_generations >= 0),
	flight_resolves INTEGER NOT NULL DEFAULT 0 CHECK (flight_resolves >= 0),
	airport_queries INTEGER NOT NULL DEFAULT 0 CHECK (airport_queries >= 0),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (subject_id, month_key)
)`,
	},
	{
		Name: "002_provider_usage",
		SQL: `CREATE TABLE IF NOT EXISTS provider_usage (
	id         UUID PRIMARY KEY,
	provider   TEXT NOT NULL,
	endpoint   TEXT NOT NULL,
	units      INTEGER NOT NULL,
	cost_cents INTEGER NOT NULL DEFAULT 0,
	subject_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	},
	{
		Name: "003_provider_usage_subject_idx",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_provider_usage_subject ON provider_usage (subject_id, created_at)`,
	},
	{
		Name: "004_trials",
		SQL: `CREATE TABLE IF NOT EXISTS trials (
	subject_id TEXT PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	ends_at    TIMESTAMPTZ NOT NULL,
	CHECK (ends_at >= started_at)
)`,
	},
	{
		Name: "005_flight_segments",
		SQL: `CREATE TABLE IF NOT EXISTS flight_segments (
	trip_id             TEXT NOT NULL,
	carrier             TEXT NOT NULL,
	number              TEXT NOT NULL,
	departure_iata      TEXT NOT NULL DEFAULT '',
	arrival_iata        TEXT NOT NULL DEFAULT '',
	scheduled_departure TEXT NOT NULL DEFAULT '',
	scheduled_arrival   TEXT NOT NULL DEFAULT '',
	departure_terminal  TEXT NOT NULL DEFAULT '',
	departure_gate      TEXT NOT NULL DEFAULT '',
	arrival_terminal    TEXT NOT NULL DEFAULT '',
	arrival_gate        TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (trip_id, carrier, number)
)`,
	},
}

// Migrate applies every migration inside one transaction
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range Migrations {
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	return nil
}
