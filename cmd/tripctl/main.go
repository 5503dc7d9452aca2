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

// Package main implements tripctl, the operator CLI for the TripCount API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tripcount/platform/common/usage"
	"tripcount/platform/orchestrator"
	"tripcount/platform/orchestrator/flights"
	"tripcount/platform/shared/config"
	"tripcount/platform/shared/logger"
)

var version = "1.0.0"

// stores is what the usage and trial commands operate on
type stores struct {
	ledger   usage.Ledger
	segments flights.Store
	close    func()
}

// app holds the collaborators commands resolve lazily, so --help works
// without a database.
type app struct {
	loadConfig func() (*config.Config, error)
	openStores func(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error)
	log        *logger.Logger
}

func defaultApp() *app {
	return &app{
		loadConfig: config.Load,
		openStores: openPostgresStores,
		log:        logger.NewWithWriter("tripctl", os.Stderr),
	}
}

func openPostgresStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	db, err := orchestrator.OpenDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	ledger, segments := orchestrator.Stores(db)
	return &stores{
		ledger:   ledger,
		segments: segments,
		close:    func() { _ = db.Close() },
	}, nil
}

func main() {
	if err := rootCmd(defaultApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tripctl",
		Short:         "TripCount operator CLI",
		Long:          `tripctl manages the TripCount database, trials and usage, and inspects AI provider routing.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(migrateCmd(a))
	cmd.AddCommand(trialCmd(a))
	cmd.AddCommand(usageCmd(a))
	cmd.AddCommand(providersCmd(a))

	return cmd
}

// migrateCmd returns the command that applies the schema.
func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Apply the usage, trial and flight segment schema to DATABASE_URL.

Migrations are idempotent and safe to run on every deploy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			db, err := orchestrator.OpenDatabase(cmd.Context(), cfg, a.log)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			defer func() { _ = db.Close() }()

			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

// withStores loads config, opens the stores and runs fn
func (a *app) withStores(cmd *cobra.Command, fn func(cfg *config.Config, s *stores, out io.Writer) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	s, err := a.openStores(cmd.Context(), cfg, a.log)
	if err != nil {
		return err
	}
	if s.close != nil {
		defer s.close()
	}
	return fn(cfg, s, cmd.OutOrStdout())
}
