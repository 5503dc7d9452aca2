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

package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tripcount/platform/common/usage"
	"tripcount/platform/connectors/aviation"
	"tripcount/platform/orchestrator/flights"
	"tripcount/platform/orchestrator/llm"
	"tripcount/platform/shared/config"
	"tripcount/platform/shared/database"
	"tripcount/platform/shared/logger"
)

// ErrNoDatabase is returned by OpenDatabase when DATABASE_URL is unset
var ErrNoDatabase = errors.New("DATABASE_URL is not set")

// OpenDatabase connects and migrates the schema
func OpenDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, ErrNoDatabase
	}
	db, err := database.Open(ctx, cfg.DatabaseURL, database.DefaultOptions(), log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Stores picks Postgres when db is non-nil and process memory otherwise
func Stores(db *sql.DB) (usage.Ledger, flights.Store) {
	if db == nil {
		return usage.NewMemoryLedger(), flights.NewMemoryStore()
	}
	return usage.NewPostgresLedger(db), flights.NewPostgresStore(db)
}

// LoadProviderCredentials merges env keys with the optional Secrets Manager
// secret. A failing secret is logged and the env keys are used.
func LoadProviderCredentials(ctx context.Context, cfg *config.Config, log *logger.Logger) llm.StaticCredentials {
	env := llm.StaticCredentials{
		llm.ProviderOpenAI:   cfg.AI.OpenAIAPIKey,
		llm.ProviderDeepseek: cfg.AI.DeepseekAPIKey,
		llm.ProviderGrok:     cfg.AI.XAIAPIKey,
	}

	var fetcher llm.SecretFetcher
	if cfg.AI.CredentialsSecretARN != "" {
		f, err := llm.NewAWSSecretFetcher(ctx, cfg.AWSRegion)
		if err != nil {
			log.Warn("", "", "secrets manager unavailable, using environment keys", map[string]interface{}{"error": err.Error()})
		} else {
			fetcher = f
		}
	}

	creds, err := llm.LoadCredentials(ctx, env, cfg.AI.CredentialsSecretARN, fetcher)
	if err != nil {
		log.Warn("", "", "failed to load AI credentials secret, using environment keys", map[string]interface{}{"error": err.Error()})
	}
	log.Info("", "", "AI providers configured", map[string]interface{}{"providers": llm.Configured(creds)})
	return creds
}

// NewRouter builds the provider router from config
func NewRouter(cfg *config.Config, log *logger.Logger) *llm.Router {
	adapters := llm.DefaultAdapters(cfg.AI.OpenAIBaseURL, cfg.AI.DeepseekBaseURL, cfg.AI.XAIBaseURL, cfg.AITimeout())
	return llm.NewRouter(adapters, log,
		llm.WithAttemptTimeout(cfg.AITimeout()),
		llm.WithAttemptObserver(observeAttempt),
	)
}

// aviationClients are the upstream flight data chains
type aviationClients struct {
	resolver *aviation.FlightResolver
	searcher *aviation.RouteSearcher
	board    *aviation.AeroDataBox
}

func newAviationClients(cfg *config.Config) aviationClients {
	av := cfg.Aviation
	timeout := cfg.AviationTimeout()

	adb := aviation.NewAeroDataBox(av.AeroDataBoxAPIKey, av.AeroDataBoxHost, timeout)
	stack := aviation.NewAviationStack(av.AviationStackAPIKey, av.AviationStackBaseURL, timeout, av.CacheSize, cfg.CacheTTL())
	amadeus := aviation.NewAmadeus(av.AmadeusAPIKey, av.AmadeusAPISecret, av.AmadeusEnv, timeout)

	return aviationClients{
		resolver: aviation.NewFlightResolver(adb, amadeus),
		searcher: aviation.NewRouteSearcher(stack, adb),
		board:    adb,
	}
}
