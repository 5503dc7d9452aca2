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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"tripcount/platform/common/usage"
	"tripcount/platform/gateway/entitlement"
	"tripcount/platform/gateway/identity"
	"tripcount/platform/gateway/ratelimit"
	"tripcount/platform/orchestrator/itinerary"
	"tripcount/platform/shared/config"
	"tripcount/platform/shared/logger"
)

// App is the fully wired API
type App struct {
	Handler  http.Handler
	Recorder *usage.Recorder
	log      *logger.Logger
	db       *sql.DB
	redis    *redis.Client
}

// Build wires every component from cfg. Without DATABASE_URL the ledger and
// segment store live in memory; without REDIS_URL the burst limiter does.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	app := &App{log: log}
	var checks []HealthCheck

	if cfg.DatabaseURL != "" {
		db, err := OpenDatabase(ctx, cfg, log.With("database"))
		if err != nil {
			return nil, err
		}
		app.db = db
		checks = append(checks, HealthCheck{Name: "database", Check: db.PingContext})
	} else {
		log.Warn("", "", "DATABASE_URL not set, usage is kept in memory", nil)
	}
	ledger, segments := Stores(app.db)

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("", "", "Redis unavailable, using in-process rate limiting", map[string]interface{}{"error": err.Error()})
		} else {
			app.redis = client
			limiter = ratelimit.NewRedisLimiter(client, log.With("ratelimit"))
			checks = append(checks, HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}})
		}
	}

	creds := LoadProviderCredentials(ctx, cfg, log)
	ai := fallbackCounter{next: NewRouter(cfg, log.With("llm-router"))}
	av := newAviationClients(cfg)

	app.Recorder = usage.NewRecorder(ledger, log.With("usage"), usage.WithErrorHook(recordFailure))
	evaluator := entitlement.NewEvaluator(ledger, ledger, segments, log.With("entitlement"))

	var ingestOpts []itinerary.ServiceOption
	if cfg.Ingest.ArchiveBucket != "" {
		archiver, err := itinerary.NewS3Archiver(ctx, itinerary.S3Options{
			Bucket:    cfg.Ingest.ArchiveBucket,
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.Ingest.ArchiveEndpoint,
			AccessKey: cfg.Ingest.ArchiveAccessKey,
			SecretKey: cfg.Ingest.ArchiveSecretKey,
		})
		if err != nil {
			log.Warn("", "", "itinerary archive disabled", map[string]interface{}{"error": err.Error()})
		} else {
			ingestOpts = append(ingestOpts, itinerary.WithArchiver(archiver))
		}
	}

	h := NewHandler(Deps{
		Identity:           identity.NewResolver(cfg.SubjectJWTSecret),
		Evaluator:          evaluator,
		Meters:             ledger,
		Recorder:           app.Recorder,
		AI:                 ai,
		Credentials:        creds,
		Board:              av.board,
		Routes:             av.searcher,
		Flights:            av.resolver,
		Segments:           segments,
		Ingest:             itinerary.NewService(ai, creds, log.With("itinerary"), ingestOpts...),
		Limiter:            limiter,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		HealthChecks:       checks,
		Logger:             log,
	})

	r := mux.NewRouter()
	h.RegisterRoutes(r)

	c := cors.New(corsOptions(cfg))
	app.Handler = c.Handler(r)
	return app, nil
}

// Close drains pending usage writes and releases connections
func (a *App) Close() {
	a.Recorder.Wait()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// Run starts the API server and blocks until SIGINT/SIGTERM
func Run() {
	log := logger.New("orchestrator")
	log.Info("", "", "starting tripcount API", nil)

	cfg, err := config.Load()
	if err != nil {
		log.Error("", "", "failed to load configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := Build(ctx, cfg, log)
	if err != nil {
		log.Error("", "", "failed to initialize", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("", "", "listening", map[string]interface{}{"port": cfg.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("", "", "shutting down", nil)
	case err := <-errCh:
		log.Error("", "", "server failed", map[string]interface{}{"error": err.Error()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("", "", "graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}

// corsOptions never pairs credentials with a wildcard origin, since rs/cors
// would then reflect any caller's Origin back.
func corsOptions(cfg *config.Config) cors.Options {
	return cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: cfg.CORSAllowCredentials && !cfg.HasWildcardOrigin(),
	}
}
