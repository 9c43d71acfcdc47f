package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"OptionStats/internal/chain"
	"OptionStats/internal/config"
	"OptionStats/internal/core"
	"OptionStats/internal/ingestion"
	"OptionStats/internal/observability"
	"OptionStats/internal/persistence"
	"OptionStats/internal/projection"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLoggerWithLevel("optionstats", observability.ParseLevel(cfg.Logging.Level))
	logger.Info().Msg("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("postgres ping")
	}
	logger.Info().Msg("postgres connected")

	migrator := persistence.NewMigrator(db, cfg.Persistence.MigrationsDir, logger)
	if err := migrator.Up(ctx); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATS.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()
	logger.Info().Str("url", cfg.NATS.URL).Msg("nats connected")

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		logger.Fatal().Err(err).Msg("ensure streams")
	}

	// --- Redis ---
	rdb, err := projection.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect")
	}
	defer rdb.Close()
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")

	// --- Observability ---
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	// --- Engine wiring ---
	persistChan := make(chan core.Output, cfg.Engine.PersistChanSize)
	projectionChan := make(chan core.Output, cfg.Engine.ProjectionChanSize)
	metrics.SetChannelMetrics("persist", 0, cfg.Engine.PersistChanSize)
	metrics.SetChannelMetrics("projection", 0, cfg.Engine.ProjectionChanSize)

	reader := chain.NewNATSReader(nc, cfg.Markets.Registered, cfg.NATS.StateTimeout)
	dbChecker := persistence.NewPostgresIdempotencyChecker(db)

	// --- Recovery: the aggregates table is the materialized state ---
	recovery := persistence.NewRecovery(db)

	lastSequence, err := recovery.LastSequence(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load last sequence")
	}
	startSequence := int64(0)
	if lastSequence > 0 {
		startSequence = lastSequence + 1
	}

	engine := core.NewEngine(startSequence, persistChan, projectionChan, reader, dbChecker, cfg.Engine.IdempotencyLRUSize, metrics)

	loaded, err := recovery.LoadAggregates(ctx, engine.Store().Put)
	if err != nil {
		logger.Fatal().Err(err).Msg("load aggregates")
	}

	ordinals, err := recovery.LastOrdinals(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load partition ordinals")
	}
	for partition, ordinal := range ordinals {
		engine.SetLastOrdinal(partition, ordinal)
	}

	warmKeys, err := recovery.RecentIdempotencyKeys(ctx, cfg.Engine.WarmKeyCount)
	if err != nil {
		logger.Fatal().Err(err).Msg("load idempotency keys")
	}
	engine.WarmIdempotency(warmKeys)

	logger.Info().
		Int64("sequence", startSequence).
		Int("aggregates", loaded).
		Int("partitions", len(ordinals)).
		Int("warm_keys", len(warmKeys)).
		Msg("state recovered")

	// --- Ingestion ---
	rawEventChan := make(chan ingestion.RawEvent, cfg.Engine.IngestChanSize)
	subscriber := ingestion.NewNATSSubscriber(js, rawEventChan)
	if err := subscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		logger.Fatal().Err(err).Msg("nats subscribe")
	}

	// --- Workers ---
	errChan := make(chan error, 4)

	persistWorker := persistence.NewWorker(db, persistChan, cfg.Persistence.BatchSize, cfg.Persistence.FlushTimeout, metrics)
	go func() {
		errChan <- persistWorker.Run(ctx)
	}()

	cache := projection.NewLeaderboardCache(rdb, cfg.Redis.Prefix)
	projWorker := projection.NewWorker(cache, projectionChan)
	go func() {
		errChan <- projWorker.Run(ctx)
	}()

	go runIngestionLoop(ctx, rawEventChan, engine, metrics, logger)

	// --- Metrics + health server ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", health.LivenessHandler)
		mux.HandleFunc("/readyz", health.ReadinessHandler)
		srv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			srv.Shutdown(shutCtx)
		}()
		logger.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	health.SetReady(true)
	logger.Info().Int64("sequence", startSequence).Msg("ready")

	// --- Wait for shutdown ---
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		logger.Error().Err(err).Msg("worker failed, shutting down")
	}

	health.SetReady(false)
	subscriber.Stop()
	cancel()

	// Give the persistence worker time for its final flush.
	time.Sleep(2 * time.Second)
	logger.Info().Msg("shutdown complete")
}

// runIngestionLoop parses raw NATS messages and feeds them to the
// engine. A message is acked only after the engine accepts it, so a
// handler failure is redelivered; unparseable payloads are acked to
// break the redelivery loop.
func runIngestionLoop(
	ctx context.Context,
	rawChan <-chan ingestion.RawEvent,
	engine *core.Engine,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) {
	subjectToType := make(map[string]string)
	for _, sc := range ingestion.DefaultSubjects() {
		subjectToType[strings.TrimSuffix(sc.Subject, ".>")] = sc.EventType
	}

	for {
		select {
		case <-ctx.Done():
			return

		case raw, ok := <-rawChan:
			if !ok {
				return
			}
			metrics.IngestReceived.WithLabelValues(raw.Subject).Inc()

			eventType := resolveEventType(raw.Subject, subjectToType)
			if eventType == "" {
				logger.Warn().Str("subject", raw.Subject).Msg("unknown subject")
				raw.AckFunc()
				continue
			}

			evt, err := ingestion.ParseRawEvent(raw, eventType)
			if err != nil {
				logger.Warn().Err(err).Str("subject", raw.Subject).Msg("parse failed")
				metrics.IngestParseErrors.WithLabelValues(raw.Subject).Inc()
				raw.AckFunc()
				continue
			}

			if err := engine.ProcessEvent(evt); err != nil {
				logger.Error().
					Err(err).
					Str("type", eventType).
					Str("key", evt.IdempotencyKey()).
					Msg("process event")
				raw.NakFunc()
				continue
			}
			raw.AckFunc()
		}
	}
}

// resolveEventType matches a concrete subject against the configured
// wildcard prefixes, longest prefix wins.
func resolveEventType(subject string, prefixMap map[string]string) string {
	bestLen := -1
	bestType := ""
	for prefix, evtType := range prefixMap {
		if strings.HasPrefix(subject, prefix) && len(prefix) > bestLen {
			bestLen = len(prefix)
			bestType = evtType
		}
	}
	return bestType
}
