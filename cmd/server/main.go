package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"startline/internal/admission"
	admissionMetrics "startline/internal/admission/metrics"
	"startline/internal/attemptlog"
	"startline/internal/catalog"
	"startline/internal/notification"
	"startline/internal/platform/config"
	"startline/internal/platform/httpserver"
	"startline/internal/platform/logger"
	platformRedis "startline/internal/platform/redis"
	"startline/internal/ratelimit"
	httptransport "startline/internal/transport/http"
	"startline/internal/verification"
	verificationMetrics "startline/internal/verification/metrics"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages. Every backing
// store degrades to an in-memory implementation when its URL is not
// configured, so a bare `go run ./cmd/server` serves a working dev instance.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := map[string]httptransport.HealthChecker{}

	// Postgres is the system of record. Without it the memory stores keep
	// the full admission semantics for development.
	var (
		db             *sql.DB
		catalogStore   catalog.Store
		admissionStore admission.Store
		attemptStore   attemptlog.Store
	)
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		catalogStore = catalog.NewPostgresStore(db)
		admissionStore = admission.NewPostgresStore(db)
		attemptStore = attemptlog.NewPostgresStore(db)
		deps["postgres"] = dbHealth{db}
	} else {
		log.Warn("no postgres URL configured, using in-memory stores")
		catalogStore = catalog.NewInMemoryStore()
		admissionStore = admission.NewInMemoryStore()
		attemptStore = attemptlog.NewInMemoryStore()
	}

	redisClient, err := platformRedis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	var limitStore ratelimit.Store
	if redisClient != nil {
		defer redisClient.Close()
		limitStore = ratelimit.NewRedisStore(redisClient.Client)
		deps["redis"] = redisClient
	} else {
		log.Warn("no redis URL configured, rate limits are per-instance")
		limitStore = ratelimit.NewInMemoryStore()
	}
	limiter, err := ratelimit.NewService(limitStore, cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window)
	if err != nil {
		log.Error("rate limiter init failed", "error", err)
		os.Exit(1)
	}

	var fedClient verification.Client
	if cfg.Federation.BaseURL != "" {
		fedClient = verification.NewHTTPClient(cfg.Federation)
	} else {
		log.Warn("no federation webservice configured, license checks will report unavailable")
		fedClient = &verification.MockClient{Response: &verification.Response{Connected: false}}
	}
	verifier, err := verification.NewService(fedClient, verification.NewInMemoryStore(), log, verificationMetrics.New())
	if err != nil {
		log.Error("verification service init failed", "error", err)
		os.Exit(1)
	}

	// Attempt logging runs out-of-band so the admission path never waits on
	// audit I/O.
	publisher := attemptlog.NewPublisher(cfg.AttemptLog.BufferSize)
	worker := attemptlog.NewWorker(attemptStore, publisher.Inbox(), log)
	if cfg.AttemptLog.KafkaBrokers != "" {
		sink, err := attemptlog.NewKafkaSink(cfg.AttemptLog.KafkaBrokers, cfg.AttemptLog.KafkaTopic)
		if err != nil {
			log.Error("kafka sink init failed", "error", err)
			os.Exit(1)
		}
		defer sink.Close(context.Background())
		worker = worker.WithSink(sink)
	}
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	go func() {
		if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("attempt log worker stopped", "error", err)
		}
	}()

	admissions, err := admission.NewService(
		admissionStore,
		catalogStore,
		verifier,
		limiter,
		publisher,
		notification.NewLogSender(log),
		admissionMetrics.New(),
		log,
	)
	if err != nil {
		log.Error("admission service init failed", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Handler:      httptransport.New(admissions, verifier, catalogStore, log),
		Logger:       log,
		Dependencies: deps,
	})
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting startline", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	// Let the worker drain what the handlers already emitted.
	publisher.Drain(2 * time.Second)
}

type dbHealth struct{ db *sql.DB }

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
