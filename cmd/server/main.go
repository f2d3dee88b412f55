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

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cardfeed/internal/cards/archive"
	"cardfeed/internal/cards/dispatch"
	cardhandler "cardfeed/internal/cards/handler"
	"cardfeed/internal/cards/publication"
	"cardfeed/internal/cards/resolver"
	"cardfeed/internal/cards/store"
	"cardfeed/internal/cards/subscription"
	"cardfeed/internal/connections"
	"cardfeed/internal/eventbus"
	"cardfeed/internal/feed"
	feedhandler "cardfeed/internal/feed/handler"
	"cardfeed/internal/jwttoken"
	"cardfeed/internal/platform/config"
	"cardfeed/internal/platform/httpserver"
	"cardfeed/internal/platform/logger"
	"cardfeed/internal/platform/metrics"
	"cardfeed/internal/platform/middleware"
	platformredis "cardfeed/internal/platform/redis"
	"cardfeed/internal/processgroups"
	"cardfeed/internal/users/directory"
)

// main wires the dependency graph and owns the process lifecycle. Business
// logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Event bus: Kafka when brokers are configured, in-process otherwise.
	var bus eventbus.Bus
	if len(cfg.KafkaBrokers) > 0 {
		kafkaBus, err := eventbus.NewKafkaBus(ctx, cfg.KafkaBrokers, cfg.KafkaGroup, log)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kafkaBus.Close()
		bus = kafkaBus
		log.Info("using kafka event bus", "brokers", cfg.KafkaBrokers)
	} else {
		bus = eventbus.NewMemoryBus()
		log.Info("using in-process event bus")
	}

	// Card store: Postgres when configured, in-memory otherwise.
	var cardStore store.Store
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("postgres schema setup failed", "error", err)
			os.Exit(1)
		}
		cardStore = pg
		log.Info("using postgres card store")
	} else {
		cardStore = store.NewMemoryStore()
		log.Info("using in-memory card store")
	}

	// Connection tracker: Redis when configured, in-memory otherwise.
	var tracker connections.Tracker
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		tracker = connections.NewRedisTracker(redisClient.Client)
		log.Info("using redis connection tracker")
	} else {
		tracker = connections.NewMemoryTracker()
	}

	res := resolver.New(log)
	registry := subscription.NewRegistry()
	feedSvc := feed.NewService(registry, cardStore, res, tracker, log, m, cfg.SubscriptionBuffer)
	pubSvc := publication.NewService(cardStore, bus, log, m, cfg.FeedDataFields)
	archiveEngine := archive.New(cardStore, log, m)

	dispatcher := dispatch.New(bus, registry, res, log, m)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("dispatcher stopped", "error", err)
			stop()
		}
	}()

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "cardfeed", "cardfeed")
	users := directory.NewMemoryDirectory()
	if cfg.UsersFile != "" {
		if err := users.LoadFile(cfg.UsersFile); err != nil {
			log.Error("users file load failed", "path", cfg.UsersFile, "error", err)
			os.Exit(1)
		}
	}
	auth := middleware.RequireAuth(jwtService, users, log)
	limited := func(next http.Handler) http.Handler {
		return auth(middleware.RateLimit(cfg.RateLimit, time.Minute)(next))
	}

	groupsSvc := processgroups.New(log)

	router := chi.NewRouter()
	cardhandler.New(pubSvc, archiveEngine, groupsSvc, log, limited).Register(router)
	feedhandler.New(feedSvc, jwtService, users, log, auth).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting cardfeed", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
