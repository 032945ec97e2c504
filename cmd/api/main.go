package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Erneeh/runleague/internal/api"
	"github.com/Erneeh/runleague/internal/auth"
	"github.com/Erneeh/runleague/internal/config"
	"github.com/Erneeh/runleague/internal/leaderboard"
	"github.com/Erneeh/runleague/internal/outbox"
	persistence "github.com/Erneeh/runleague/internal/persistence/postgres"
	"github.com/Erneeh/runleague/internal/strava"
	runsync "github.com/Erneeh/runleague/internal/sync"
	httptransport "github.com/Erneeh/runleague/internal/transport/http"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	loc := cfg.Location()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	runs := persistence.NewRunRepository(pool, cfg.RunEventsTopic)
	profiles := persistence.NewProfileRepository(pool)
	creds := persistence.NewCredentialRepository(pool)

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	dispatcher := outbox.NewDispatcher(outbox.NewPostgresStore(pool), producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	board := leaderboard.NewService(runs, profiles, loc)

	handlerCfg := api.HandlerConfig{
		Leaderboard: board,
		Runs:        runs,
		Credentials: creds,
		Location:    loc,
		SyncTimeout: cfg.SyncUserTimeout,
	}
	if cfg.StravaEnabled() {
		client := strava.NewClient(strava.Config{
			ClientID:     cfg.StravaClientID,
			ClientSecret: cfg.StravaClientSecret,
			RedirectURI:  cfg.StravaRedirectURI,
			Timeout:      cfg.StravaTimeout,
		})
		handlerCfg.Connector = client
		handlerCfg.Syncer = runsync.NewEngine(creds, runs, client, loc)
	} else {
		log.Println("strava credentials not configured, provider endpoints disabled")
	}

	handler := api.NewHandler(handlerCfg)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, authMiddleware.Wrap(logger(mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("runleague api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	dispatcher.Wait()
}
