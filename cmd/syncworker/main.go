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

	"github.com/Erneeh/runleague/internal/config"
	persistence "github.com/Erneeh/runleague/internal/persistence/postgres"
	"github.com/Erneeh/runleague/internal/strava"
	runsync "github.com/Erneeh/runleague/internal/sync"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if !cfg.StravaEnabled() {
		log.Fatal("strava credentials not configured, sync worker has nothing to do")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	runs := persistence.NewRunRepository(pool, cfg.RunEventsTopic)
	creds := persistence.NewCredentialRepository(pool)
	client := strava.NewClient(strava.Config{
		ClientID:     cfg.StravaClientID,
		ClientSecret: cfg.StravaClientSecret,
		RedirectURI:  cfg.StravaRedirectURI,
		Timeout:      cfg.StravaTimeout,
	})
	engine := runsync.NewEngine(creds, runs, client, cfg.Location())

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("sync worker metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	log.Printf("sync worker started (interval=%s, per-user timeout=%s)", cfg.SyncInterval, cfg.SyncUserTimeout)

	// One pass immediately on startup, then on every tick.
	runPass := func() {
		start := time.Now()
		if err := engine.SyncAll(ctx, cfg.SyncUserTimeout); err != nil {
			log.Printf("sync pass finished with errors after %s: %v", time.Since(start).Round(time.Millisecond), err)
			return
		}
		log.Printf("sync pass completed in %s", time.Since(start).Round(time.Millisecond))
	}
	runPass()

	for {
		select {
		case <-stop:
			log.Println("sync worker shutdown requested")
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				log.Printf("metrics shutdown failed: %v", err)
			}
			return
		case <-ticker.C:
			runPass()
		}
	}
}
