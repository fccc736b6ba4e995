package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointment-network/internal/api"
	"stealthcompany.com/appointment-network/internal/config"
	"stealthcompany.com/appointment-network/internal/metrics"
	"stealthcompany.com/appointment-network/internal/run"
	"stealthcompany.com/appointment-network/internal/schedule"
	"stealthcompany.com/appointment-network/internal/store"
	"stealthcompany.com/appointment-network/pkg/zerolog_config"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		log.Info().Msg("Not found .env file in parent directory, trying current directory")
		if err := godotenv.Load(".env"); err != nil {
			log.Info().Msg("Not found .env file in current directory, assuming environment variables are set")
		}
	}

	svc := config.LoadService()

	zerolog_config.SetAppPrefix("appointment-network-api")
	if err := zerolog_config.StartupWithEnv(svc.ElasticsearchURL, "logs", svc.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logging")
	}

	log.Info().Msg("Starting appointment-network-api service")

	// Start system metrics collection
	metrics.StartSystemMetrics(15 * time.Second)

	analysisCfg, err := config.LoadAnalysis(svc.AnalysisConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load analysis configuration")
	}

	stores := store.Multi{store.NewFileStore(svc.OutputDir)}
	var cb *store.CouchbaseStore
	if svc.CouchbaseURL != "" {
		cb, err = store.NewCouchbaseStore(svc)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Couchbase store")
		}
		stores = append(stores, cb)
	}

	runner := run.NewRunner(analysisCfg, svc.DataFiles, stores)

	// Repopulate the latest-result slot so read endpoints work before the
	// first in-process run.
	if cb != nil {
		restored, err := cb.LoadRun(context.Background())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load previous run from Couchbase")
		} else if restored != nil {
			runner.Restore(restored)
		}
	}

	var scheduler *schedule.Scheduler
	if svc.RefreshCron != "" {
		scheduler, err = schedule.New(svc.RefreshCron, runner)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule analysis refresh")
		}
		scheduler.Start()
	}

	// Setup routes
	router := api.NewServer(runner).SetupRoutes()

	server := &http.Server{
		Addr:    ":" + svc.Port,
		Handler: router,
	}

	// Listen for shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Info().
			Str("port", svc.Port).
			Msg("Server starting")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().
				Err(err).
				Msg("Failed to start server")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")

	if scheduler != nil {
		scheduler.Stop()
	}
	runner.Stop()

	// Shutdown server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	if cb != nil {
		if err := cb.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Couchbase connection")
		}
	}

	log.Info().Msg("API service shutdown complete")
}
