package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointment-network/internal/config"
	"stealthcompany.com/appointment-network/internal/run"
	"stealthcompany.com/appointment-network/internal/store"
	"stealthcompany.com/appointment-network/pkg/zerolog_config"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Info().Msg("Not found .env file, assuming environment variables are set")
	}

	svc := config.LoadService()

	zerolog_config.SetAppPrefix("appointment-network-analyze")
	if err := zerolog_config.StartupWithEnv(svc.ElasticsearchURL, "logs", svc.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logging")
	}

	log.Info().
		Strs("inputs", svc.DataFiles).
		Str("output_dir", svc.OutputDir).
		Msg("Starting one-shot analysis run")

	analysisCfg, err := config.LoadAnalysis(svc.AnalysisConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load analysis configuration")
	}

	runner := run.NewRunner(analysisCfg, svc.DataFiles, store.NewFileStore(svc.OutputDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	result, err := runner.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis run failed")
	}

	log.Info().
		Str("run_id", result.RunID).
		Int("nodes", result.Document.Metadata.TotalNodes).
		Int("edges", result.Document.Metadata.TotalEdges).
		Int("communities", result.Document.Metadata.TotalCommunities).
		Int("insights", len(result.Insights)).
		Msg("Analysis completed")
}
