package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/romariotrain/asset-pipeline/internal/config"
	"github.com/romariotrain/asset-pipeline/internal/worker"
)

func run(ctx context.Context, logger zerolog.Logger) error {
	cfg, err := config.LoadWorker()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	client := worker.NewClient(cfg.APIBaseURL, cfg.ServerAPIKey, &http.Client{Timeout: cfg.HTTPTimeout})

	var transcriber worker.Transcriber
	if cfg.OpenAIAPIKey != "" {
		t, err := worker.NewOpenAITranscriber(worker.OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			return fmt.Errorf("openai: %w", err)
		}
		transcriber = t
	} else {
		logger.Warn().Msg("OPENAI_API_KEY is empty, audio and video jobs will fail")
	}

	proc := worker.NewProcessor(client, worker.NewExtractor(transcriber), worker.ApproxTokenCounter{}, worker.ProcessorConfig{
		MaxAttempts:       cfg.MaxJobAttempts,
		HeartbeatInterval: cfg.HeartbeatInterval,
		JobTimeout:        cfg.JobTimeout,
		Logger:            logger,
	})

	d := worker.NewDispatcher(client, proc, worker.DispatcherConfig{
		Workers:      cfg.MaxNumWorkers,
		MaxAttempts:  cfg.MaxJobAttempts,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})

	logger.Info().Str("api", cfg.APIBaseURL).Msg("worker configured")
	return d.Run(ctx)
}
