package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/romariotrain/asset-pipeline/internal/assetjob/httpapi"
	"github.com/romariotrain/asset-pipeline/internal/assetjob/reaper"
	"github.com/romariotrain/asset-pipeline/internal/assetjob/repository"
	"github.com/romariotrain/asset-pipeline/internal/assetjob/service"
	"github.com/romariotrain/asset-pipeline/internal/blob"
	"github.com/romariotrain/asset-pipeline/internal/config"
	"github.com/romariotrain/asset-pipeline/internal/storage/postgres"
)

func run(ctx context.Context, logger zerolog.Logger) error {
	cfg, err := config.LoadAPI()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []service.Option{service.WithMaxAttempts(cfg.MaxJobAttempts)}
	if cfg.BlobToken != "" {
		deleter, err := blob.NewDeleter(cfg.BlobAPIURL, cfg.BlobToken, nil)
		if err != nil {
			return fmt.Errorf("blob deleter: %w", err)
		}
		opts = append(opts, service.WithBlobDeleter(deleter))
	} else {
		logger.Warn().Msg("BLOB_READ_WRITE_TOKEN is empty, deleted assets keep their files")
	}

	svc := service.New(store, opts...)
	h := httpapi.New(svc, logger)
	router := httpapi.NewRouter(h, httpapi.RouterConfig{
		ServiceToken:  cfg.ServerAPIKey,
		SessionSecret: cfg.SessionJWTSecret,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	r := reaper.New(svc, reaper.Config{
		Interval:   cfg.ReaperInterval,
		StuckAfter: cfg.StuckJobThreshold,
		Logger:     logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Str("store", cfg.Store).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return r.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.API, logger zerolog.Logger) (repository.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return repository.NewMemoryRepository(), func() {}, nil
	}

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.DefaultPoolConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	repo := postgres.NewRepo(db, postgres.NewOutboxRepo(db))
	return repo, func() { closeDB(db, logger) }, nil
}

func closeDB(db *sqlx.DB, logger zerolog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn().Err(err).Msg("db close")
	}
}
