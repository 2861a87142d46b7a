package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video-transcode-worker/internal/config"
	"video-transcode-worker/internal/domain/ports/adapter"
	pg "video-transcode-worker/internal/infra/db/postgres"
	enc "video-transcode-worker/internal/infra/encoder"
	"video-transcode-worker/internal/infra/logging"
	"video-transcode-worker/internal/infra/metrics"
	red "video-transcode-worker/internal/infra/redis"
	"video-transcode-worker/internal/infra/storage"
	"video-transcode-worker/internal/infra/web"
	"video-transcode-worker/internal/infra/worker"
	"video-transcode-worker/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop encoder allowed)")
	once := flag.Bool("once", false, "process at most one job, then exit")
	workerID := flag.String("worker-id", "", "override the worker identity")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	identity := *workerID
	if identity == "" {
		identity = cfg.Worker.Identity
	}
	if identity == "" {
		identity = worker.NewWorkerIdentity()
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Repositories ----
	jobRepo := pg.NewJobRepo(pool, tm)
	assetRepo := pg.NewAssetRepo(pool)
	renditionRepo := pg.NewRenditionRepo(pool)

	// ---- Blob store ----
	blob, err := storage.NewMinioStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("blob store")
	}

	// ---- Encoder ----
	var encoder adapter.Encoder
	if cfg.Runtime.Dev && cfg.Encoder.FFmpegPath == "noop" {
		logger.Warn().Msg("using noop encoder (dev mode)")
		encoder = enc.NewNoopEncoder()
	} else {
		encoder = enc.NewFFmpegEncoder(cfg.Encoder, logger)
	}

	// ---- Progress mirror (optional) ----
	var progress adapter.ProgressPublisher = adapter.NoopProgressPublisher{}
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		progress = red.NewProgressMirror(redisClient)
	}

	// ---- Pipeline + loop ----
	registrar := usecase.NewRenditionRegistrar(renditionRepo, assetRepo, tm, cfg.Storage.PublishBucket, logger)
	pipeline := worker.NewPipeline(jobRepo, assetRepo, registrar, blob, encoder, progress,
		cfg.QualityLadder(), worker.PipelineConfig{
			SourceBucket:  cfg.Storage.SourceBucket,
			PublishBucket: cfg.Storage.PublishBucket,
			TempDir:       cfg.Worker.TempDir,
			MaxRetries:    cfg.Worker.MaxRetries,
		}, logger)
	loop := worker.NewLoop(jobRepo, pipeline, identity, cfg.Worker.MaxRetries, cfg.PollInterval(), logger)

	if *once {
		processed, err := loop.RunOnce(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("single run")
		}
		if !processed {
			logger.Info().Msg("no eligible job")
		}
		return
	}

	// ---- Admin HTTP ----
	adminSrv := web.NewServer(cfg.Admin.Port, loop, logger)
	go func() {
		if err := adminSrv.Start(); err != nil {
			logger.Error().Err(err).Msg("admin http server")
		}
	}()

	// ---- Signals ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	if err := loop.Run(ctx); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("worker loop exited")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin http shutdown")
	}
}
