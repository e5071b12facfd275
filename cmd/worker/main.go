package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"autograder/internal/cache"
	"autograder/internal/config"
	"autograder/internal/db"
	"autograder/internal/logging"
	"autograder/internal/qa"
	"autograder/internal/storage"
	"autograder/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logging.MustNew(cfg.Log)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	dbase, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer dbase.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	w := &worker.Server{
		Store:  db.NewStore(dbase),
		Grader: cfg.GraderOptions(),
		Cache:  cache.NewReports(rdb, cfg.ReportCacheTTL),
		Log:    log,
	}

	if cfg.DockerImage != "" {
		pullCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		dr, err := qa.NewDockerRunner(pullCtx, cfg.DockerImage, log)
		cancel()
		if err != nil {
			log.Fatal("docker runner", zap.Error(err))
		}
		defer dr.Close()
		w.Grader.Runner = dr
	}

	if cfg.MinioEndpoint != "" {
		s3c, err := storage.New(ctx, storage.Options{
			Endpoint:  cfg.MinioEndpoint,
			Bucket:    cfg.MinioBucket,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
		})
		if err != nil {
			log.Fatal("s3 client", zap.Error(err))
		}
		if err := s3c.EnsureBucket(ctx); err != nil {
			log.Fatal("ensure bucket", zap.Error(err))
		}
		w.Archive = s3c
	}

	log.Info("worker starting",
		zap.String("redis", cfg.RedisAddr),
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.String("docker_image", cfg.DockerImage))
	if err := worker.Run(cfg.RedisAddr, cfg.WorkerConcurrency, w); err != nil {
		log.Fatal("worker", zap.Error(err))
	}
}
