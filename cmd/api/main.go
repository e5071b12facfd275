package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"autograder/internal/cache"
	"autograder/internal/config"
	"autograder/internal/db"
	httpSrv "autograder/internal/http"
	"autograder/internal/logging"
	"autograder/internal/storage"
)

func main() {
	cfg := config.Load()
	log := logging.MustNew(cfg.Log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open runs the embedded migrations first
	dbase, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer dbase.Close()

	asq := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer asq.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	s := &httpSrv.Server{
		Store:    db.NewStore(dbase),
		Queue:    asq,
		Cache:    cache.NewReports(rdb, cfg.ReportCacheTTL),
		Log:      log,
		APIToken: cfg.APIToken,

		CORSOrigins:     cfg.CORSOrigins,
		SubmitRatePerIP: cfg.SubmitRatePerMin,
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
		s.Archive = s3c
	}
	if cfg.APIToken == "" {
		log.Warn("API_TOKEN is empty; submission endpoints will reject every request")
	}

	srv := httpSrv.NewServer(cfg.APIAddr, s)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("api listening", zap.String("addr", cfg.APIAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("serve", zap.Error(err))
	}
}
