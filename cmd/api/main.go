// Command api accepts jobs over HTTP and exposes queue and dead-letter
// inspection.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"redis-job-worker/internal/api"
	"redis-job-worker/internal/config"
	"redis-job-worker/internal/job"
	"redis-job-worker/internal/jobs"
	"redis-job-worker/internal/logger"
	"redis-job-worker/internal/metrics"
	"redis-job-worker/internal/queue"
	"redis-job-worker/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.LogFormat == "json" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, err := queue.NewRedisClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer q.Close()

	m := metrics.New()
	st := store.New(q.Client(), log)
	dl := queue.NewDeadLetters(q.Client())

	reg := job.NewRegistry()
	jobs.Register(reg)

	router := api.NewRouter(api.Deps{
		Registry:    reg,
		Runtime:     &job.Runtime{Transport: q, Observer: m, Logger: log},
		DeadLetters: dl,
		Stats:       st,
		Metrics:     m,
		Log:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := api.Serve(ctx, srv, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}
