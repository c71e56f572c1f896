// Command worker consumes one Redis list and runs the jobs it finds there.
//
//	worker [queue] [--sleep=5] [--no-subprocess] [--job-timeout=0] [--metrics-addr=:9090]
//
// In subprocess mode every job runs in a fresh copy of this binary, started
// with --payload=<envelope>.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"redis-job-worker/internal/api"
	"redis-job-worker/internal/config"
	"redis-job-worker/internal/job"
	"redis-job-worker/internal/jobs"
	"redis-job-worker/internal/logger"
	"redis-job-worker/internal/metrics"
	"redis-job-worker/internal/queue"
	"redis-job-worker/internal/store"
	"redis-job-worker/internal/worker"
)

var errChildFailed = errors.New("job did not succeed")

type options struct {
	sleep        int
	subprocess   bool
	noSubprocess bool
	payload      string
	jobTimeout   time.Duration
	metricsAddr  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errChildFailed) {
			fmt.Fprintln(os.Stderr, "worker:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "worker [queue]",
		Short:         "Consume jobs from a Redis list",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			queueName := job.DefaultQueue
			if len(args) == 1 {
				queueName = args[0]
			}
			if opts.noSubprocess {
				opts.subprocess = false
			}
			return run(cmd.Context(), queueName, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.sleep, "sleep", int(worker.DefaultSleep/time.Second), "seconds to sleep after each loop iteration")
	f.BoolVar(&opts.subprocess, "subprocess", true, "run each job in a child process")
	f.BoolVar(&opts.noSubprocess, "no-subprocess", false, "run jobs inside the worker process")
	f.StringVar(&opts.payload, worker.PayloadFlag, "", "run a single envelope and exit")
	f.DurationVar(&opts.jobTimeout, "job-timeout", 0, "kill a child that runs longer than this (0 disables)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	_ = f.MarkHidden(worker.PayloadFlag)
	return cmd
}

func run(ctx context.Context, queueName string, opts *options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, err := queue.NewRedisClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer q.Close()

	m := metrics.New()
	rt := &job.Runtime{
		Transport: q,
		Observer:  job.Observers{m, store.New(q.Client(), log)},
		Logger:    log,
	}
	if cfg.DeadLetter {
		rt.DeadLetters = queue.NewDeadLetters(q.Client())
	}

	reg := job.NewRegistry()
	jobs.Register(reg)
	runner := worker.NewRunner(reg, rt, log)

	if opts.payload != "" {
		if worker.RunChild(ctx, runner, opts.payload) != 0 {
			return errChildFailed
		}
		return nil
	}

	var exec worker.Executor = runner
	if opts.subprocess {
		iso, err := worker.NewIsolator(queueName, log)
		if err != nil {
			return err
		}
		iso.Timeout = opts.jobTimeout
		iso.Recorder = m
		exec = iso
	}

	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := api.Serve(ctx, srv, log.Named("metrics")); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	w := worker.New(q, exec, worker.Options{
		Queue:      queueName,
		Sleep:      time.Duration(opts.sleep) * time.Second,
		Subprocess: opts.subprocess,
	}, log)
	return w.Run(ctx)
}
