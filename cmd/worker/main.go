package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/journal-platform/internal/ai"
	"github.com/suPer8Hu/journal-platform/internal/config"
	"github.com/suPer8Hu/journal-platform/internal/db"
	"github.com/suPer8Hu/journal-platform/internal/journal"
	"github.com/suPer8Hu/journal-platform/internal/logging"
	"github.com/suPer8Hu/journal-platform/internal/metrics"
	"github.com/suPer8Hu/journal-platform/internal/report"
	"github.com/suPer8Hu/journal-platform/internal/store/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.RabbitURL == "" {
		logrus.Fatal("RABBIT_URL is required for the standalone worker")
	}

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logrus.WithError(err).Fatal("connect database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Provider registry; AI_PROVIDER picks the backend.
	provider, err := ai.NewDefaultRegistry(cfg.AISettings()).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		logrus.WithError(err).Fatal("ai provider")
	}

	worker := report.NewWorker(report.NewRepo(gdb), journal.NewRepo(gdb), provider, report.WithTimeout(cfg.JobTimeout))

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency)
	if err != nil {
		logrus.WithError(err).Fatal("rabbit consumer")
	}
	defer consumer.Close()

	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// jobs outlive the signal so they can reach a terminal state
		return consumer.Run(gctx, func(_ context.Context, jobID string) error {
			return worker.Process(context.WithoutCancel(gctx), jobID)
		})
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("worker stopped with error")
		os.Exit(1)
	}
	logrus.Info("worker stopped")
}
