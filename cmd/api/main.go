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
	"github.com/suPer8Hu/journal-platform/internal/httpapi"
	"github.com/suPer8Hu/journal-platform/internal/journal"
	"github.com/suPer8Hu/journal-platform/internal/logging"
	"github.com/suPer8Hu/journal-platform/internal/report"
	"github.com/suPer8Hu/journal-platform/internal/store/rabbitmq"
	"github.com/suPer8Hu/journal-platform/internal/store/redisstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logrus.WithError(err).Fatal("connect database")
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.WithError(err).Fatal("migrate database")
	}

	var cache journal.Cache
	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rds.Ping(pctx)
		cancel()
		if err != nil {
			logrus.WithError(err).Warn("redis unavailable, dashboard cache disabled")
			_ = rds.Close()
		} else {
			defer rds.Close()
			cache = rds
		}
	}

	provider, err := ai.NewDefaultRegistry(cfg.AISettings()).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		logrus.WithError(err).Fatal("ai provider")
	}

	// report jobs go to rabbitmq when configured, otherwise to an in-process pool
	var scheduler report.Scheduler
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			logrus.WithError(err).Fatal("rabbit publisher")
		}
		defer pub.Close()
		scheduler = pub
	} else {
		worker := report.NewWorker(report.NewRepo(gdb), journal.NewRepo(gdb), provider, report.WithTimeout(cfg.JobTimeout))
		d := report.NewDispatcher(worker, cfg.WorkerConcurrency)
		d.Start(context.WithoutCancel(ctx))
		defer d.Close()
		scheduler = d
		logrus.WithField("concurrency", cfg.WorkerConcurrency).Info("RABBIT_URL empty, running report jobs in-process")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(gdb, cfg, cache, scheduler, provider),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("addr", cfg.HTTPAddr).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("api stopped with error")
	}
}
