package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/streamlens/streamlens/internal/cache"
	"github.com/streamlens/streamlens/internal/collectors"
	config "github.com/streamlens/streamlens/internal/config/monitor"
	"github.com/streamlens/streamlens/internal/domain/events"
	"github.com/streamlens/streamlens/internal/obs"
	"github.com/streamlens/streamlens/internal/obs/retry"
	"github.com/streamlens/streamlens/internal/ratelimit"
	kafkaRepo "github.com/streamlens/streamlens/internal/repository/kafka"
	pg "github.com/streamlens/streamlens/internal/repository/postgres"
	"github.com/streamlens/streamlens/internal/secrets"
	"github.com/streamlens/streamlens/internal/services/monitor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting monitor",
		zap.Int("workers", cfg.Sched.Workers),
		zap.Duration("tick", cfg.Sched.Tick),
		zap.String("metrics_addr", cfg.Sched.MetricsAddr),
		zap.Bool("kafka", cfg.Kafka.Enabled),
	)

	otel, err := obs.SetupOTel(ctx, cfg.OTEL)
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otel.Shutdown(context.Background()) }()

	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	var publisher events.Publisher = events.Noop{}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		prod := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, l)
		defer func() { _ = prod.Close() }()
		publisher = kafkaRepo.NewMonitorEventsKafka(prod)
	}

	if cfg.Secrets.MasterKey == "" {
		l.Fatal("secrets master key not set (SECRETS_MASTER_KEY)")
	}
	cipher, err := secrets.NewCipher([]byte(cfg.Secrets.MasterKey))
	if err != nil {
		l.Fatal("credential cipher", zap.Error(err))
	}

	jobRepo := pg.NewJobRepo(db)
	recordRepo := pg.NewRecordRepo(db)
	credRepo := pg.NewCredentialRepo(db)
	tx := pg.NewTransactor(db, l)
	store := secrets.NewStore(cipher, credRepo)

	limiter := ratelimit.NewKeyed(quota(cfg.Limits.Default), quotas(cfg.Limits.Platforms))
	sharedCache := cache.New()

	exec := &monitor.Executor{
		Log:        l,
		Secrets:    store,
		Limiter:    limiter,
		Collectors: collectors.New(cfg.Collect, &http.Client{Timeout: 30 * time.Second}, sharedCache),
		Records:    recordRepo,
		Events:     publisher,
		Publish:    retry.DefaultPublishPolicy(l),
	}
	sched := monitor.NewScheduler(l, cfg.Sched, jobRepo, recordRepo, credRepo, publisher, exec, tx, sharedCache, nil)

	loaded, err := sched.Load(ctx)
	if err != nil {
		l.Fatal("load jobs", zap.Error(err))
	}
	l.Info("job table loaded", zap.Int("jobs", loaded))

	inbound := ratelimit.NewInbound(ratelimit.Quota{
		Limit:  cfg.Limits.InboundLimit,
		Window: cfg.Limits.InboundWindow,
	})
	ms := obs.BootstrapMetricsServer(cfg.Sched.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l, inbound.Middleware)

	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				sharedCache.Sweep()
			}
		}
	}()

	runner := monitor.NewRunner(l, sched)
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("monitor started")

	select {
	case <-ctx.Done():
		<-errCh
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}

func quota(q config.QuotaCfg) ratelimit.Quota {
	return ratelimit.Quota{Limit: q.Limit, Window: q.Window, MaxWait: q.MaxWait}
}

func quotas(m map[string]config.QuotaCfg) map[string]ratelimit.Quota {
	out := make(map[string]ratelimit.Quota, len(m))
	for k, q := range m {
		out[k] = quota(q)
	}
	return out
}
