package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/airsstack/overseer"
	"github.com/airsstack/overseer/internal/config"
	"github.com/airsstack/overseer/internal/introspect"
	"github.com/airsstack/overseer/internal/logger"
	"github.com/airsstack/overseer/monitor"
)

func printConfig(out io.Writer, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func run(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	history := monitor.NewInMemory(cfg.Monitor.History, overseer.SeverityInfo)
	monitors := monitor.Fanout{
		history,
		monitor.NewPrometheus(reg),
		monitor.NewZap(log),
	}

	if cfg.Monitor.EventLog != "" {
		f, err := os.OpenFile(cfg.Monitor.EventLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		defer f.Close()
		monitors = append(monitors, monitor.NewWriter(f))
	}

	if cfg.Monitor.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Monitor.SentryDSN, Release: Version}); err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		reporter := monitor.NewSentry(nil, cfg.MinSeverity())
		defer reporter.Flush()
		monitors = append(monitors, reporter)
	}

	opts := append(cfg.Options(),
		overseer.WithLogger(log),
		overseer.WithMonitor(monitors),
		overseer.WithChildren(demoSpecs(cfg.Demo)...),
	)
	sup := overseer.New(cfg.Strategy(), opts...)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sup.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			log.Info("shutting down")
			return sup.Stop(context.Background())
		case <-sup.Done():
			return sup.Wait()
		}
	})
	if cfg.HTTP.Addr != "" {
		server := introspect.New(sup, history, reg, log)
		g.Go(func() error { return server.Run(gctx, cfg.HTTP.Addr) })
	}

	err = g.Wait()
	if overseer.IsFatal(err) {
		log.Error("supervision tree gave up", zap.Error(err))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// demoSpecs builds a worker pool that crashes now and then plus a nested
// three-stage pipeline where a failing stage restarts everything after it.
func demoSpecs(demo config.DemoConfig) []overseer.ChildSpec {
	specs := make([]overseer.ChildSpec, 0, demo.Workers+2)

	specs = append(specs, overseer.NewFuncSpec("warmup", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
		}
		return nil
	}).WithRestart(overseer.Transient))

	for i := 0; i < demo.Workers; i++ {
		id := overseer.ChildID(fmt.Sprintf("worker-%d", i+1))
		specs = append(specs, overseer.NewFuncSpec(id, flaky(demo.CrashEvery)))
	}

	specs = append(specs, overseer.NewSupervisorSpec("pipeline", overseer.RestForOne,
		overseer.WithIntensity(10, time.Minute),
		overseer.WithChildren(
			overseer.NewFuncSpec("reader", flaky(demo.CrashEvery*3)),
			overseer.NewFuncSpec("transformer", flaky(0)),
			overseer.NewFuncSpec("writer", flaky(0)).WithShutdown(overseer.Graceful(2*time.Second)),
		),
	))
	return specs
}
