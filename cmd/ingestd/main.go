// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command ingestd wires the configuration, state store, metrics,
// handlers, planner, discovery, and optional status HTTP surface into a
// supervised process. main stays thin: construction only, no branching
// logic beyond optional-feature flags.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomtom215/stereoingest/internal/config"
	"github.com/tomtom215/stereoingest/internal/ingest/discovery"
	"github.com/tomtom215/stereoingest/internal/ingest/handlers"
	"github.com/tomtom215/stereoingest/internal/ingest/planner"
	"github.com/tomtom215/stereoingest/internal/ingest/stability"
	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/logging"
	"github.com/tomtom215/stereoingest/internal/metrics"
	"github.com/tomtom215/stereoingest/internal/statusapi"
	"github.com/tomtom215/stereoingest/internal/supervisor"
	"github.com/tomtom215/stereoingest/internal/timeutil"
)

func main() {
	var watchRoot string
	var deleteOriginal bool
	flag.StringVar(&watchRoot, "root", "", "directory tree to ingest (required)")
	flag.BoolVar(&deleteOriginal, "delete-original", false, "group policy: finalize a group once its .stereo member is terminal (no file is deleted by this process)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := logging.Logger()

	if watchRoot == "" {
		log.Fatal().Msg("-root is required")
	}

	st, err := store.Open(store.Options{Path: cfg.Store.Path})
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	registry := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(registry)
	recorder := metrics.NewRecorder(cfg.Metrics.RetentionHours, cfg.Metrics.MaxEvents)

	ts := timeutil.NewSystemTimeSource()
	sp := timeutil.NewSystemStatProvider()

	workerName := "ingestd-" + uuid.NewString()
	log.Info().Str("worker_name", workerName).Msg("lease owner token assigned")

	table := handlers.NewTable(handlers.Deps{
		Store:      st,
		Checker:    handlers.NullIntegrityChecker{},
		Prober:     handlers.NullAudioProber{},
		Recorder:   recorder,
		Config:     cfg,
		WorkerName: workerName,
	})

	pcfg := planner.Config{
		BatchSize:           cfg.Planner.BatchSize,
		LoopInterval:        cfg.Planner.LoopInterval,
		IdleSleepCap:        cfg.Planner.IdleSleepCap,
		MaintenanceInterval: cfg.Planner.MaintenanceInterval,
		WorkerCount:         cfg.Planner.WorkerCount,
		Stability:           stability.DefaultConfig(cfg.Planner.StableWait),
		Backoff: planner.BackoffConfig{
			Step:                cfg.Planner.BackoffStep,
			Max:                 cfg.Planner.BackoffMax,
			QuarantineThreshold: cfg.Planner.QuarantineThreshold,
		},
	}
	pl := planner.New(st, table, pcfg, ts, sp, recorder, collectors)

	walker := discovery.New(st, ts, sp, discovery.Config{
		MinFileSize:   cfg.Discovery.MinFileSize,
		Extensions:    cfg.Discovery.Extensions,
		MaxDepth:      cfg.Discovery.MaxDepth,
		FanOut:        cfg.Discovery.FanOut,
		RatePerSecond: cfg.Discovery.RatePerSecond,
	})

	slogLogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	tree := supervisor.New(slogLogger, supervisor.DefaultTreeConfig())
	tree.AddCoreService(supervisor.Adapt("planner", pl))

	if cfg.Discovery.WatchEnabled {
		watcher, err := discovery.NewWatcher(walker, watchRoot, deleteOriginal)
		if err != nil {
			log.Fatal().Err(err).Msg("start fsnotify watcher")
		}
		tree.AddIntakeService(watcher)
	}

	if cfg.Status.Enabled {
		server := statusapi.NewServer(cfg.Status.Addr, statusapi.NewRouter(statusapi.Deps{
			Store:      st,
			Recorder:   recorder,
			Registry:   registry,
			Conversion: handlers.NewConversionRecorder(st, recorder),
			Time:       ts,
		}))
		tree.AddStatusService(server)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := walker.ScanDirectory(ctx, watchRoot, deleteOriginal); err != nil {
		log.Warn().Err(err).Msg("initial scan encountered errors")
	}

	errCh := tree.ServeBackground(ctx)

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	if err := <-errCh; err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("supervisor tree exited with error")
	}
}
