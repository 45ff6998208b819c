// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/stereoingest/internal/ingest/handlers"
	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/ingest/stability"
	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/logging"
	"github.com/tomtom215/stereoingest/internal/metrics"
	"github.com/tomtom215/stereoingest/internal/timeutil"
)

// Config parameterizes the planner loop (spec §4.5).
type Config struct {
	BatchSize           int
	LoopInterval        time.Duration
	IdleSleepCap        time.Duration
	MaintenanceInterval time.Duration
	WorkerCount         int
	Stability           stability.Config
	Backoff             BackoffConfig
}

// Planner runs the single-threaded decide loop and a bounded worker pool
// that executes dispatched handler calls. Lifecycle is stopChan +
// sync.WaitGroup, guarded by a sync.RWMutex on the running flag.
type Planner struct {
	store    *store.Store
	table    handlers.Table
	cfg      Config
	time     timeutil.TimeSource
	stats    timeutil.StatProvider
	recorder *metrics.Recorder
	collectors *metrics.Collectors

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	work chan pendingAction
}

// pendingAction threads the decided action alongside the entry through the
// work channel.
type pendingAction struct {
	entry  *models.FileEntry
	action handlers.Action
}

// New constructs a Planner. collectors may be nil if Prometheus export is
// disabled.
func New(st *store.Store, table handlers.Table, cfg Config, ts timeutil.TimeSource, sp timeutil.StatProvider, recorder *metrics.Recorder, collectors *metrics.Collectors) *Planner {
	return &Planner{
		store:      st,
		table:      table,
		cfg:        cfg,
		time:       ts,
		stats:      sp,
		recorder:   recorder,
		collectors: collectors,
	}
}

// Start begins the decide loop, the worker pool, and the maintenance
// ticker, returning once they are launched (non-blocking).
func (p *Planner) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("planner is already running")
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.work = make(chan pendingAction, p.cfg.BatchSize)
	p.mu.Unlock()

	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.wg.Add(1)
	go p.decideLoop(ctx)

	p.wg.Add(1)
	go p.maintenanceLoop(ctx)

	logging.Info().Int("workers", p.cfg.WorkerCount).Msg("planner started")
	return nil
}

// Stop signals all loops to exit and waits for them to finish.
func (p *Planner) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return fmt.Errorf("planner is not running")
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	logging.Info().Msg("planner stopped")
	return nil
}

func (p *Planner) decideLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.LoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Planner) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Msg("planner tick panicked")
		}
	}()
	nowWall := p.time.NowWall()
	nowMono := p.time.NowMono()

	due, err := p.store.GetDueFiles(nowWall, nowMono, p.cfg.BatchSize)
	if err != nil {
		logging.Error().Err(err).Msg("get due files")
		return
	}
	if p.collectors != nil {
		p.collectors.DueQueueDepth.Set(float64(len(due)))
	}
	if len(due) == 0 {
		return
	}

	for _, entry := range due {
		action, dispatch := DecideAction(entry, p.cfg.Stability, p.stats, nowWall, nowMono)
		if !dispatch {
			// DecideAction applied a stability defer/reset in place; persist it.
			if err := p.store.Upsert(entry); err != nil {
				logging.Error().Err(err).Str("path", entry.Path).Msg("persist stability defer")
			}
			continue
		}

		select {
		case p.work <- pendingAction{entry: entry, action: action}:
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		}
	}
}

func (p *Planner) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case pa, ok := <-p.work:
			if !ok {
				return
			}
			p.handle(ctx, pa.entry, pa.action)
		}
	}
}

func (p *Planner) handle(ctx context.Context, entry *models.FileEntry, action handlers.Action) {
	h, ok := p.table[action]
	if !ok {
		logging.Warn().Str("action", string(action)).Str("path", entry.Path).Msg("no handler registered for action")
		return
	}

	nowWall := p.time.NowWall()
	nowMono := p.time.NowMono()

	start := time.Now()
	result, err := h.Handle(ctx, handlers.Task{Entry: entry, NowWall: nowWall, NowMono: nowMono})
	elapsed := time.Since(start)

	if p.collectors != nil {
		p.collectors.HandlerDuration.WithLabelValues(string(action)).Observe(elapsed.Seconds())
	}

	if err != nil {
		logging.Error().Err(err).Str("action", string(action)).Str("path", entry.Path).Msg("handler failed")
		if p.collectors != nil {
			p.collectors.HandlerErrors.WithLabelValues(string(action)).Inc()
		}
	}

	// A handler signals "retry later" via Result.Retryable whether or not it
	// also returned a Go error (e.g. an Incomplete integrity check is a
	// retryable outcome with no error) — gate backoff on the former.
	if result.Retryable {
		fresh, lookupErr := p.store.GetByPath(entry.Path)
		if lookupErr == nil && fresh != nil {
			if err := applyBackoff(p.store, p.recorder, p.cfg.Backoff, fresh, nowWall, nowMono); err != nil {
				logging.Error().Err(err).Str("path", entry.Path).Msg("apply backoff")
			}
		}
	}
}

func (p *Planner) maintenanceLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.runMaintenance()
		}
	}
}

func (p *Planner) runMaintenance() {
	nowWall := p.time.NowWall()
	deleted, err := p.store.CleanupOldEntries(nowWall, defaultMaxEntries, defaultKeepDays)
	if err != nil {
		logging.Error().Err(err).Msg("maintenance cleanup")
		return
	}
	if p.collectors != nil && deleted > 0 {
		p.collectors.GCEntriesDeleted.Add(float64(deleted))
	}
	if deleted > materialDeletionThreshold {
		if err := p.store.Vacuum(); err != nil {
			logging.Warn().Err(err).Msg("vacuum after maintenance")
		}
	}
}

const (
	defaultMaxEntries        = 50000
	defaultKeepDays          = 30
	materialDeletionThreshold = 100
)
