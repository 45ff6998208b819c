// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/stereoingest/internal/ingest/handlers"
	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/ingest/stability"
	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/metrics"
	"github.com/tomtom215/stereoingest/internal/timeutil"
)

type countingHandler struct {
	calls int32
}

func (h *countingHandler) Handle(ctx context.Context, task handlers.Task) (handlers.Result, error) {
	atomic.AddInt32(&h.calls, 1)
	return handlers.Result{}, nil
}

type funcHandler func(ctx context.Context, task handlers.Task) (handlers.Result, error)

func (f funcHandler) Handle(ctx context.Context, task handlers.Task) (handlers.Result, error) {
	return f(ctx, task)
}

func TestPlannerLifecycleDispatchesDueEntry(t *testing.T) {
	st, err := store.Open(store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	now := time.Unix(1000, 0)
	entry := models.NewFileEntry("/w/movie.mkv", "grp", false, 50<<20, now.Unix(), nil, nil, nil, now)
	entry.IntegrityStatus = models.IntegrityComplete
	armed := time.Duration(0)
	entry.StableSinceMono = &armed
	hasEN2 := true
	entry.HasEN2 = &hasEN2
	entry.ProcessedStatus = models.ProcessedSkippedHasEn2
	require.NoError(t, st.Upsert(entry))

	ts := timeutil.NewFakeTimeSource(now)
	ts.SetMono(10 * time.Second) // armed at mono 0, so the 10s StableWait has elapsed
	sp := timeutil.NewFakeStatProvider(ts)
	sp.SetFileStats("/w/movie.mkv", entry.SizeBytes, entry.Mtime)

	h := &countingHandler{}
	table := handlers.Table{handlers.ActionUpdateGroup: h}

	cfg := Config{
		BatchSize:           10,
		LoopInterval:        5 * time.Millisecond,
		IdleSleepCap:        time.Second,
		MaintenanceInterval: time.Hour,
		WorkerCount:         1,
		Stability:           stability.DefaultConfig(10 * time.Second),
		Backoff:             BackoffConfig{Step: time.Second, Max: time.Minute, QuarantineThreshold: 10},
	}
	recorder := metrics.NewRecorder(24, 100)
	pl := New(st, table, cfg, ts, sp, recorder, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, pl.Start(ctx))
	defer func() { _ = pl.Stop() }()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&h.calls) >= 1
	}, time.Second, 5*time.Millisecond, "planner must dispatch the due entry to its registered handler")
}

func TestPlannerAppliesBackoffOnRetryableResultWithNilError(t *testing.T) {
	st, err := store.Open(store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	now := time.Unix(1000, 0)
	entry := models.NewFileEntry("/w/movie.mkv", "grp", false, 50<<20, now.Unix(), nil, nil, nil, now)
	entry.IntegrityFailCount = 1
	require.NoError(t, st.Upsert(entry))

	ts := timeutil.NewFakeTimeSource(now)
	sp := timeutil.NewFakeStatProvider(ts)

	h := funcHandler(func(ctx context.Context, task handlers.Task) (handlers.Result, error) {
		return handlers.Result{Retryable: true}, nil
	})
	table := handlers.Table{handlers.ActionIntegrityCheck: h}

	cfg := Config{
		BatchSize:           10,
		LoopInterval:        5 * time.Millisecond,
		IdleSleepCap:        time.Second,
		MaintenanceInterval: time.Hour,
		WorkerCount:         1,
		Stability:           stability.DefaultConfig(10 * time.Second),
		Backoff:             BackoffConfig{Step: 30 * time.Second, Max: 600 * time.Second, QuarantineThreshold: 10},
	}
	recorder := metrics.NewRecorder(24, 100)
	pl := New(st, table, cfg, ts, sp, recorder, nil)

	pl.handle(context.Background(), entry, handlers.ActionIntegrityCheck)

	got, err := st.GetByPath("/w/movie.mkv")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, now.Add(30*time.Second).Unix(), got.NextCheckAt,
		"a retryable result with a nil error must still be backed off, not left due")
}

func TestPlannerStartTwiceFails(t *testing.T) {
	st, err := store.Open(store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	now := time.Unix(1000, 0)
	ts := timeutil.NewFakeTimeSource(now)
	sp := timeutil.NewFakeStatProvider(ts)
	cfg := Config{
		BatchSize: 1, LoopInterval: time.Hour, IdleSleepCap: time.Hour,
		MaintenanceInterval: time.Hour, WorkerCount: 1,
		Stability: stability.DefaultConfig(10 * time.Second),
		Backoff:   BackoffConfig{Step: time.Second, Max: time.Minute, QuarantineThreshold: 10},
	}
	recorder := metrics.NewRecorder(24, 100)
	pl := New(st, handlers.Table{}, cfg, ts, sp, recorder, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, pl.Start(ctx))
	defer func() { _ = pl.Stop() }()

	assert.Error(t, pl.Start(ctx))
}
