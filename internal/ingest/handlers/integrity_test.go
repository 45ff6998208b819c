// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/metrics"
)

type fakeIntegrityChecker struct {
	status ExternalIntegrityStatus
	score  *float64
	err    error
}

func (f fakeIntegrityChecker) CheckVideoIntegrity(ctx context.Context, path string, mode models.IntegrityMode) (ExternalIntegrityStatus, *float64, error) {
	return f.status, f.score, f.err
}

func openHandlerTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.Options{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestIntegrityHandlerMarksCompleteOnSuccess(t *testing.T) {
	st := openHandlerTestStore(t)
	now := time.Unix(1000, 0)
	entry := models.NewFileEntry("/w/movie.mkv", "grp", false, 50<<20, now.Unix(), nil, nil, nil, now)
	require.NoError(t, st.Upsert(entry))

	score := 1.0
	checker := fakeIntegrityChecker{status: ExtIntegrityComplete, score: &score}
	h := NewIntegrityHandler(st, checker, IntegrityHandlerConfig{
		Mode: models.IntegrityModeQuick, Timeout: time.Second, BreakerOpen: time.Second, WorkerName: "w1",
	}, metrics.NewRecorder(24, 100))

	result, err := h.Handle(context.Background(), Task{Entry: entry, NowWall: now})
	require.NoError(t, err)
	assert.False(t, result.Retryable)

	got, err := st.GetByPath("/w/movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, models.IntegrityComplete, got.IntegrityStatus)
}

func TestIntegrityHandlerMarksRetryableOnCheckerError(t *testing.T) {
	st := openHandlerTestStore(t)
	now := time.Unix(1000, 0)
	entry := models.NewFileEntry("/w/movie.mkv", "grp", false, 50<<20, now.Unix(), nil, nil, nil, now)
	require.NoError(t, st.Upsert(entry))

	checker := fakeIntegrityChecker{err: errors.New("checker unavailable")}
	h := NewIntegrityHandler(st, checker, IntegrityHandlerConfig{
		Mode: models.IntegrityModeQuick, Timeout: time.Second, BreakerOpen: time.Second, WorkerName: "w1",
	}, metrics.NewRecorder(24, 100))

	result, err := h.Handle(context.Background(), Task{Entry: entry, NowWall: now})
	require.NoError(t, err)
	assert.True(t, result.Retryable)

	got, err := st.GetByPath("/w/movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, models.IntegrityError, got.IntegrityStatus)
}

func TestIntegrityHandlerSkipsOnLeaseContention(t *testing.T) {
	st := openHandlerTestStore(t)
	now := time.Unix(1000, 0)
	entry := models.NewFileEntry("/w/movie.mkv", "grp", false, 50<<20, now.Unix(), nil, nil, nil, now)
	require.NoError(t, st.Upsert(entry))

	ok, err := st.AcquireLease("/w/movie.mkv", "worker-other", 30*time.Second, 0, now)
	require.NoError(t, err)
	require.True(t, ok)

	checker := fakeIntegrityChecker{status: ExtIntegrityComplete}
	h := NewIntegrityHandler(st, checker, IntegrityHandlerConfig{
		Mode: models.IntegrityModeQuick, Timeout: time.Second, BreakerOpen: time.Second, WorkerName: "w1",
	}, metrics.NewRecorder(24, 100))

	result, err := h.Handle(context.Background(), Task{Entry: entry, NowWall: now})
	require.NoError(t, err)
	assert.False(t, result.Retryable)
	assert.Equal(t, "lease contention", result.Message)
}
