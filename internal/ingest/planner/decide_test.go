// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/stereoingest/internal/ingest/handlers"
	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/ingest/stability"
	"github.com/tomtom215/stereoingest/internal/timeutil"
)

func newDecideEntry(now time.Time, sp *timeutil.FakeStatProvider) *models.FileEntry {
	sp.SetFileStats("/w/movie.mkv", 50<<20, now.Unix())
	return models.NewFileEntry("/w/movie.mkv", "grp", false, 50<<20, now.Unix(), nil, nil, nil, now)
}

func TestDecideActionMissingFileCleansUp(t *testing.T) {
	now := time.Unix(1000, 0)
	ts := timeutil.NewFakeTimeSource(now)
	sp := timeutil.NewFakeStatProvider(ts)
	f := newDecideEntry(now, sp)
	sp.RemoveFile("/w/movie.mkv")

	action, ok := DecideAction(f, stability.DefaultConfig(10*time.Second), sp, now, 0)
	require.True(t, ok)
	assert.Equal(t, handlers.ActionCleanupMissing, action)
}

func TestDecideActionDefersWhileUnstable(t *testing.T) {
	now := time.Unix(1000, 0)
	ts := timeutil.NewFakeTimeSource(now)
	sp := timeutil.NewFakeStatProvider(ts)
	f := newDecideEntry(now, sp)

	_, ok := DecideAction(f, stability.DefaultConfig(10*time.Second), sp, now, 0)
	assert.False(t, ok, "must not dispatch before the file has armed and gone stable")
}

func TestDecideActionIntegrityCheckOnceStable(t *testing.T) {
	now := time.Unix(1000, 0)
	ts := timeutil.NewFakeTimeSource(now)
	sp := timeutil.NewFakeStatProvider(ts)
	f := newDecideEntry(now, sp)
	cfg := stability.DefaultConfig(10 * time.Second)
	lastChange := time.Duration(0)
	f.LastChangeAt = &lastChange

	_, ok := DecideAction(f, cfg, sp, now, cfg.ArmDelay)
	require.False(t, ok)
	require.NotNil(t, f.StableSinceMono)

	action, ok := DecideAction(f, cfg, sp, now.Add(cfg.StableWait), cfg.ArmDelay+cfg.StableWait)
	require.True(t, ok)
	assert.Equal(t, handlers.ActionIntegrityCheck, action)
}

func TestDecideActionAudioProbeAfterIntegrityComplete(t *testing.T) {
	now := time.Unix(1000, 0)
	ts := timeutil.NewFakeTimeSource(now)
	sp := timeutil.NewFakeStatProvider(ts)
	f := newDecideEntry(now, sp)
	cfg := stability.DefaultConfig(10 * time.Second)
	armed := cfg.ArmDelay
	f.StableSinceMono = &armed
	f.IntegrityStatus = models.IntegrityComplete

	action, ok := DecideAction(f, cfg, sp, now.Add(cfg.StableWait), armed+cfg.StableWait)
	require.True(t, ok)
	assert.Equal(t, handlers.ActionAudioProbe, action)
}

func TestDecideActionUpdateGroupAfterConversionOutcome(t *testing.T) {
	now := time.Unix(1000, 0)
	ts := timeutil.NewFakeTimeSource(now)
	sp := timeutil.NewFakeStatProvider(ts)
	f := newDecideEntry(now, sp)
	cfg := stability.DefaultConfig(10 * time.Second)
	armed := cfg.ArmDelay
	f.StableSinceMono = &armed
	f.IntegrityStatus = models.IntegrityComplete
	f.ProcessedStatus = models.ProcessedSkippedHasEn2
	hasEN2 := true
	f.HasEN2 = &hasEN2

	action, ok := DecideAction(f, cfg, sp, now.Add(cfg.StableWait), armed+cfg.StableWait)
	require.True(t, ok)
	assert.Equal(t, handlers.ActionUpdateGroup, action)
}

func TestDecideActionNothingDueOnceFullyProcessed(t *testing.T) {
	now := time.Unix(1000, 0)
	ts := timeutil.NewFakeTimeSource(now)
	sp := timeutil.NewFakeStatProvider(ts)
	f := newDecideEntry(now, sp)
	cfg := stability.DefaultConfig(10 * time.Second)
	armed := cfg.ArmDelay
	f.StableSinceMono = &armed
	f.IntegrityStatus = models.IntegrityComplete
	f.ProcessedStatus = models.ProcessedGroupProcessed
	hasEN2 := true
	f.HasEN2 = &hasEN2

	_, ok := DecideAction(f, cfg, sp, now.Add(cfg.StableWait), armed+cfg.StableWait)
	assert.False(t, ok)
}
