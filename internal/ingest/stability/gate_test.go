// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package stability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
)

func newEntry(now time.Time) *models.FileEntry {
	return models.NewFileEntry("/w/movie.mkv", "grp", false, 50<<20, now.Unix(), nil, nil, nil, now)
}

func TestEvaluateChangedResetsArming(t *testing.T) {
	cfg := DefaultConfig(10 * time.Second)
	now := time.Unix(1000, 0)
	f := newEntry(now)

	outcome := Evaluate(cfg, f, 60<<20, now.Unix()+1, now, 0)
	assert.Equal(t, OutcomeChanged, outcome)
	assert.Nil(t, f.StableSinceMono)
	assert.Equal(t, int64(60<<20), f.SizeBytes)
}

func TestEvaluateDoesNotArmBeforeArmDelay(t *testing.T) {
	cfg := DefaultConfig(10 * time.Second)
	now := time.Unix(1000, 0)
	f := newEntry(now)
	lastChange := time.Duration(0)
	f.LastChangeAt = &lastChange

	outcome := Evaluate(cfg, f, f.SizeBytes, f.Mtime, now, 500*time.Millisecond)
	assert.Equal(t, OutcomeDeferred, outcome)
	assert.Nil(t, f.StableSinceMono, "must not arm before ArmDelay has elapsed")
}

func TestEvaluateArmsAfterArmDelay(t *testing.T) {
	cfg := DefaultConfig(10 * time.Second)
	now := time.Unix(1000, 0)
	f := newEntry(now)
	lastChange := time.Duration(0)
	f.LastChangeAt = &lastChange

	outcome := Evaluate(cfg, f, f.SizeBytes, f.Mtime, now, cfg.ArmDelay)
	require.NotNil(t, f.StableSinceMono)
	assert.Equal(t, OutcomeDeferred, outcome, "armed but StableWait has not elapsed yet")
}

func TestEvaluateEligibleAfterStableWait(t *testing.T) {
	cfg := DefaultConfig(10 * time.Second)
	now := time.Unix(1000, 0)
	f := newEntry(now)
	lastChange := time.Duration(0)
	f.LastChangeAt = &lastChange

	_ = Evaluate(cfg, f, f.SizeBytes, f.Mtime, now, cfg.ArmDelay)
	require.NotNil(t, f.StableSinceMono)
	armedAt := *f.StableSinceMono

	outcome := Evaluate(cfg, f, f.SizeBytes, f.Mtime, now.Add(cfg.StableWait), armedAt+cfg.StableWait)
	assert.Equal(t, OutcomeEligible, outcome)
	assert.Equal(t, now.Add(cfg.StableWait).Unix(), f.NextCheckAt)
}

func TestEvaluateReArmsAfterLaterChange(t *testing.T) {
	cfg := DefaultConfig(10 * time.Second)
	now := time.Unix(1000, 0)
	f := newEntry(now)
	lastChange := time.Duration(0)
	f.LastChangeAt = &lastChange

	_ = Evaluate(cfg, f, f.SizeBytes, f.Mtime, now, cfg.ArmDelay)
	require.NotNil(t, f.StableSinceMono)

	outcome := Evaluate(cfg, f, f.SizeBytes+1, f.Mtime+1, now.Add(5*time.Second), cfg.ArmDelay+5*time.Second)
	assert.Equal(t, OutcomeChanged, outcome)
	assert.Nil(t, f.StableSinceMono, "a fresh change must disarm stability")
}

func TestIsStable(t *testing.T) {
	cfg := DefaultConfig(10 * time.Second)
	now := time.Unix(1000, 0)
	f := newEntry(now)
	assert.False(t, IsStable(cfg, f, 0))

	armed := time.Duration(0)
	f.StableSinceMono = &armed
	assert.False(t, IsStable(cfg, f, cfg.StableWait-time.Second))
	assert.True(t, IsStable(cfg, f, cfg.StableWait))
}
