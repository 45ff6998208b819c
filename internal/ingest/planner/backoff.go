// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"time"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/metrics"
)

// BackoffConfig parameterizes the linear-with-ceiling policy from spec §4.8.
type BackoffConfig struct {
	Step                time.Duration
	Max                 time.Duration
	QuarantineThreshold int
}

// Delay computes min(step * failCount, max), failCount counted from 1.
func (c BackoffConfig) Delay(failCount int) time.Duration {
	if failCount < 1 {
		failCount = 1
	}
	d := c.Step * time.Duration(failCount)
	if d > c.Max {
		return c.Max
	}
	return d
}

// applyBackoff persists the next_check_at delay for entry after a handler
// failure, emitting the started/resumed metric distinction, and quarantines
// the entry once integrity_fail_count reaches the threshold.
func applyBackoff(st *store.Store, recorder *metrics.Recorder, cfg BackoffConfig, entry *models.FileEntry, nowWall time.Time, nowMono time.Duration) error {
	if entry.IntegrityFailCount >= cfg.QuarantineThreshold && entry.IntegrityStatus != models.IntegrityQuarantined {
		ok, err := st.TransitionIntegrity(entry.Path, entry.IntegrityStatus, models.IntegrityQuarantined, nil, nil, "quarantine threshold reached", nowWall)
		if err != nil {
			return err
		}
		if ok {
			recorder.Increment(metrics.EventQuarantined, map[string]string{"path": entry.Path})
			return st.SetNextCheckAt(entry.Path, nowWall.Add(cfg.Max).Unix(), nowWall)
		}
	}

	delay := cfg.Delay(entry.IntegrityFailCount)
	if entry.IntegrityFailCount <= 1 {
		recorder.Increment(metrics.EventBackoffStarted, map[string]string{"path": entry.Path})
	} else {
		recorder.Increment(metrics.EventBackoffResumed, map[string]string{"path": entry.Path})
	}
	return st.SetNextCheckAt(entry.Path, nowWall.Add(delay).Unix(), nowWall)
}
