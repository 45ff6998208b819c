// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package planner implements the scheduling loop described in spec §4.5:
// pull the due queue, decide the next action for each entry, dispatch to a
// bounded worker pool, and apply backoff/quarantine on handler failure.
package planner

import (
	"time"

	"github.com/tomtom215/stereoingest/internal/ingest/handlers"
	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/ingest/stability"
	"github.com/tomtom215/stereoingest/internal/timeutil"
)

// Decision is the outcome of deciding what a due entry needs next.
type Decision struct {
	Action  handlers.Action
	Dispose bool // true if handled entirely by DecideAction (e.g. deferred), no dispatch needed
}

// DecideAction implements the ordered rule list from spec §4.5 step 2. It
// may mutate entry (stability defers set next_check_at directly) and
// returns the action to dispatch, or ok=false if nothing is due yet.
func DecideAction(entry *models.FileEntry, stabilityCfg stability.Config, stats timeutil.StatProvider, nowWall time.Time, nowMono time.Duration) (handlers.Action, bool) {
	if !stats.Exists(entry.Path) {
		return handlers.ActionCleanupMissing, true
	}

	st, err := stats.Stat(entry.Path)
	if err != nil {
		return handlers.ActionCleanupMissing, true
	}

	if st.Size != entry.SizeBytes || st.Mtime != entry.Mtime {
		stability.Evaluate(stabilityCfg, entry, st.Size, st.Mtime, nowWall, nowMono)
		return "", false
	}

	if entry.StableSinceMono == nil || !stability.IsStable(stabilityCfg, entry, nowMono) {
		stability.Evaluate(stabilityCfg, entry, st.Size, st.Mtime, nowWall, nowMono)
		return "", false
	}

	switch entry.IntegrityStatus {
	case models.IntegrityUnknown, models.IntegrityIncomplete, models.IntegrityError:
		return handlers.ActionIntegrityCheck, true
	}

	if entry.IntegrityStatus == models.IntegrityComplete && entry.ProcessedStatus == models.ProcessedNew && entry.HasEN2 == nil {
		return handlers.ActionAudioProbe, true
	}

	if entry.ProcessedStatus == models.ProcessedConverted || entry.ProcessedStatus == models.ProcessedSkippedHasEn2 {
		return handlers.ActionUpdateGroup, true
	}

	return "", false
}
