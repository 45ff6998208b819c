// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"time"

	"github.com/tomtom215/stereoingest/internal/config"
	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/metrics"
)

// Deps bundles the external collaborators and shared infrastructure the
// handler table is built from.
type Deps struct {
	Store      *store.Store
	Checker    IntegrityChecker
	Prober     AudioProber
	Recorder   *metrics.Recorder
	Config     *config.Config
	WorkerName string
}

// NewTable builds the action -> handler dispatch table the planner
// consults (SPEC_FULL.md §10, "polymorphic handlers").
func NewTable(d Deps) Table {
	integrityCfg := IntegrityHandlerConfig{
		Mode:        models.IntegrityMode(d.Config.Integrity.Mode),
		Timeout:     d.Config.Integrity.Timeout,
		BreakerOpen: d.Config.Integrity.BreakerOpen,
		WorkerName:  d.WorkerName,
	}
	audioCfg := AudioHandlerConfig{
		Timeout:     d.Config.Audio.Timeout,
		BreakerOpen: d.Config.Audio.BreakerOpen,
	}

	return Table{
		ActionIntegrityCheck: NewIntegrityHandler(d.Store, d.Checker, integrityCfg, d.Recorder),
		ActionAudioProbe:     NewAudioHandler(d.Store, d.Prober, audioCfg, d.Recorder),
		ActionUpdateGroup:    NewGroupHandler(d.Store, d.Recorder),
		ActionCleanupMissing: NewCleanupHandler(d.Store, d.Recorder),
	}
}

// DefaultWorkerTimeout is used when a caller does not supply one, matching
// the integrity lease timeout default.
const DefaultWorkerTimeout = 60 * time.Second
