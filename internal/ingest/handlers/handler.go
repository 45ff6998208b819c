// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"time"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
)

// Action tags the kind of work a Task represents. The planner decides which
// action a due entry needs (SPEC_FULL.md §5.5); handlers never make that
// decision themselves.
type Action string

const (
	ActionIntegrityCheck Action = "integrity_check"
	ActionAudioProbe     Action = "audio_probe"
	ActionUpdateGroup    Action = "update_group"
	ActionCleanupMissing Action = "cleanup_missing"
)

// Task is the unit of work dispatched to a Handler.
type Task struct {
	Entry   *models.FileEntry
	NowWall time.Time
	NowMono time.Duration
}

// Result reports what a Handler did, for the planner's backoff/quarantine
// bookkeeping and metrics.
type Result struct {
	Retryable bool // true if failure should count toward backoff, not quarantine-only
	Message   string
}

// Handler processes one Task for one Action. Handlers own their own
// store writes; the planner only decides whether to call them and how to
// treat a returned error (SPEC_FULL.md §10, "polymorphic handlers").
type Handler interface {
	Handle(ctx context.Context, task Task) (Result, error)
}

// Table is the action -> handler dispatch table built by NewTable.
type Table map[Action]Handler
