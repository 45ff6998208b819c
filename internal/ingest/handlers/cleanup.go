// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"fmt"

	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/metrics"
)

// CleanupHandler implements CleanupMissing: a file observed missing from
// disk is deleted from the store and its group presence recomputed (spec
// §4.5 step 2, "Missing on disk -> CleanupMissing action").
type CleanupHandler struct {
	store    *store.Store
	recorder *metrics.Recorder
}

func NewCleanupHandler(st *store.Store, recorder *metrics.Recorder) *CleanupHandler {
	return &CleanupHandler{store: st, recorder: recorder}
}

func (h *CleanupHandler) Handle(ctx context.Context, task Task) (Result, error) {
	e := task.Entry

	if err := h.store.DeleteByPath(e.Path); err != nil {
		return Result{Retryable: true}, fmt.Errorf("delete missing entry %s: %w", e.Path, err)
	}
	if err := h.store.UpdateGroupPresence(e.GroupID, task.NowWall); err != nil {
		return Result{Retryable: true}, fmt.Errorf("update group presence after cleanup %s: %w", e.GroupID, err)
	}
	h.recorder.Increment("cleanup_missing.deleted", map[string]string{"path": e.Path})
	return Result{Retryable: false}, nil
}
