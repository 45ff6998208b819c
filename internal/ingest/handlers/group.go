// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"fmt"

	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/metrics"
)

// GroupHandler implements UpdateGroup: recomputing group presence and
// running the finalization check after a member reaches a terminal or
// near-terminal processed state (spec §4.5 step 2, "UpdateGroup").
type GroupHandler struct {
	store    *store.Store
	recorder *metrics.Recorder
}

func NewGroupHandler(st *store.Store, recorder *metrics.Recorder) *GroupHandler {
	return &GroupHandler{store: st, recorder: recorder}
}

func (h *GroupHandler) Handle(ctx context.Context, task Task) (Result, error) {
	e := task.Entry

	before, err := h.store.GetGroup(e.GroupID)
	if err != nil {
		return Result{Retryable: true}, fmt.Errorf("lookup group %s before update: %w", e.GroupID, err)
	}

	if err := h.store.UpdateGroupPresence(e.GroupID, task.NowWall); err != nil {
		return Result{Retryable: true}, fmt.Errorf("update group presence %s: %w", e.GroupID, err)
	}

	after, err := h.store.GetGroup(e.GroupID)
	if err != nil {
		return Result{Retryable: true}, fmt.Errorf("lookup group %s after update: %w", e.GroupID, err)
	}
	if after != nil && (before == nil || before.ProcessedStatus != after.ProcessedStatus) && after.ProcessedStatus == "group_processed" {
		h.recorder.Increment(metrics.EventGroupFinalized, map[string]string{"group_id": e.GroupID})
	}

	return Result{Retryable: false}, nil
}
