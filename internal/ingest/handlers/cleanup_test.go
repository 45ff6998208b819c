// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/metrics"
)

func TestCleanupHandlerDeletesEntryAndUpdatesGroup(t *testing.T) {
	st := openHandlerTestStore(t)
	now := time.Unix(1000, 0)
	require.NoError(t, st.EnsureGroup("grp1", false, now))

	entry := models.NewFileEntry("/w/gone.mkv", "grp1", false, 50<<20, now.Unix(), nil, nil, nil, now)
	require.NoError(t, st.Upsert(entry))

	h := NewCleanupHandler(st, metrics.NewRecorder(24, 100))
	result, err := h.Handle(context.Background(), Task{Entry: entry, NowWall: now})
	require.NoError(t, err)
	assert.False(t, result.Retryable)

	got, err := st.GetByPath("/w/gone.mkv")
	require.NoError(t, err)
	assert.Nil(t, got)
}
