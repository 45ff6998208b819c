// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"fmt"
	"time"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/metrics"
)

// ConversionRecorder accepts the outcome of the external downmix tool
// (spec §4.7, "Conversion itself is delegated to an external collaborator
// ... handlers only record the outcome"). It is invoked out-of-band from
// the planner's own action dispatch -- typically from the status HTTP
// surface's conversion-callback endpoint -- not as a Table entry.
type ConversionRecorder struct {
	store    *store.Store
	recorder *metrics.Recorder
}

func NewConversionRecorder(st *store.Store, recorder *metrics.Recorder) *ConversionRecorder {
	return &ConversionRecorder{store: st, recorder: recorder}
}

// RecordSuccess marks path Converted, having produced a .stereo sibling.
func (c *ConversionRecorder) RecordSuccess(path string, nowWall time.Time) error {
	if err := c.store.UpdateProcessedStatus(path, models.ProcessedConverted, nil, "", nowWall); err != nil {
		return fmt.Errorf("record conversion success %s: %w", path, err)
	}
	c.recorder.Increment("conversion.succeeded", map[string]string{"path": path})
	return nil
}

// RecordFailure marks path ConvertFailed with errMsg, leaving it eligible
// for a future retry via the ConvertFailed -> New transition.
func (c *ConversionRecorder) RecordFailure(path, errMsg string, nowWall time.Time) error {
	if err := c.store.UpdateProcessedStatus(path, models.ProcessedConvertFailed, nil, errMsg, nowWall); err != nil {
		return fmt.Errorf("record conversion failure %s: %w", path, err)
	}
	c.recorder.Increment("conversion.failed", map[string]string{"path": path})
	return nil
}

// RetryFailedConversion moves a ConvertFailed entry back to New so another
// conversion outcome can be recorded for it. It is reached through the
// conversion callback; the planner schedules no action for the entry.
func (c *ConversionRecorder) RetryFailedConversion(path string, nowWall time.Time) error {
	if err := c.store.UpdateProcessedStatus(path, models.ProcessedNew, nil, "", nowWall); err != nil {
		return fmt.Errorf("retry failed conversion %s: %w", path, err)
	}
	return nil
}
