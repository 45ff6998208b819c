// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package handlers implements the action handlers the planner dispatches
// to: integrity checking, audio analysis, group finalization triggers, and
// missing-file cleanup (SPEC_FULL.md §5.7). The external collaborators
// named in §1 (the integrity checker, the audio prober, and the downmix
// tool itself) are modeled here purely as interfaces; this package never
// implements them beyond a null/no-op adapter.
package handlers

import (
	"context"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
)

// ExternalIntegrityStatus is the status vocabulary the integrity checker
// speaks, mapped onto models.IntegrityStatus by the handler.
type ExternalIntegrityStatus string

const (
	ExtIntegrityComplete   ExternalIntegrityStatus = "complete"
	ExtIntegrityIncomplete ExternalIntegrityStatus = "incomplete"
	ExtIntegrityCorrupted  ExternalIntegrityStatus = "corrupted"
	ExtIntegrityUnreadable ExternalIntegrityStatus = "unreadable"
	ExtIntegrityUnknown    ExternalIntegrityStatus = "unknown"
)

// IntegrityChecker is the external collaborator that inspects a video file
// for structural completeness. The core treats it as opaque.
type IntegrityChecker interface {
	CheckVideoIntegrity(ctx context.Context, path string, mode models.IntegrityMode) (ExternalIntegrityStatus, *float64, error)
}

// NullIntegrityChecker always reports Unknown, keeping the pipeline idle on
// the integrity axis -- a valid, documented configuration per SPEC_FULL.md §7.
type NullIntegrityChecker struct{}

func (NullIntegrityChecker) CheckVideoIntegrity(context.Context, string, models.IntegrityMode) (ExternalIntegrityStatus, *float64, error) {
	return ExtIntegrityUnknown, nil, nil
}

// AudioStream is one stream record returned by the audio prober.
type AudioStream struct {
	Codec    string
	Channels int
	Language string
	Title    string
}

// AudioProber is the external collaborator that enumerates audio streams in
// a media file. The core never reads media bytes directly.
type AudioProber interface {
	ProbeAudioStreams(ctx context.Context, path string) ([]AudioStream, error)
}

// NullAudioProber always reports no streams.
type NullAudioProber struct{}

func (NullAudioProber) ProbeAudioStreams(context.Context, string) ([]AudioStream, error) {
	return nil, nil
}

// convertIntegrityStatus maps the external vocabulary onto the internal
// enum, per SPEC_FULL.md §7 ("to the integrity checker").
func convertIntegrityStatus(s ExternalIntegrityStatus) models.IntegrityStatus {
	switch s {
	case ExtIntegrityComplete:
		return models.IntegrityComplete
	case ExtIntegrityIncomplete, ExtIntegrityCorrupted:
		return models.IntegrityIncomplete
	case ExtIntegrityUnreadable:
		return models.IntegrityError
	default:
		return models.IntegrityUnknown
	}
}
