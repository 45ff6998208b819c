// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"fmt"
	"time"
)

// FileEntry is one row per filesystem path tracked by the core. See
// SPEC_FULL.md §4 for the authoritative field-by-field description.
type FileEntry struct {
	ID      int64
	Path    string
	GroupID string
	IsStereo bool

	// POSIX identity; FileIdentity is the content-hash fallback.
	FileDevice   *int64
	FileInode    *int64
	FileIdentity *string

	SizeBytes int64
	Mtime     int64 // wall time, epoch seconds

	FirstSeenAt int64 // wall time
	UpdatedAt   int64 // wall time

	LastChangeAt    *time.Duration // monotonic
	StableSinceMono *time.Duration // monotonic; nil while unstable
	StableSince     *int64         // wall-time mirror, reporting only

	NextCheckAt int64 // wall time

	IntegrityStatus    IntegrityStatus
	IntegrityScore     *float64
	IntegrityModeUsed  *IntegrityMode
	IntegrityFailCount int

	ProcessedStatus ProcessedStatus
	HasEN2          *bool

	PendingOwner     *string
	PendingExpiresAt *time.Duration // monotonic

	LastError *string
}

// IsDueForCheck reports whether the entry's next_check_at has arrived.
func (f *FileEntry) IsDueForCheck(nowWall time.Time) bool {
	return f.NextCheckAt <= nowWall.Unix()
}

// IsQuarantined reports whether the entry is currently parked in Quarantined.
func (f *FileEntry) IsQuarantined() bool {
	return f.IntegrityStatus == IntegrityQuarantined
}

// HasLiveLease reports whether the entry is under an unexpired Pending lease.
func (f *FileEntry) HasLiveLease(nowMono time.Duration) bool {
	return f.IntegrityStatus == IntegrityPending &&
		f.PendingOwner != nil &&
		f.PendingExpiresAt != nil &&
		*f.PendingExpiresAt > nowMono
}

// UpdateIntegrityStatus validates and applies an integrity transition,
// maintaining the fail-count/last-error bookkeeping described in §4.
func (f *FileEntry) UpdateIntegrityStatus(status IntegrityStatus, score *float64, mode *IntegrityMode, errMsg string, nowWall time.Time) error {
	if err := ValidateIntegrityTransition(f.IntegrityStatus, status); err != nil {
		return err
	}
	if score != nil && (*score < 0 || *score > 1) {
		return fmt.Errorf("integrity_score out of range [0,1]: %v", *score)
	}

	f.IntegrityStatus = status
	f.UpdatedAt = nowWall.Unix()
	if score != nil {
		f.IntegrityScore = score
	}
	if mode != nil {
		f.IntegrityModeUsed = mode
	}

	switch status {
	case IntegrityIncomplete, IntegrityError:
		f.IntegrityFailCount++
		if errMsg != "" {
			f.LastError = &errMsg
		}
	case IntegrityComplete:
		f.IntegrityFailCount = 0
		f.LastError = nil
	}
	return nil
}

// SetHasEN2 records the audio-probe verdict without moving ProcessedStatus.
// Used when the probe result doesn't change the processing state itself
// (e.g. a multichannel English stream stays New, pending conversion).
func (f *FileEntry) SetHasEN2(hasEN2 bool, nowWall time.Time) {
	f.HasEN2 = &hasEN2
	f.UpdatedAt = nowWall.Unix()
}

// UpdateProcessedStatus validates and applies a processed-status transition.
func (f *FileEntry) UpdateProcessedStatus(status ProcessedStatus, hasEN2 *bool, errMsg string, nowWall time.Time) error {
	if err := ValidateProcessedTransition(f.ProcessedStatus, status); err != nil {
		return err
	}
	f.ProcessedStatus = status
	f.UpdatedAt = nowWall.Unix()
	if hasEN2 != nil {
		f.HasEN2 = hasEN2
	}
	switch status {
	case ProcessedConvertFailed:
		if errMsg != "" {
			f.LastError = &errMsg
		}
	case ProcessedConverted, ProcessedSkippedHasEn2:
		f.LastError = nil
	}
	return nil
}

// ApplyStatReset performs the full invariant-4 reset triggered by an
// observed size or mtime change, and reports whether anything changed.
func (f *FileEntry) ApplyStatReset(sizeBytes, mtime int64, nowWall time.Time, nowMono time.Duration, resetDelay time.Duration) bool {
	if f.SizeBytes == sizeBytes && f.Mtime == mtime {
		if f.LastChangeAt == nil {
			m := nowMono
			f.LastChangeAt = &m
		}
		return false
	}

	f.SizeBytes = sizeBytes
	f.Mtime = mtime
	m := nowMono
	f.LastChangeAt = &m

	f.StableSince = nil
	f.StableSinceMono = nil
	f.IntegrityStatus = IntegrityUnknown
	f.IntegrityScore = nil
	f.IntegrityModeUsed = nil
	f.IntegrityFailCount = 0
	f.ProcessedStatus = ProcessedNew
	f.HasEN2 = nil
	f.LastError = nil

	f.NextCheckAt = nowWall.Add(resetDelay).Unix()
	f.UpdatedAt = nowWall.Unix()
	return true
}

// GroupEntry is one row per group_id -- see SPEC_FULL.md §4.
type GroupEntry struct {
	GroupID        string
	DeleteOriginal bool // policy snapshot taken at group creation

	OriginalPresent bool
	StereoPresent   bool
	PairStatus      PairStatus

	ProcessedStatus GroupProcessedStatus

	FirstSeenAt int64
	UpdatedAt   int64
}

// Recompute derives pair status from member presence (invariant 5).
func (g *GroupEntry) Recompute(nowWall time.Time) {
	g.PairStatus = DerivePairStatus(g.OriginalPresent, g.StereoPresent)
	g.UpdatedAt = nowWall.Unix()
}

// NewFileEntry constructs a FileEntry with the fields derivable purely from
// path + stat + identity, matching create_file_entry_from_path.
func NewFileEntry(path, groupID string, isStereo bool, sizeBytes, mtime int64, device, inode *int64, identity *string, nowWall time.Time) *FileEntry {
	now := nowWall.Unix()
	return &FileEntry{
		Path:               path,
		GroupID:            groupID,
		IsStereo:           isStereo,
		SizeBytes:          sizeBytes,
		Mtime:              mtime,
		FileDevice:         device,
		FileInode:          inode,
		FileIdentity:       identity,
		FirstSeenAt:        now,
		UpdatedAt:          now,
		NextCheckAt:        now,
		IntegrityStatus:    IntegrityUnknown,
		ProcessedStatus:    ProcessedNew,
		IntegrityFailCount: 0,
	}
}

// NewGroupEntry constructs a fresh GroupEntry snapshotting deleteOriginal.
func NewGroupEntry(groupID string, deleteOriginal bool, nowWall time.Time) *GroupEntry {
	now := nowWall.Unix()
	return &GroupEntry{
		GroupID:         groupID,
		DeleteOriginal:  deleteOriginal,
		PairStatus:      PairNone,
		ProcessedStatus: GroupNew,
		FirstSeenAt:     now,
		UpdatedAt:       now,
	}
}
