// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"fmt"
	"time"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
)

// AcquireLease sets integrity_status=Pending and claims the lease for
// worker, only if no live lease currently exists on the row. Returns false
// (no error) if the row is gone or a live lease is held; returns an
// InvariantError if the current status does not permit a Pending transition.
func (s *Store) AcquireLease(path, worker string, timeout time.Duration, nowMono time.Duration, nowWall time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.getByPathLocked(path)
	if err != nil {
		return false, fmt.Errorf("acquire lease lookup %s: %w", path, err)
	}
	if e == nil {
		return false, nil
	}
	if e.HasLiveLease(nowMono) {
		return false, nil
	}
	if err := models.ValidateIntegrityTransition(e.IntegrityStatus, models.IntegrityPending); err != nil {
		return false, err
	}

	expires := nowMono + timeout
	_, err = s.db.Exec(`
		UPDATE file_entries
		SET integrity_status = 'pending', pending_owner = ?, pending_expires_at_ns = ?, updated_at = ?
		WHERE path = ?`, worker, int64(expires), nowWall.Unix(), path)
	if err != nil {
		return false, fmt.Errorf("acquire lease update %s: %w", path, err)
	}
	return true, nil
}

// ReleaseLease clears the lease and applies newStatus, only if worker still
// owns it. Returns false if the CAS lost (another worker reclaimed it, or
// the lease already expired and was cleared by GetDueFiles/CleanupExpiredLeases).
func (s *Store) ReleaseLease(path, worker string, newStatus models.IntegrityStatus, score *float64, mode *models.IntegrityMode, errMsg string, nowWall time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.getByPathLocked(path)
	if err != nil {
		return false, fmt.Errorf("release lease lookup %s: %w", path, err)
	}
	if e == nil {
		return false, nil
	}
	if e.IntegrityStatus != models.IntegrityPending || e.PendingOwner == nil || *e.PendingOwner != worker {
		return false, nil
	}
	if newStatus == models.IntegrityUnknown {
		// No verdict: hand the row back the way lease reclaim does.
		e.IntegrityStatus = models.IntegrityUnknown
		e.UpdatedAt = nowWall.Unix()
	} else if err := e.UpdateIntegrityStatus(newStatus, score, mode, errMsg, nowWall); err != nil {
		return false, err
	}
	e.PendingOwner = nil
	e.PendingExpiresAt = nil

	_, err = s.db.Exec(`
		UPDATE file_entries
		SET integrity_status = ?, integrity_score = ?, integrity_mode_used = ?, integrity_fail_count = ?,
		    last_error = ?, pending_owner = NULL, pending_expires_at_ns = NULL, updated_at = ?
		WHERE path = ?`,
		string(e.IntegrityStatus), float64PtrToAny(e.IntegrityScore), modePtrToAny(e.IntegrityModeUsed), e.IntegrityFailCount,
		strPtrToAny(e.LastError), e.UpdatedAt, path)
	if err != nil {
		return false, fmt.Errorf("release lease update %s: %w", path, err)
	}
	return true, nil
}

// TransitionIntegrity applies a CAS-style integrity transition keyed on the
// current status, avoiding lost updates from concurrent callers.
func (s *Store) TransitionIntegrity(path string, from, to models.IntegrityStatus, score *float64, mode *models.IntegrityMode, errMsg string, nowWall time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.getByPathLocked(path)
	if err != nil {
		return false, fmt.Errorf("transition lookup %s: %w", path, err)
	}
	if e == nil || e.IntegrityStatus != from {
		return false, nil
	}
	if err := e.UpdateIntegrityStatus(to, score, mode, errMsg, nowWall); err != nil {
		return false, err
	}

	res, err := s.db.Exec(`
		UPDATE file_entries
		SET integrity_status = ?, integrity_score = ?, integrity_mode_used = ?, integrity_fail_count = ?,
		    last_error = ?, updated_at = ?
		WHERE path = ? AND integrity_status = ?`,
		string(e.IntegrityStatus), float64PtrToAny(e.IntegrityScore), modePtrToAny(e.IntegrityModeUsed), e.IntegrityFailCount,
		strPtrToAny(e.LastError), e.UpdatedAt, path, string(from))
	if err != nil {
		return false, fmt.Errorf("transition update %s: %w", path, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetNextCheckAt is a focused update for cases (backoff, stability defer,
// parking) that only need to move the schedule without touching status.
func (s *Store) SetNextCheckAt(path string, nextCheckAt int64, nowWall time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE file_entries SET next_check_at = ?, updated_at = ? WHERE path = ?`, nextCheckAt, nowWall.Unix(), path)
	return err
}

// SetHasEN2 is a focused update for audio-probe outcomes that leave
// ProcessedStatus unchanged (a multichannel English stream found on a New
// entry stays New, pending conversion) and so must not round-trip the
// status through ValidateProcessedTransition.
func (s *Store) SetHasEN2(path string, hasEN2 bool, nowWall time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.getByPathLocked(path)
	if err != nil {
		return fmt.Errorf("set has_en2 lookup %s: %w", path, err)
	}
	if e == nil {
		return fmt.Errorf("set has_en2: no such path %s", path)
	}
	e.SetHasEN2(hasEN2, nowWall)
	_, err = s.db.Exec(`
		UPDATE file_entries
		SET has_en2 = ?, updated_at = ?
		WHERE path = ?`, boolPtrToAny(e.HasEN2), e.UpdatedAt, path)
	return err
}

// UpdateProcessedStatus validates and persists a processed-status transition.
func (s *Store) UpdateProcessedStatus(path string, status models.ProcessedStatus, hasEN2 *bool, errMsg string, nowWall time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.getByPathLocked(path)
	if err != nil {
		return fmt.Errorf("update processed status lookup %s: %w", path, err)
	}
	if e == nil {
		return fmt.Errorf("update processed status: no such path %s", path)
	}
	if err := e.UpdateProcessedStatus(status, hasEN2, errMsg, nowWall); err != nil {
		return err
	}
	_, err = s.db.Exec(`
		UPDATE file_entries
		SET processed_status = ?, has_en2 = ?, last_error = ?, updated_at = ?
		WHERE path = ?`, string(e.ProcessedStatus), boolPtrToAny(e.HasEN2), strPtrToAny(e.LastError), e.UpdatedAt, path)
	return err
}
