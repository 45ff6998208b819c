// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
)

// farFutureHorizon is added to now_wall when a group finalizes, parking its
// members outside the scheduler's working set (SPEC_FULL.md §5.6).
const farFutureHorizon = 365 * 24 * time.Hour

// GetGroup returns the group row, or (nil, nil) if absent.
func (s *Store) GetGroup(groupID string) (*models.GroupEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getGroupLocked(groupID)
}

func (s *Store) getGroupLocked(groupID string) (*models.GroupEntry, error) {
	row := s.db.QueryRow(`
		SELECT group_id, delete_original, original_present, stereo_present, pair_status, processed_status, first_seen_at, updated_at
		FROM group_entries WHERE group_id = ?`, groupID)
	var g models.GroupEntry
	err := row.Scan(&g.GroupID, &g.DeleteOriginal, &g.OriginalPresent, &g.StereoPresent, &g.PairStatus, &g.ProcessedStatus, &g.FirstSeenAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// EnsureGroup creates the group row on first observation of any member,
// snapshotting deleteOriginal so later policy changes never retroactively
// alter an in-flight group.
func (s *Store) EnsureGroup(groupID string, deleteOriginal bool, nowWall time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getGroupLocked(groupID)
	if err != nil {
		return fmt.Errorf("ensure group lookup %s: %w", groupID, err)
	}
	if existing != nil {
		return nil
	}
	g := models.NewGroupEntry(groupID, deleteOriginal, nowWall)
	_, err = s.db.Exec(`
		INSERT INTO group_entries (group_id, delete_original, original_present, stereo_present, pair_status, processed_status, first_seen_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		g.GroupID, g.DeleteOriginal, g.OriginalPresent, g.StereoPresent, string(g.PairStatus), string(g.ProcessedStatus), g.FirstSeenAt, g.UpdatedAt)
	return err
}

// UpdateGroupPresence recomputes presence flags from member rows, updates
// pair status, and runs the finalization check (SPEC_FULL.md §5.6). It is
// called by the UpdateGroup and CleanupMissing handlers.
func (s *Store) UpdateGroupPresence(groupID string, nowWall time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.getGroupLocked(groupID)
	if err != nil {
		return fmt.Errorf("update group presence lookup %s: %w", groupID, err)
	}
	if g == nil {
		return nil // no group row yet; nothing to recompute
	}

	rows, err := s.db.Query(`
		SELECT is_stereo, processed_status FROM file_entries WHERE group_id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("scan group members %s: %w", groupID, err)
	}
	defer rows.Close()

	var originalPresent, stereoPresent bool
	var originalTerminal, originalSkippedEN2, stereoTerminal bool
	for rows.Next() {
		var isStereo bool
		var processed string
		if err := rows.Scan(&isStereo, &processed); err != nil {
			return err
		}
		status := models.ProcessedStatus(processed)
		terminal := models.ProcessedFinalStates[status]
		if isStereo {
			stereoPresent = true
			if terminal {
				stereoTerminal = true
			}
		} else {
			originalPresent = true
			if terminal {
				originalTerminal = true
			}
			if status == models.ProcessedSkippedHasEn2 {
				originalSkippedEN2 = true
			}
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	g.OriginalPresent = originalPresent
	g.StereoPresent = stereoPresent
	g.Recompute(nowWall)

	finalize := false
	if g.DeleteOriginal {
		finalize = stereoPresent && stereoTerminal
	} else {
		finalize = (originalPresent && stereoPresent && originalTerminal && stereoTerminal) ||
			(originalPresent && !stereoPresent && originalSkippedEN2)
	}

	if finalize {
		g.ProcessedStatus = models.GroupProcessed
	} else if g.ProcessedStatus != models.GroupProcessed && (originalPresent || stereoPresent) {
		g.ProcessedStatus = models.GroupPartial
	}

	if _, err := s.db.Exec(`
		UPDATE group_entries
		SET original_present = ?, stereo_present = ?, pair_status = ?, processed_status = ?, updated_at = ?
		WHERE group_id = ?`,
		g.OriginalPresent, g.StereoPresent, string(g.PairStatus), string(g.ProcessedStatus), g.UpdatedAt, groupID); err != nil {
		return fmt.Errorf("update group row %s: %w", groupID, err)
	}

	if finalize {
		horizon := nowWall.Add(farFutureHorizon).Unix()
		if _, err := s.db.Exec(`
			UPDATE file_entries
			SET processed_status = 'group_processed', next_check_at = ?, updated_at = ?
			WHERE group_id = ? AND processed_status != 'group_processed'`,
			horizon, nowWall.Unix(), groupID); err != nil {
			return fmt.Errorf("finalize group members %s: %w", groupID, err)
		}
	}

	return nil
}
