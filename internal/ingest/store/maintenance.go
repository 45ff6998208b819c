// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tomtom215/stereoingest/internal/logging"
)

// CleanupOldEntries deletes finalized entries older than keepDays, then, if
// still over maxEntries, evicts the oldest remaining rows by updated_at.
// Groups left with no members are purged. Returns the total rows deleted.
func (s *Store) CleanupOldEntries(nowWall time.Time, maxEntries int, keepDays int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := nowWall.Add(-time.Duration(keepDays) * 24 * time.Hour).Unix()
	res, err := s.db.Exec(`
		DELETE FROM file_entries
		WHERE processed_status = 'group_processed' AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old entries by age: %w", err)
	}
	deleted, _ := res.RowsAffected()

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM file_entries`).Scan(&total); err != nil {
		return deleted, fmt.Errorf("count entries: %w", err)
	}

	if total > maxEntries {
		overflow := total - maxEntries
		res, err := s.db.Exec(`
			DELETE FROM file_entries WHERE id IN (
				SELECT id FROM file_entries ORDER BY updated_at ASC LIMIT ?
			)`, overflow)
		if err != nil {
			return deleted, fmt.Errorf("cleanup old entries by cap: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}

	res, err = s.db.Exec(`
		DELETE FROM group_entries
		WHERE group_id NOT IN (SELECT DISTINCT group_id FROM file_entries)`)
	if err != nil {
		return deleted, fmt.Errorf("purge orphan groups: %w", err)
	}
	groupsPurged, _ := res.RowsAffected()

	if deleted > 0 || groupsPurged > 0 {
		logging.Info().Int64("files_deleted", deleted).Int64("groups_purged", groupsPurged).Msg("gc complete")
	}
	return deleted, nil
}

// Vacuum reclaims space after a material number of deletions.
func (s *Store) Vacuum() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == ":memory:" {
		return nil
	}
	_, err := s.db.Exec(`VACUUM`)
	return err
}

// Backup copies the database file verbatim to dest, per SPEC_FULL.md §7
// ("a backup is a plain file copy").
func (s *Store) Backup(dest io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.path == ":memory:" {
		return fmt.Errorf("cannot backup a transient in-memory store")
	}
	src, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open store file for backup: %w", err)
	}
	defer src.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return fmt.Errorf("copy store file for backup: %w", err)
	}
	return nil
}
