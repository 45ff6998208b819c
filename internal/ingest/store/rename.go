// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "fmt"

// UpdateIdentityColumns rewrites path, group_id, and is_stereo on the row
// identified by id, preserving every other column -- the rename path
// described in SPEC_FULL.md §5.1: identity is found first, then the path
// (and everything derived from it) is updated in place.
func (s *Store) UpdateIdentityColumns(id int64, newPath, newGroupID string, isStereo bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		UPDATE file_entries
		SET path = ?, group_id = ?, is_stereo = ?
		WHERE id = ?`, newPath, newGroupID, isStereo, id)
	if err != nil {
		return fmt.Errorf("update identity columns id=%d: %w", id, err)
	}
	return nil
}
