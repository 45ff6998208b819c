// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"fmt"
	"time"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/logging"
)

// GetDueFiles returns entries whose next_check_at has arrived and which are
// not under a live Pending lease, ordered by next_check_at ascending.
// Expired leases observed along the way are proactively cleared to Unknown
// (testable property 5).
func (s *Store) GetDueFiles(nowWall time.Time, nowMono time.Duration, limit int) ([]*models.FileEntry, error) {
	s.mu.Lock() // due-queue scanning may clear expired leases; take the writer lock
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT `+fileColumns+` FROM file_entries
		WHERE next_check_at <= ?
		  AND (integrity_status != 'pending'
		       OR pending_expires_at_ns IS NULL
		       OR pending_expires_at_ns <= ?
		       OR pending_owner IS NULL)
		ORDER BY next_check_at ASC
		LIMIT ?`, nowWall.Unix(), int64(nowMono), limit)
	if err != nil {
		return nil, fmt.Errorf("query due files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileEntry
	var expiredIDs []int64
	for rows.Next() {
		r, err := scanFileRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due file: %w", err)
		}
		e := r.toEntry()
		if e.IntegrityStatus == models.IntegrityPending {
			expiredIDs = append(expiredIDs, e.ID)
			e.IntegrityStatus = models.IntegrityUnknown
			e.PendingOwner = nil
			e.PendingExpiresAt = nil
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range expiredIDs {
		if _, err := s.db.Exec(`
			UPDATE file_entries
			SET integrity_status = 'unknown', pending_owner = NULL, pending_expires_at_ns = NULL
			WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("clear expired lease id=%d: %w", id, err)
		}
		logging.Info().Int64("id", id).Msg("lease expired, reclaimed to unknown")
	}

	return result, nil
}

// CleanupExpiredLeases bulk-reclaims any Pending row whose lease has expired.
// Returns the number of rows reclaimed.
func (s *Store) CleanupExpiredLeases(nowMono time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE file_entries
		SET integrity_status = 'unknown', pending_owner = NULL, pending_expires_at_ns = NULL
		WHERE integrity_status = 'pending'
		  AND (pending_expires_at_ns IS NULL OR pending_expires_at_ns <= ?)`, int64(nowMono))
	if err != nil {
		return 0, fmt.Errorf("cleanup expired leases: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
