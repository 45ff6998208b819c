// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store implements the durable, single-writer state store described
// in SPEC_FULL.md §5.2: file and group entries, atomic transitions, the
// due-queue query, and lease/backoff bookkeeping. It is backed by DuckDB
// through database/sql, with a single process-wide sync.RWMutex
// serializing mutations instead of per-key locks (see DESIGN.md for why
// per-key locking was not reused here).
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/logging"
)

// Store is a single-writer embedded relational store over DuckDB.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex // serializes all mutations; readers may run concurrently
	path string
	ids  int64 // in-process id allocator, seeded from MAX(id) at Open
}

// Options configures Open.
type Options struct {
	// Path is the database file path, or ":memory:" for a transient store
	// (tests and ephemeral runs).
	Path string
}

// Open creates (or reuses) the database file at opts.Path, applies
// migrations, and reclaims any lease left Pending by a prior process --
// monotonic time never survives a restart, so a persisted lease can never
// be meaningfully "still live" once the process that issued it is gone.
func Open(opts Options) (*Store, error) {
	path := opts.Path
	if path == "" {
		path = ":memory:"
	}

	connStr := path
	db, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open duckdb store %s: %w", path, err)
	}

	// DuckDB is single-writer; one connection avoids cross-connection
	// transaction conflicts.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("migrate store %s: %w", path, err)
	}
	if err := s.reclaimAllLeasesAtStartup(); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("reclaim leases at startup: %w", err)
	}
	if err := s.loadIDSequence(); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("load id sequence: %w", err)
	}

	logging.Info().Str("path", path).Msg("state store opened")
	return s, nil
}

func (s *Store) loadIDSequence() error {
	var maxID sql.NullInt64
	row := s.db.QueryRow(`SELECT MAX(id) FROM file_entries`)
	if err := row.Scan(&maxID); err != nil {
		return err
	}
	atomic.StoreInt64(&s.ids, maxID.Int64)
	return nil
}

func (s *Store) nextID() int64 {
	return atomic.AddInt64(&s.ids, 1)
}

// reclaimAllLeasesAtStartup resets any row left in integrity_status='pending'
// from a previous process lifetime back to Unknown, per SPEC_FULL.md §6.2.
func (s *Store) reclaimAllLeasesAtStartup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		UPDATE file_entries
		SET integrity_status = 'unknown', pending_owner = NULL, pending_expires_at_ns = NULL
		WHERE integrity_status = 'pending'`)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func closeQuietly(closer interface{ Close() error }) {
	if closer != nil {
		_ = closer.Close()
	}
}

// --- row <-> FileEntry marshaling -------------------------------------------------

type fileRow struct {
	id                   int64
	path                 string
	groupID              string
	isStereo             bool
	fileDevice           sql.NullInt64
	fileInode            sql.NullInt64
	fileIdentity         sql.NullString
	sizeBytes            int64
	mtime                int64
	firstSeenAt          int64
	updatedAt            int64
	lastChangeAtNs       sql.NullInt64
	stableSinceMonoNs    sql.NullInt64
	stableSince          sql.NullInt64
	nextCheckAt          int64
	integrityStatus      string
	integrityScore       sql.NullFloat64
	integrityModeUsed    sql.NullString
	integrityFailCount   int
	processedStatus      string
	hasEN2               sql.NullBool
	pendingOwner         sql.NullString
	pendingExpiresAtNs   sql.NullInt64
	lastError            sql.NullString
}

const fileColumns = `id, path, group_id, is_stereo, file_device, file_inode, file_identity,
	size_bytes, mtime, first_seen_at, updated_at, last_change_at_ns, stable_since_mono_ns,
	stable_since, next_check_at, integrity_status, integrity_score, integrity_mode_used,
	integrity_fail_count, processed_status, has_en2, pending_owner, pending_expires_at_ns, last_error`

func scanFileRow(scanner interface{ Scan(...any) error }) (fileRow, error) {
	var r fileRow
	err := scanner.Scan(
		&r.id, &r.path, &r.groupID, &r.isStereo, &r.fileDevice, &r.fileInode, &r.fileIdentity,
		&r.sizeBytes, &r.mtime, &r.firstSeenAt, &r.updatedAt, &r.lastChangeAtNs, &r.stableSinceMonoNs,
		&r.stableSince, &r.nextCheckAt, &r.integrityStatus, &r.integrityScore, &r.integrityModeUsed,
		&r.integrityFailCount, &r.processedStatus, &r.hasEN2, &r.pendingOwner, &r.pendingExpiresAtNs, &r.lastError,
	)
	return r, err
}

func (r fileRow) toEntry() *models.FileEntry {
	e := &models.FileEntry{
		ID:                 r.id,
		Path:               r.path,
		GroupID:            r.groupID,
		IsStereo:           r.isStereo,
		SizeBytes:          r.sizeBytes,
		Mtime:              r.mtime,
		FirstSeenAt:        r.firstSeenAt,
		UpdatedAt:          r.updatedAt,
		NextCheckAt:        r.nextCheckAt,
		IntegrityStatus:    models.IntegrityStatus(r.integrityStatus),
		IntegrityFailCount: r.integrityFailCount,
		ProcessedStatus:    models.ProcessedStatus(r.processedStatus),
	}
	if r.fileDevice.Valid {
		v := r.fileDevice.Int64
		e.FileDevice = &v
	}
	if r.fileInode.Valid {
		v := r.fileInode.Int64
		e.FileInode = &v
	}
	if r.fileIdentity.Valid {
		v := r.fileIdentity.String
		e.FileIdentity = &v
	}
	if r.lastChangeAtNs.Valid {
		v := time.Duration(r.lastChangeAtNs.Int64)
		e.LastChangeAt = &v
	}
	if r.stableSinceMonoNs.Valid {
		v := time.Duration(r.stableSinceMonoNs.Int64)
		e.StableSinceMono = &v
	}
	if r.stableSince.Valid {
		v := r.stableSince.Int64
		e.StableSince = &v
	}
	if r.integrityScore.Valid {
		v := r.integrityScore.Float64
		e.IntegrityScore = &v
	}
	if r.integrityModeUsed.Valid {
		v := models.IntegrityMode(r.integrityModeUsed.String)
		e.IntegrityModeUsed = &v
	}
	if r.hasEN2.Valid {
		v := r.hasEN2.Bool
		e.HasEN2 = &v
	}
	if r.pendingOwner.Valid {
		v := r.pendingOwner.String
		e.PendingOwner = &v
	}
	if r.pendingExpiresAtNs.Valid {
		v := time.Duration(r.pendingExpiresAtNs.Int64)
		e.PendingExpiresAt = &v
	}
	if r.lastError.Valid {
		v := r.lastError.String
		e.LastError = &v
	}
	return e
}

func durPtrToNs(d *time.Duration) interface{} {
	if d == nil {
		return nil
	}
	return int64(*d)
}

func int64PtrToAny(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func strPtrToAny(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func float64PtrToAny(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func boolPtrToAny(v *bool) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func modePtrToAny(v *models.IntegrityMode) interface{} {
	if v == nil {
		return nil
	}
	return string(*v)
}

// GetByPath returns the entry stored at path, or (nil, nil) if absent.
func (s *Store) GetByPath(path string) (*models.FileEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`SELECT `+fileColumns+` FROM file_entries WHERE path = ?`, path)
	r, err := scanFileRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get by path %s: %w", path, err)
	}
	return r.toEntry(), nil
}

// GetByIdentity looks up by (device, inode) first, falling back to the
// content-hash identity when device/inode are unavailable.
func (s *Store) GetByIdentity(device, inode *int64, identity *string) (*models.FileEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row *sql.Row
	switch {
	case device != nil && inode != nil:
		row = s.db.QueryRow(`SELECT `+fileColumns+` FROM file_entries WHERE file_device = ? AND file_inode = ?`, *device, *inode)
	case identity != nil:
		row = s.db.QueryRow(`SELECT `+fileColumns+` FROM file_entries WHERE file_identity = ?`, *identity)
	default:
		return nil, nil
	}

	r, err := scanFileRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get by identity: %w", err)
	}
	return r.toEntry(), nil
}

// Upsert inserts or updates e, keyed on path, preserving id on conflict.
func (s *Store) Upsert(e *models.FileEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == 0 {
		existing, err := s.getByPathLocked(e.Path)
		if err != nil {
			return err
		}
		if existing != nil {
			e.ID = existing.ID
		} else {
			e.ID = s.nextID()
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO file_entries (`+fileColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (path) DO UPDATE SET
			group_id = EXCLUDED.group_id,
			is_stereo = EXCLUDED.is_stereo,
			file_device = EXCLUDED.file_device,
			file_inode = EXCLUDED.file_inode,
			file_identity = EXCLUDED.file_identity,
			size_bytes = EXCLUDED.size_bytes,
			mtime = EXCLUDED.mtime,
			updated_at = EXCLUDED.updated_at,
			last_change_at_ns = EXCLUDED.last_change_at_ns,
			stable_since_mono_ns = EXCLUDED.stable_since_mono_ns,
			stable_since = EXCLUDED.stable_since,
			next_check_at = EXCLUDED.next_check_at,
			integrity_status = EXCLUDED.integrity_status,
			integrity_score = EXCLUDED.integrity_score,
			integrity_mode_used = EXCLUDED.integrity_mode_used,
			integrity_fail_count = EXCLUDED.integrity_fail_count,
			processed_status = EXCLUDED.processed_status,
			has_en2 = EXCLUDED.has_en2,
			pending_owner = EXCLUDED.pending_owner,
			pending_expires_at_ns = EXCLUDED.pending_expires_at_ns,
			last_error = EXCLUDED.last_error
	`,
		e.ID, e.Path, e.GroupID, e.IsStereo, int64PtrToAny(e.FileDevice), int64PtrToAny(e.FileInode), strPtrToAny(e.FileIdentity),
		e.SizeBytes, e.Mtime, e.FirstSeenAt, e.UpdatedAt, durPtrToNs(e.LastChangeAt), durPtrToNs(e.StableSinceMono),
		int64PtrToAny(e.StableSince), e.NextCheckAt, string(e.IntegrityStatus), float64PtrToAny(e.IntegrityScore), modePtrToAny(e.IntegrityModeUsed),
		e.IntegrityFailCount, string(e.ProcessedStatus), boolPtrToAny(e.HasEN2), strPtrToAny(e.PendingOwner), durPtrToNs(e.PendingExpiresAt), strPtrToAny(e.LastError),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", e.Path, err)
	}
	return nil
}

// getByPathLocked is GetByPath without acquiring the lock, for callers that
// already hold it (Upsert).
func (s *Store) getByPathLocked(path string) (*models.FileEntry, error) {
	row := s.db.QueryRow(`SELECT `+fileColumns+` FROM file_entries WHERE path = ?`, path)
	r, err := scanFileRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.toEntry(), nil
}

// DeleteByPath removes a row outright (used by CleanupMissing).
func (s *Store) DeleteByPath(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM file_entries WHERE path = ?`, path)
	return err
}
