// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

// Schema setup is additive-only: tables and indexes are created if missing,
// and nothing is ever dropped or renamed (SPEC_FULL.md §5.2). There is no
// per-column step: columns missing from an existing table are not added.

const createFilesTable = `
CREATE TABLE IF NOT EXISTS file_entries (
	id                   BIGINT PRIMARY KEY,
	path                 VARCHAR NOT NULL UNIQUE,
	group_id             VARCHAR NOT NULL,
	is_stereo            BOOLEAN NOT NULL DEFAULT FALSE,
	file_device          BIGINT,
	file_inode           BIGINT,
	file_identity        VARCHAR,
	size_bytes           BIGINT NOT NULL DEFAULT 0,
	mtime                BIGINT NOT NULL DEFAULT 0,
	first_seen_at        BIGINT NOT NULL,
	updated_at           BIGINT NOT NULL,
	last_change_at_ns    BIGINT,
	stable_since_mono_ns BIGINT,
	stable_since         BIGINT,
	next_check_at        BIGINT NOT NULL,
	integrity_status     VARCHAR NOT NULL DEFAULT 'unknown',
	integrity_score      DOUBLE,
	integrity_mode_used  VARCHAR,
	integrity_fail_count INTEGER NOT NULL DEFAULT 0,
	processed_status     VARCHAR NOT NULL DEFAULT 'new',
	has_en2              BOOLEAN,
	pending_owner        VARCHAR,
	pending_expires_at_ns BIGINT,
	last_error           VARCHAR
);`

const createGroupsTable = `
CREATE TABLE IF NOT EXISTS group_entries (
	group_id         VARCHAR PRIMARY KEY,
	delete_original  BOOLEAN NOT NULL DEFAULT FALSE,
	original_present BOOLEAN NOT NULL DEFAULT FALSE,
	stereo_present   BOOLEAN NOT NULL DEFAULT FALSE,
	pair_status      VARCHAR NOT NULL DEFAULT 'none',
	processed_status VARCHAR NOT NULL DEFAULT 'new',
	first_seen_at    BIGINT NOT NULL,
	updated_at       BIGINT NOT NULL
);`

const createSeqFiles = `CREATE SEQUENCE IF NOT EXISTS file_entries_id_seq START 1;`

var createIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_file_next_check ON file_entries(next_check_at);`,
	`CREATE INDEX IF NOT EXISTS idx_file_group_id ON file_entries(group_id);`,
	`CREATE INDEX IF NOT EXISTS idx_file_dev_ino ON file_entries(file_device, file_inode);`,
	`CREATE INDEX IF NOT EXISTS idx_file_identity ON file_entries(file_identity);`,
	`CREATE INDEX IF NOT EXISTS idx_file_processed_status ON file_entries(processed_status);`,
	`CREATE INDEX IF NOT EXISTS idx_file_integrity_status ON file_entries(integrity_status);`,
	`CREATE INDEX IF NOT EXISTS idx_file_lease ON file_entries(pending_owner, pending_expires_at_ns);`,
}

// migrate applies the schema idempotently. Called once at Open.
func (s *Store) migrate() error {
	stmts := append([]string{createSeqFiles, createFilesTable, createGroupsTable}, createIndexes...)
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
