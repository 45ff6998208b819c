// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package discovery implements the core's entry points for the discovery
// walker (named in spec §1 as an external traverser the core is fed by):
// DiscoverFile upserts a single path into the store, and ScanDirectory fans
// out a bounded walk over a directory tree. Path normalization and rename
// detection live alongside (SPEC_FULL.md §5.1).
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
	"github.com/tomtom215/stereoingest/internal/ingest/store"
	"github.com/tomtom215/stereoingest/internal/logging"
	"github.com/tomtom215/stereoingest/internal/timeutil"
)

// Config parameterizes discovery behavior (SPEC_FULL.md §5.10).
type Config struct {
	MinFileSize   int64
	Extensions    []string
	MaxDepth      int
	FanOut        int
	RatePerSecond float64
}

// Walker owns the store and time/stat sources the core's entry points need.
type Walker struct {
	store *store.Store
	time  timeutil.TimeSource
	stats timeutil.StatProvider
	cfg   Config
}

func New(st *store.Store, ts timeutil.TimeSource, sp timeutil.StatProvider, cfg Config) *Walker {
	return &Walker{store: st, time: ts, stats: sp, cfg: cfg}
}

// DiscoverFile upserts path into the store: a fresh entry on first
// observation, an identity-matched rename of an existing entry, or a
// no-op re-observation of an entry already tracked at this path (the
// planner's own due-queue tick is what notices a stat change and runs the
// stability gate; discovery only needs to get the row into existence).
func (w *Walker) DiscoverFile(path string, deleteOriginal bool) error {
	normalized, err := NormalizePath(path)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", path, err)
	}

	if !w.stats.Exists(normalized) {
		return fmt.Errorf("discover %s: file does not exist", normalized)
	}
	st, err := w.stats.Stat(normalized)
	if err != nil {
		return fmt.Errorf("stat %s: %w", normalized, err)
	}

	device, inode, identity, err := models.FileIdentity(normalized)
	if err != nil {
		return fmt.Errorf("identity %s: %w", normalized, err)
	}

	nowWall := w.time.NowWall()
	groupID, isStereo := models.GroupKey(normalized)

	if err := w.store.EnsureGroup(groupID, deleteOriginal, nowWall); err != nil {
		return fmt.Errorf("ensure group %s: %w", groupID, err)
	}

	byPath, err := w.store.GetByPath(normalized)
	if err != nil {
		return fmt.Errorf("lookup by path %s: %w", normalized, err)
	}
	if byPath != nil {
		// Already tracked at this exact path; nothing further to do here.
		return nil
	}

	byIdentity, err := w.store.GetByIdentity(device, inode, identity)
	if err != nil {
		return fmt.Errorf("lookup by identity %s: %w", normalized, err)
	}
	if byIdentity != nil {
		return w.handleRename(byIdentity, normalized, groupID, isStereo)
	}

	entry := models.NewFileEntry(normalized, groupID, isStereo, st.Size, st.Mtime, device, inode, identity, nowWall)
	if err := w.store.Upsert(entry); err != nil {
		return fmt.Errorf("upsert new entry %s: %w", normalized, err)
	}
	logging.Info().Str("path", normalized).Str("group_id", groupID).Bool("is_stereo", isStereo).Msg("discovered new file")
	return nil
}

// handleRename rewrites the identity-matched row's path/group_id/is_stereo
// in place, preserving stability, integrity, and processing state (spec
// §3 invariant 3).
func (w *Walker) handleRename(entry *models.FileEntry, newPath, newGroupID string, isStereo bool) error {
	if err := w.store.UpdateIdentityColumns(entry.ID, newPath, newGroupID, isStereo); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", entry.Path, newPath, err)
	}
	logging.Info().Str("old_path", entry.Path).Str("new_path", newPath).Msg("rename detected, identity preserved")
	return nil
}

// ScanDirectory walks root, to the depth set by the Walker's Config.MaxDepth
// (0 means no limit), calling DiscoverFile for every
// extension-matching, size-qualifying file, bounded by a rate-limited
// semaphore so a huge tree cannot overwhelm the store's single writer.
func (w *Walker) ScanDirectory(ctx context.Context, root string, deleteOriginal bool) error {
	limiter := rate.NewLimiter(rate.Limit(w.cfg.RatePerSecond), w.cfg.FanOut)
	sem := make(chan struct{}, w.cfg.FanOut)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort traversal; unreadable subtrees are skipped, not fatal
		}
		if d.IsDir() {
			depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
			if w.cfg.MaxDepth > 0 && depth >= w.cfg.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.hasQualifyingExtension(path) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(p string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if err := w.discoverIfQualifying(p, deleteOriginal); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				logging.Warn().Err(err).Str("path", p).Msg("discover during scan failed")
			}
		}(path)
		return nil
	})

	wg.Wait()
	if walkErr != nil {
		return fmt.Errorf("walk %s: %w", root, walkErr)
	}
	return firstErr
}

func (w *Walker) discoverIfQualifying(path string, deleteOriginal bool) error {
	st, err := w.stats.Stat(path)
	if err != nil {
		return nil // vanished between walk and stat; next scan will reconcile
	}
	if st.Size < w.cfg.MinFileSize {
		return nil
	}
	return w.DiscoverFile(path, deleteOriginal)
}

func (w *Walker) hasQualifyingExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.cfg.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// retryDelay is a small pause used by the fsnotify watcher between a
// create/write event and the first DiscoverFile attempt, giving a
// still-being-created file a moment to exist on disk.
const retryDelay = 50 * time.Millisecond
