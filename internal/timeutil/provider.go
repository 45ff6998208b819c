// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package timeutil injects wall-clock time, monotonic time, and file stat
// results behind small interfaces so the ingest core is deterministic under
// test. Decisions that matter for correctness (stability, leases, backoff)
// are always taken against the monotonic source; the wall source is used
// only for display and for next_check_at values persisted to the store.
package timeutil

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// FileStats is the subset of filesystem metadata the core cares about.
type FileStats struct {
	Size  int64
	Mtime int64 // wall time, epoch seconds
}

// TimeSource abstracts wall and monotonic clocks.
type TimeSource interface {
	NowWall() time.Time
	NowMono() time.Duration
}

// StatProvider abstracts filesystem stat calls.
type StatProvider interface {
	Stat(path string) (FileStats, error)
	Exists(path string) bool
}

// SystemTimeSource is the production TimeSource.
type SystemTimeSource struct{ start time.Time }

// NewSystemTimeSource returns a TimeSource backed by the OS clock. The
// monotonic value returned by NowMono is relative to the moment this
// source was constructed, matching time.Since semantics.
func NewSystemTimeSource() *SystemTimeSource {
	return &SystemTimeSource{start: time.Now()}
}

func (s *SystemTimeSource) NowWall() time.Time     { return time.Now() }
func (s *SystemTimeSource) NowMono() time.Duration { return time.Since(s.start) }

// SystemStatProvider is the production StatProvider.
type SystemStatProvider struct{}

func NewSystemStatProvider() SystemStatProvider { return SystemStatProvider{} }

func (SystemStatProvider) Stat(path string) (FileStats, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FileStats{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return FileStats{Size: fi.Size(), Mtime: fi.ModTime().Unix()}, nil
}

func (SystemStatProvider) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FakeTimeSource is a settable TimeSource for deterministic tests.
type FakeTimeSource struct {
	mu   sync.Mutex
	wall time.Time
	mono time.Duration
}

// NewFakeTimeSource returns a FakeTimeSource starting at wall (or time.Now()
// if zero) with monotonic time at zero.
func NewFakeTimeSource(wall time.Time) *FakeTimeSource {
	if wall.IsZero() {
		wall = time.Now()
	}
	return &FakeTimeSource{wall: wall}
}

func (f *FakeTimeSource) NowWall() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wall
}

func (f *FakeTimeSource) NowMono() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mono
}

// Advance moves both clocks forward by d in lockstep.
func (f *FakeTimeSource) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wall = f.wall.Add(d)
	f.mono += d
}

// SetWall sets wall time only, simulating an NTP step or DST jump without
// affecting monotonic-time-derived decisions.
func (f *FakeTimeSource) SetWall(wall time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wall = wall
}

// SetMono sets monotonic time directly.
func (f *FakeTimeSource) SetMono(mono time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mono = mono
}

// FakeStatProvider is a settable StatProvider for deterministic tests.
type FakeStatProvider struct {
	mu     sync.Mutex
	ts     TimeSource
	stats  map[string]FileStats
	exists map[string]bool
}

// NewFakeStatProvider returns a FakeStatProvider whose default mtimes are
// derived from ts when not explicitly set via SetFileStats.
func NewFakeStatProvider(ts TimeSource) *FakeStatProvider {
	return &FakeStatProvider{
		ts:     ts,
		stats:  make(map[string]FileStats),
		exists: make(map[string]bool),
	}
}

func (f *FakeStatProvider) Stat(path string) (FileStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists[path] {
		return FileStats{}, fmt.Errorf("fake file not found: %s", path)
	}
	if st, ok := f.stats[path]; ok {
		return st, nil
	}
	return FileStats{Size: 0, Mtime: f.ts.NowWall().Unix()}, nil
}

func (f *FakeStatProvider) Exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists[path]
}

// SetFileStats registers (or replaces) a fake file's size and mtime. A
// zero mtime is filled in from the time source's current wall time.
func (f *FakeStatProvider) SetFileStats(path string, size int64, mtime int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mtime == 0 {
		mtime = f.ts.NowWall().Unix()
	}
	f.stats[path] = FileStats{Size: size, Mtime: mtime}
	f.exists[path] = true
}

// UpdateFileSize simulates an in-progress write: bumps size and refreshes
// mtime to the time source's current wall time.
func (f *FakeStatProvider) UpdateFileSize(path string, newSize int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists[path] {
		return
	}
	f.stats[path] = FileStats{Size: newSize, Mtime: f.ts.NowWall().Unix()}
}

// RemoveFile simulates deletion.
func (f *FakeStatProvider) RemoveFile(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.exists, path)
	delete(f.stats, path)
}

// RenameFile simulates a rename while preserving stats, matching how a
// real filesystem rename leaves size/mtime untouched.
func (f *FakeStatProvider) RenameFile(oldPath, newPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists[oldPath] {
		return
	}
	if st, ok := f.stats[oldPath]; ok {
		f.stats[newPath] = st
	}
	f.exists[newPath] = true
	delete(f.exists, oldPath)
	delete(f.stats, oldPath)
}
