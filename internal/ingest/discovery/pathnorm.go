// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package discovery

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// caseSensitivityCache memoizes the per-directory probe result so repeated
// discovery calls in the same directory never re-probe (the original's
// filesystem_is_case_sensitive is an lru_cache; this is its Go analogue).
var caseSensitivityCache sync.Map // map[string]bool

// filesystemIsCaseSensitive probes dir by creating two temp files differing
// only in case. Unix filesystems are case-sensitive by default; the probe
// exists to catch case-insensitive mounts (e.g. a network share or an
// exFAT/NTFS mount) regardless of host platform.
func filesystemIsCaseSensitive(dir string) bool {
	if v, ok := caseSensitivityCache.Load(dir); ok {
		return v.(bool)
	}

	sensitive := probeCaseSensitivity(dir)
	caseSensitivityCache.Store(dir, sensitive)
	return sensitive
}

func probeCaseSensitivity(dir string) bool {
	tmp, err := os.MkdirTemp(dir, "casecheck-*")
	if err != nil {
		return runtime.GOOS != "windows" && runtime.GOOS != "darwin"
	}
	defer os.RemoveAll(tmp)

	upper := filepath.Join(tmp, "CaseSensitivityTest.tmp")
	lower := filepath.Join(tmp, "casesensitivitytest.tmp")

	if err := os.WriteFile(upper, []byte("upper"), 0o600); err != nil {
		return runtime.GOOS != "windows" && runtime.GOOS != "darwin"
	}
	if err := os.WriteFile(lower, []byte("lower"), 0o600); err != nil {
		return false
	}

	upperContent, errU := os.ReadFile(upper)
	lowerContent, errL := os.ReadFile(lower)
	if errU != nil || errL != nil {
		return false
	}
	return string(upperContent) != string(lowerContent)
}

// NormalizePath resolves path to an absolute, symlink-resolved form and
// case-folds it when the containing filesystem is case-insensitive, so two
// paths are equivalent iff their normalized forms are byte-equal.
func NormalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The file may not exist yet (e.g. mid-rename probe); fall back to
		// the absolute, cleaned form rather than failing discovery outright.
		resolved = filepath.Clean(abs)
	}

	dir := filepath.Dir(resolved)
	if !filesystemIsCaseSensitive(dir) {
		resolved = strings.ToLower(resolved)
	}
	return resolved, nil
}

// PathsEquivalent reports whether two paths normalize to the same value.
func PathsEquivalent(a, b string) bool {
	na, errA := NormalizePath(a)
	nb, errB := NormalizePath(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return na == nb
}
