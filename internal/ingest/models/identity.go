// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
)

// GroupKey derives the group_id and is_stereo flag from a normalized path,
// matching normalize_group_id: the filename stem with any ".stereo" suffix
// stripped, combined with a short hash of the parent directory so that
// identically-named files in different folders never collide.
func GroupKey(path string) (groupID string, isStereo bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	isStereo = strings.HasSuffix(strings.ToLower(stem), ".stereo")
	groupName := stem
	if isStereo {
		groupName = stem[:len(stem)-len(".stereo")]
	}

	parent := filepath.Dir(path)
	sum := md5.Sum([]byte(parent))
	parentHash := hex.EncodeToString(sum[:])[:8]

	return fmt.Sprintf("%s/%s", parentHash, groupName), isStereo
}

// FileIdentity computes (device, inode) on POSIX, or a content-derived hash
// fallback otherwise. The hash input is the first 4 KiB of content; size and
// mtime are never part of it. An empty file hashes its basename and a file
// that cannot be opened hashes its full path, so those two fallbacks do not
// survive a rename (see SPEC_FULL.md §5.1).
func FileIdentity(path string) (device, inode *int64, identity *string, err error) {
	fi, statErr := os.Stat(path)
	if statErr != nil {
		return nil, nil, nil, fmt.Errorf("stat %s: %w", path, statErr)
	}

	if runtime.GOOS != "windows" {
		if sys, ok := fi.Sys().(*syscall.Stat_t); ok {
			dev := int64(sys.Dev)
			ino := int64(sys.Ino)
			return &dev, &ino, nil, nil
		}
	}

	hash, hashErr := contentIdentityHash(path)
	if hashErr != nil {
		return nil, nil, nil, hashErr
	}
	return nil, nil, &hash, nil
}

// contentIdentityHash hashes the first 4 KiB of file content, falling back
// to a hash of the basename for empty files, mirroring _get_fallback_identity.
func contentIdentityHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		sum := md5.Sum([]byte(path))
		return hex.EncodeToString(sum[:]), nil //nolint:nilerr // fallback identity is still well-defined
	}
	defer f.Close()

	buf := make([]byte, 4096)
	n, readErr := io.ReadFull(f, buf)
	if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
		return "", fmt.Errorf("read content sample for %s: %w", path, readErr)
	}

	if n == 0 {
		sum := md5.Sum([]byte(filepath.Base(path)))
		return hex.EncodeToString(sum[:]), nil
	}

	sum := md5.Sum(buf[:n])
	return hex.EncodeToString(sum[:]), nil
}
