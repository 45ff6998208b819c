// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package discovery

import (
	"io/fs"
	"path/filepath"
)

// walkDirs calls fn for root and every subdirectory beneath it.
func walkDirs(root string, fn func(dir string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return fn(path)
	})
}
