// Package scan enumerates job folders for a batch run.
//
// Enumeration is materialized up front: a batch runs over a fixed list of
// folders, and a resumed run re-enumerates from scratch.
package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"qcbatch/internal/apperrors"
)

// Folders returns the immediate subdirectories of path, sorted by name.
func Folders(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("folder", path)
		}
		return nil, apperrors.Internal("scan.folders", err)
	}

	var folders []string
	for _, entry := range entries {
		if entry.IsDir() {
			folders = append(folders, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(folders)
	return folders, nil
}

// FoldersContaining walks the tree under root and returns every directory
// holding at least one file whose name matches the glob pattern, sorted by
// path. This is how structure folders are located for convergence data
// extraction (e.g. pattern "detailed.out" or "*.castep").
func FoldersContaining(root, pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, apperrors.Validation("pattern", "malformed file pattern: "+pattern)
	}

	seen := make(map[string]bool)
	var folders []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, _ := filepath.Match(pattern, d.Name())
		if !ok {
			return nil
		}
		dir := filepath.Dir(path)
		if !seen[dir] {
			seen[dir] = true
			folders = append(folders, dir)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("folder", root)
		}
		return nil, apperrors.Internal("scan.foldersContaining", err)
	}

	sort.Strings(folders)
	return folders, nil
}
