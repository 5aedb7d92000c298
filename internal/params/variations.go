package params

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"qcbatch/internal/apperrors"
)

// kptsToken is replaced in seed input files with the cubic grid "n n n".
const kptsToken = "{kpts}"

// Variations materializes one job folder per grid size under outRoot.
//
// Every regular file in seedDir is copied into <seed>_k<n> with the grid
// token substituted, so each folder is a self-contained engine input. It
// returns the created folder names in grid order.
func Variations(p ConvParams, seedDir, outRoot string) ([]string, error) {
	entries, err := os.ReadDir(seedDir)
	if err != nil {
		return nil, apperrors.NotFound("seed folder", seedDir)
	}

	name := filepath.Base(seedDir)
	folders := make([]string, 0, p.KPointMax-p.KPointMin+1)
	for _, n := range p.Grids() {
		folder := fmt.Sprintf("%s_k%d", name, n)
		dir := filepath.Join(outRoot, folder)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return folders, apperrors.Internal("params.variations", err)
		}

		grid := fmt.Sprintf("%d %d %d", n, n, n)
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(seedDir, entry.Name()))
			if err != nil {
				return folders, apperrors.Internal("params.variations", err)
			}
			content := strings.ReplaceAll(string(data), kptsToken, grid)
			if err := os.WriteFile(filepath.Join(dir, entry.Name()), []byte(content), 0o644); err != nil {
				return folders, apperrors.Internal("params.variations", err)
			}
		}
		folders = append(folders, folder)
	}
	return folders, nil
}
