package extraction

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ScratchPrefix names every scratch directory created by Split.
const ScratchPrefix = "pdfpages-"

// ScratchPattern is the os.MkdirTemp pattern for scratch directories.
const ScratchPattern = ScratchPrefix + "*"

// SweepScratch removes scratch directories under tempRoot last modified
// before olderThan ago. These are only left behind by a process that exited
// mid-extraction. It returns how many directories were removed.
func SweepScratch(tempRoot string, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		return 0, fmt.Errorf("unable to read temp root: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), ScratchPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(tempRoot, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			Logger.Warn("Failed to remove stale scratch directory", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
