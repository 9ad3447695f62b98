package app

import (
	"os"
	"path/filepath"
	"syscall"
)

// diskUsage reports filesystem usage for the catalog data root. The root may
// not exist yet on a fresh install, so the nearest existing ancestor is
// measured instead. Returns nil when nothing can be measured.
func diskUsage(path string) map[string]any {
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		parent := filepath.Dir(path)
		if parent == path {
			return nil
		}
		path = parent
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	avail := stat.Bavail * uint64(stat.Bsize)
	used := total - free

	pct := 0.0
	if total > 0 {
		pct = 100 * float64(used) / float64(total)
	}
	return map[string]any{
		"path":            path,
		"total_bytes":     total,
		"used_bytes":      used,
		"available_bytes": avail,
		"used_percent":    pct,
	}
}
