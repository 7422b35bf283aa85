// Package disk reports free space on the volume holding a path.
package disk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"
)

// Usage is a point-in-time view of one volume.
type Usage struct {
	Path        string
	Total       uint64
	Free        uint64
	UsedPercent float64
}

// Free returns usage for the volume containing path. A path that does not
// exist is walked up to its nearest existing ancestor.
func Free(ctx context.Context, path string) (Usage, error) {
	p, err := existingAncestor(path)
	if err != nil {
		return Usage{}, err
	}
	s, err := disk.UsageWithContext(ctx, p)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read disk usage for %s: %w", p, err)
	}
	return Usage{Path: p, Total: s.Total, Free: s.Free, UsedPercent: s.UsedPercent}, nil
}

// Delta returns how much free space grew from before to after. Other
// processes write to the same volume, so the figure is indicative only.
func Delta(before, after Usage) int64 {
	return int64(after.Free) - int64(before.Free)
}

func existingAncestor(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		abs = parent
	}
}
