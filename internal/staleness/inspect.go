package staleness

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLockFiles lists recognised dependency lock files in preference order.
var DefaultLockFiles = []string{
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"bun.lockb",
	"bun.lock",
	"npm-shrinkwrap.json",
}

// Inspect gathers the timestamps for the dependency directory at path.
// lockFiles is searched in order in the parent directory; the first one that
// exists and is a regular file wins. A missing parent is an error; a missing
// access time or lock file is not.
func Inspect(path string, lockFiles []string) (Candidate, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Candidate{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	c := Candidate{
		Path:   abs,
		Parent: filepath.Dir(abs),
	}

	parent, err := os.Stat(c.Parent)
	if err != nil {
		return Candidate{}, fmt.Errorf("failed to stat parent of %s: %w", abs, err)
	}
	c.ParentModTime = parent.ModTime()

	if len(lockFiles) == 0 {
		lockFiles = DefaultLockFiles
	}
	for _, name := range lockFiles {
		lf := filepath.Join(c.Parent, name)
		fi, err := os.Stat(lf)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		c.LockFile = lf
		c.LockFileModTime = fi.ModTime()
		break
	}

	c.AccessTime, c.HasAccessTime = accessTime(abs)

	return c, nil
}
