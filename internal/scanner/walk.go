package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
)

// discover returns every directory under roots whose name is one of targets.
// Matched directories are not descended into, so nested dependency trees are
// removed with their outermost parent. Unreadable subtrees are logged and
// skipped.
func (s *Scanner) discover(ctx context.Context, roots, targets []string) ([]string, error) {
	names := make(map[string]bool, len(targets))
	for _, t := range targets {
		names[t] = true
	}

	seen := make(map[string]bool)
	var found []string

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				s.logger.Warn("skipping inaccessible path", "path", path, "err", err)
				if d != nil && d.IsDir() && path != root {
					return fs.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && names[d.Name()] {
				if !seen[path] {
					seen[path] = true
					found = append(found, path)
					s.emit(Progress{Phase: PhaseDiscover, Path: path, Index: len(found)})
				}
				return fs.SkipDir
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return found, ctx.Err()
			}
			s.logger.Warn("walk aborted", "root", root, "err", err)
		}
	}

	return found, nil
}

// DirSize sums the sizes of regular files under dir. The second result is
// true when some entries could not be read, in which case the size is a
// lower bound.
func DirSize(ctx context.Context, dir string) (int64, bool) {
	var total int64
	partial := false

	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			partial = true
			return ctxErr
		}
		if err != nil {
			partial = true
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			partial = true
			return nil
		}
		total += info.Size()
		return nil
	})

	return total, partial
}
