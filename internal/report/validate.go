package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Validated is a report that passed validation. Warnings that do not block a
// clean (age, malformed lines, digest mismatch) are carried alongside.
type Validated struct {
	Path    string
	ModTime time.Time
	Paths   []string

	// Malformed holds lines dropped because they were not absolute paths.
	Malformed []string

	// Stale is true when the report is older than the freshness window.
	Stale bool
	Age   time.Duration

	// IntegrityChecked is true when a digest sidecar was present.
	// IntegrityMismatch is true when the body no longer matches it.
	IntegrityChecked  bool
	IntegrityMismatch bool
}

// Validate loads and checks the report at path.
//
// A missing file yields ErrNotFound, a permission problem ErrUnreadable and a
// report without any absolute path ErrEmpty. A report older than the
// freshness window is still returned; Stale is set so the caller can warn.
func (s *Store) Validate(path string) (*Validated, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnreadable, path)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}

	v := &Validated{
		Path:    path,
		ModTime: fi.ModTime(),
	}

	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !wellFormed(line) {
			v.Malformed = append(v.Malformed, line)
			continue
		}
		v.Paths = append(v.Paths, filepath.Clean(line))
	}

	if len(v.Paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	freshness := s.Freshness
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	v.Age = s.now().Sub(fi.ModTime())
	v.Stale = v.Age > freshness

	if want, err := os.ReadFile(path + DigestExt); err == nil {
		v.IntegrityChecked = true
		v.IntegrityMismatch = strings.TrimSpace(string(want)) != Digest(body)
	}

	return v, nil
}

// wellFormed accepts absolute paths that do not name a filesystem root.
func wellFormed(p string) bool {
	if !filepath.IsAbs(p) {
		return false
	}
	clean := filepath.Clean(p)
	return filepath.Dir(clean) != clean
}
