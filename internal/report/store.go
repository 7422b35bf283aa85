// Package report manages the plain-text Report files that hand stale
// directory paths from a scan to a later clean.
//
// A Report holds one absolute path per line and nothing else. Its creation
// time is the file's modification time. An optional sidecar file
// (<report>.sha256) carries a digest of the body so edits made between scan
// and clean can be surfaced.
package report

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// Prefix and Ext form the report naming convention:
	// report-YYYYMMDD-HHMMSS.txt
	Prefix = "report-"
	Ext    = ".txt"

	// Pattern matches report files for ResolveLatest, List and Rotate.
	Pattern = Prefix + "*" + Ext

	// DigestExt is appended to a report path to name its integrity sidecar.
	DigestExt = ".sha256"

	timestampLayout = "20060102-150405"

	// DefaultFreshness is how old a report may get before Validate flags it.
	DefaultFreshness = 7 * 24 * time.Hour
)

var (
	// ErrNotFound is returned when the report file does not exist.
	ErrNotFound = errors.New("report not found")

	// ErrUnreadable is returned when the report exists but cannot be read.
	ErrUnreadable = errors.New("report unreadable")

	// ErrEmpty is returned when a report holds no usable path.
	ErrEmpty = errors.New("report is empty")
)

// Store reads and writes reports in a single directory.
type Store struct {
	Dir       string
	Freshness time.Duration

	now func() time.Time
}

// New returns a Store rooted at dir with the default freshness window.
func New(dir string) *Store {
	return &Store{
		Dir:       dir,
		Freshness: DefaultFreshness,
		now:       time.Now,
	}
}

// SetClock overrides the store's notion of "now" (useful for testing).
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Name returns the file name a report written at t receives.
func Name(t time.Time) string {
	return Prefix + t.Format(timestampLayout) + Ext
}

// Write stores paths as a new timestamped report in the store directory and
// returns its location.
func (s *Store) Write(paths []string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}
	dest := filepath.Join(s.Dir, Name(s.now()))
	if err := WriteFile(dest, paths); err != nil {
		return "", err
	}
	return dest, nil
}

// WriteFile writes paths to dest, one per line, together with the integrity
// sidecar. The body is written to a temporary file and renamed into place so
// a reader never observes a half-written report.
func WriteFile(dest string, paths []string) error {
	if len(paths) == 0 {
		return ErrEmpty
	}

	var body bytes.Buffer
	for _, p := range paths {
		body.WriteString(p)
		body.WriteByte('\n')
	}

	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	if err := writeAtomic(dest, body.Bytes()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	sum := Digest(body.Bytes())
	if err := writeAtomic(dest+DigestExt, []byte(sum+"\n")); err != nil {
		return fmt.Errorf("failed to write report digest: %w", err)
	}

	return nil
}

// Digest returns the hex-encoded SHA-256 of a report body.
func Digest(body []byte) string {
	h := sha256.Sum256(body)
	return hex.EncodeToString(h[:])
}

func writeAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-"+filepath.Base(dest)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Info describes one report file on disk.
type Info struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// List returns the reports in the store directory, newest first.
// A missing directory yields an empty list.
func (s *Store) List() ([]Info, error) {
	return listMatching(s.Dir, Pattern)
}

// ResolveLatest returns the report with the newest modification time, or ""
// when the directory holds none.
func (s *Store) ResolveLatest() (string, error) {
	infos, err := s.List()
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "", nil
	}
	return infos[0].Path, nil
}

func listMatching(dir, pattern string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(pattern, e.Name()); !ok {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		infos = append(infos, Info{
			Path:    filepath.Join(dir, e.Name()),
			ModTime: fi.ModTime(),
			Size:    fi.Size(),
		})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].ModTime.Equal(infos[j].ModTime) {
			return infos[i].Path > infos[j].Path
		}
		return infos[i].ModTime.After(infos[j].ModTime)
	})

	return infos, nil
}

// ReadPaths reads a one-path-per-line file, trimming whitespace and skipping
// blank lines. No other validation is applied.
func ReadPaths(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	// Paths have no guaranteed maximum length.
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}
