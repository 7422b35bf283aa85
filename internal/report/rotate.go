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

// RotationMarker is the file in each rotated directory that records the last
// calendar day rotation ran.
const RotationMarker = ".last-rotation"

// Rule keeps the newest Keep files whose names match Pattern. Files listed
// in Protect are never removed by the rule.
type Rule struct {
	Pattern string
	Keep    int
	Protect []string
}

// RotateResult lists what a rotation pass did.
type RotateResult struct {
	Skipped bool // already rotated today
	Removed []string
}

// Rotate applies rules to dir at most once per calendar day. A second call on
// the same day is a no-op that reports Skipped.
func Rotate(dir string, rules []Rule, now time.Time) (*RotateResult, error) {
	today := now.Format("2006-01-02")
	marker := filepath.Join(dir, RotationMarker)

	if last, err := os.ReadFile(marker); err == nil && strings.TrimSpace(string(last)) == today {
		return &RotateResult{Skipped: true}, nil
	}

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return &RotateResult{}, nil
	}

	res, err := RotateNow(dir, rules)
	if err != nil {
		return res, err
	}

	if err := os.WriteFile(marker, []byte(today+"\n"), 0644); err != nil {
		return res, fmt.Errorf("failed to write rotation marker: %w", err)
	}

	return res, nil
}

// RotateNow applies rules to dir regardless of the daily marker. Files that
// cannot be removed are reported in the error but do not stop the pass.
func RotateNow(dir string, rules []Rule) (*RotateResult, error) {
	res := &RotateResult{}
	var failures []string

	for _, rule := range rules {
		if rule.Keep < 0 {
			continue
		}
		infos, err := listMatching(dir, rule.Pattern)
		if err != nil {
			return res, err
		}
		if len(infos) <= rule.Keep {
			continue
		}

		protected := make(map[string]bool, len(rule.Protect))
		for _, p := range rule.Protect {
			protected[filepath.Clean(p)] = true
		}

		// infos is newest first; everything past Keep goes.
		for _, info := range infos[rule.Keep:] {
			if protected[filepath.Clean(info.Path)] {
				continue
			}
			if err := os.Remove(info.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				failures = append(failures, fmt.Sprintf("%s: %v", info.Path, err))
				continue
			}
			// Reports carry a digest sidecar that goes with them.
			os.Remove(info.Path + DigestExt)
			res.Removed = append(res.Removed, info.Path)
		}
	}

	if len(failures) > 0 {
		return res, fmt.Errorf("failed to remove %d old files: %s", len(failures), strings.Join(failures, "; "))
	}
	return res, nil
}
