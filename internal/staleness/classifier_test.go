package staleness

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestClassify_LockFile(t *testing.T) {
	w := NewWindow(testNow, 30)

	tests := []struct {
		name      string
		lockMtime time.Time
		wantStale bool
		wantAge   int
	}{
		{"recent lock file", testNow.AddDate(0, 0, -3), false, 0},
		{"old lock file", testNow.AddDate(0, 0, -45), true, 45},
		{"exactly at cutoff is fresh", w.Cutoff, false, 0},
		{"one second before cutoff", w.Cutoff.Add(-time.Second), true, 31},
		{"partial day past threshold rounds up", testNow.AddDate(0, 0, -30).Add(-5 * time.Hour), true, 31},
		{"future mtime", testNow.Add(time.Hour), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Candidate{
				Path:            "/p/app/node_modules",
				Parent:          "/p/app",
				LockFile:        "/p/app/package-lock.json",
				LockFileModTime: tt.lockMtime,
				// Parent is ancient; it must be ignored when a lock file exists.
				ParentModTime: testNow.AddDate(-5, 0, 0),
			}

			v := Classify(c, w, Default)
			assert.Equal(t, EvidenceLockFile, v.Evidence)
			assert.Equal(t, tt.wantStale, v.Stale)
			if tt.wantStale {
				assert.Equal(t, tt.wantAge, v.AgeDays)
				assert.Greater(t, v.AgeDays, w.Days)
				assert.Contains(t, v.Reason, "package-lock.json")
				assert.Contains(t, v.Reason, fmt.Sprintf("%d days ago", tt.wantAge))
			}
		})
	}
}

func TestClassify_ParentFallback(t *testing.T) {
	w := NewWindow(testNow, 30)

	stale := Classify(Candidate{ParentModTime: testNow.AddDate(0, 0, -90)}, w, Default)
	assert.True(t, stale.Stale)
	assert.Equal(t, EvidenceParentMtime, stale.Evidence)
	assert.Equal(t, 90, stale.AgeDays)
	assert.Contains(t, stale.Reason, "no lock file")

	fresh := Classify(Candidate{ParentModTime: testNow.AddDate(0, 0, -1)}, w, Default)
	assert.False(t, fresh.Stale)
	assert.Equal(t, EvidenceParentMtime, fresh.Evidence)

	// Missing lock file and unknown parent time is never treated as stale.
	unknown := Classify(Candidate{}, w, Default)
	assert.False(t, unknown.Stale)
}

func TestClassify_Legacy(t *testing.T) {
	w := NewWindow(testNow, 7)

	tests := []struct {
		name      string
		c         Candidate
		wantStale bool
	}{
		{"no access time", Candidate{}, false},
		{"old access time", Candidate{AccessTime: testNow.AddDate(0, 0, -8), HasAccessTime: true}, true},
		{"recent access time", Candidate{AccessTime: testNow.AddDate(0, 0, -2), HasAccessTime: true}, false},
		{"access time at cutoff", Candidate{AccessTime: w.Cutoff, HasAccessTime: true}, false},
		{
			"lock file ignored",
			Candidate{
				AccessTime:      testNow,
				HasAccessTime:   true,
				LockFile:        "/p/yarn.lock",
				LockFileModTime: testNow.AddDate(-1, 0, 0),
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.c, w, Legacy)
			assert.Equal(t, EvidenceAccessTime, v.Evidence)
			assert.Equal(t, tt.wantStale, v.Stale)
		})
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Default, s)

	s, err = ParseStrategy("LEGACY")
	require.NoError(t, err)
	assert.Equal(t, Legacy, s)
	assert.Equal(t, "legacy", s.String())

	_, err = ParseStrategy("atime")
	assert.Error(t, err)
}

func TestWindow_AgeDays(t *testing.T) {
	w := NewWindow(testNow, 30)
	assert.Equal(t, 0, w.AgeDays(testNow.Add(time.Hour)))
	assert.Equal(t, 1, w.AgeDays(testNow.Add(-36*time.Hour)))
	assert.Equal(t, testNow.AddDate(0, 0, -30), w.Cutoff)
}
