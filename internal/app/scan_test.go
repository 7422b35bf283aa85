package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/depprune/internal/report"
	"github.com/blackwell-systems/depprune/internal/scanner"
	"github.com/blackwell-systems/depprune/internal/store"
)

func TestScanCommand(t *testing.T) {
	if scanCmd.Use != "scan [roots...]" {
		t.Errorf("expected Use to be 'scan [roots...]', got '%s'", scanCmd.Use)
	}
	if scanCmd.Short == "" || scanCmd.Long == "" || scanCmd.Example == "" {
		t.Error("expected Short, Long and Example to be set")
	}
	if scanCmd.RunE == nil {
		t.Error("expected RunE to be set")
	}
}

func TestScanCommandFlags(t *testing.T) {
	tests := []struct {
		flagName     string
		defaultValue string
	}{
		{"days", "30"},
		{"out", ""},
		{"legacy", "false"},
		{"exclude", "[]"},
		{"quiet", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := scanCmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				t.Fatalf("expected flag '%s' to be registered", tt.flagName)
			}
			if flag.Usage == "" {
				t.Errorf("expected flag '%s' to have usage text", tt.flagName)
			}
			if flag.DefValue != tt.defaultValue {
				t.Errorf("expected flag '%s' default to be '%s', got '%s'", tt.flagName, tt.defaultValue, flag.DefValue)
			}
		})
	}
}

func TestRunScan_WritesReportAndHistory(t *testing.T) {
	e := newEnv(t)
	root := tempRoot(t)
	stale := project(t, root, "old-app", 60*24*time.Hour)
	project(t, root, "new-app", time.Hour)

	stdout, _, err := e.run(t, "", "scan", root)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if !strings.Contains(stdout, stale) {
		t.Errorf("output should list the stale directory %s:\n%s", stale, stdout)
	}
	if strings.Contains(stdout, filepath.Join(root, "new-app")) {
		t.Errorf("output should not list the fresh project:\n%s", stdout)
	}

	latest, err := report.New(filepath.Join(e.workdir, "reports")).ResolveLatest()
	if err != nil || latest == "" {
		t.Fatalf("expected a report to be written, got %q (%v)", latest, err)
	}
	got, err := report.ReadPaths(latest)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != stale {
		t.Errorf("report paths = %v, want [%s]", got, stale)
	}

	db, err := store.Open(filepath.Join(e.workdir, "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	runs, err := db.ListRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Kind != store.KindScan || runs[0].Found != 1 || runs[0].ReportPath != latest {
		t.Errorf("history = %+v", runs)
	}
}

func TestRunScan_NothingStale(t *testing.T) {
	e := newEnv(t)
	root := tempRoot(t)
	project(t, root, "app", time.Hour)

	stdout, _, err := e.run(t, "", "scan", root)
	if err != nil {
		t.Fatalf("scan with nothing stale should succeed: %v", err)
	}
	if !strings.Contains(stdout, "No report written") {
		t.Errorf("expected a no-report message:\n%s", stdout)
	}
	entries, _ := os.ReadDir(filepath.Join(e.workdir, "reports"))
	for _, ent := range entries {
		if strings.HasPrefix(ent.Name(), report.Prefix) {
			t.Errorf("no report should be written, found %s", ent.Name())
		}
	}
}

func TestRunScan_NoRootsIsError(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run(t, "", "scan", filepath.Join(e.home, "missing"))
	if err == nil {
		t.Fatal("expected an error when no root exists")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("error should name the missing root: %v", err)
	}
}

func TestRunScan_QuietOutAndExclude(t *testing.T) {
	e := newEnv(t)
	root := tempRoot(t)
	project(t, root, "a", 90*24*time.Hour)
	project(t, root, "keep-b", 90*24*time.Hour)
	out := filepath.Join(e.home, "stale.txt")

	stdout, _, err := e.run(t, "", "scan", root, "--quiet", "--out", out, "--exclude", "keep-*/node_modules")
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if stdout != "" {
		t.Errorf("--quiet should print nothing, got:\n%s", stdout)
	}
	got, err := report.ReadPaths(out)
	if err != nil {
		t.Fatalf("expected report at --out: %v", err)
	}
	if len(got) != 1 || !strings.HasSuffix(got[0], filepath.Join("a", "node_modules")) {
		t.Errorf("report paths = %v", got)
	}
}

func TestRunScan_DaysFlagOverridesConfig(t *testing.T) {
	e := newEnv(t)
	root := tempRoot(t)
	project(t, root, "app", 10*24*time.Hour)

	stdout, _, err := e.run(t, "", "scan", root, "--days", "5")
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if !strings.Contains(stdout, "older than 5 days") {
		t.Errorf("expected the 5-day threshold to be used:\n%s", stdout)
	}
	if !strings.Contains(stdout, filepath.Join(root, "app", "node_modules")) {
		t.Errorf("10-day-old project should be stale at 5 days:\n%s", stdout)
	}
}

func TestRunScan_LegacyWarns(t *testing.T) {
	e := newEnv(t)
	root := tempRoot(t)

	_, stderr, err := e.run(t, "", "scan", root, "--legacy")
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if !strings.Contains(stderr, "access time") {
		t.Errorf("legacy mode should print its caveat, stderr:\n%s", stderr)
	}
}

func TestRunScan_NegativeDays(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run(t, "", "scan", tempRoot(t), "--days", "-1")
	if err == nil {
		t.Fatal("expected an error for negative days")
	}
}

func TestFollowScan_SpinnerThenBar(t *testing.T) {
	root := tempRoot(t)
	project(t, root, "a", 90*24*time.Hour)
	project(t, root, "b", 90*24*time.Hour)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = w
	t.Cleanup(func() { os.Stdout = stdout })

	s := scanner.New(report.New(t.TempDir()), nil)
	stop := followScan(s, []string{"node_modules"})
	_, scanErr := s.Scan(context.Background(), scanner.Options{
		Roots: []string{root},
		Days:  30,
		Out:   filepath.Join(t.TempDir(), "stale.txt"),
	})
	stop()

	os.Stdout = stdout
	w.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if scanErr != nil {
		t.Fatalf("scan failed: %v", scanErr)
	}

	got := string(data)
	for _, want := range []string{
		"Searching for node_modules...",
		"Found 2 candidate directories",
		"100% 2/2",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("progress output missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "Found 2") > strings.Index(got, "100%") {
		t.Errorf("discovery summary should precede the bar:\n%s", got)
	}
}

func TestRunScan_ExcludeNestedUnderKeep(t *testing.T) {
	e := newEnv(t)
	root := tempRoot(t)
	project(t, root, "a", 90*24*time.Hour)
	project(t, root, filepath.Join("keep", "b"), 90*24*time.Hour)
	project(t, root, filepath.Join("keep", "group", "c"), 90*24*time.Hour)
	out := filepath.Join(e.home, "stale.txt")

	if _, _, err := e.run(t, "", "scan", root, "--quiet", "--out", out, "--exclude", "*/keep/*"); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	got, err := report.ReadPaths(out)
	if err != nil {
		t.Fatalf("expected report at --out: %v", err)
	}
	want := filepath.Join(root, "a", "node_modules")
	if len(got) != 1 || got[0] != want {
		t.Errorf("report paths = %v, want only %s", got, want)
	}
}
