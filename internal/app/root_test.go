package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// env is an isolated home, config directory and working directory.
type env struct {
	home    string
	workdir string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")
	return &env{home: home, workdir: filepath.Join(home, ".depprune")}
}

// run executes the CLI with args and stdin and returns stdout and stderr.
func (e *env) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(RootCmd)

	var stdout, stderr bytes.Buffer
	RootCmd.SetArgs(append(args, "--workdir", e.workdir))
	RootCmd.SetOut(&stdout)
	RootCmd.SetErr(&stderr)
	RootCmd.SetIn(strings.NewReader(stdin))

	err := RootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag to its default between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// project creates root/name/node_modules with a lock file aged by age.
func project(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, name)
	deps := filepath.Join(dir, "node_modules")
	if err := os.MkdirAll(filepath.Join(deps, "left-pad"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(deps, "left-pad", "index.js"), make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}
	lock := filepath.Join(dir, "package-lock.json")
	if err := os.WriteFile(lock, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	when := time.Now().Add(-age)
	if err := os.Chtimes(lock, when, when); err != nil {
		t.Fatal(err)
	}
	return deps
}

// tempRoot returns a fresh directory with symlinks resolved, matching what
// the scanner writes into reports.
func tempRoot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRootCommand(t *testing.T) {
	if RootCmd.Use != "depprune" {
		t.Errorf("expected Use to be 'depprune', got '%s'", RootCmd.Use)
	}
	if RootCmd.Short == "" {
		t.Error("expected Short description to be set")
	}
	if RootCmd.Long == "" {
		t.Error("expected Long description to be set")
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		found[cmd.Name()] = true
	}

	for _, expected := range []string{"scan", "clean", "reports", "history", "schedule", "doctor"} {
		if !found[expected] {
			t.Errorf("expected command '%s' to be registered", expected)
		}
	}
}

func TestRootCommandHasPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "workdir", "verbose"} {
		flag := RootCmd.PersistentFlags().Lookup(name)
		if flag == nil {
			t.Errorf("expected --%s flag to be registered", name)
			continue
		}
		if flag.Usage == "" {
			t.Errorf("expected --%s flag to have usage text", name)
		}
	}
}

func TestLoadConfig_WorkdirFlag(t *testing.T) {
	e := newEnv(t)

	if _, _, err := e.run(t, "", "reports"); err != nil {
		t.Fatalf("reports failed: %v", err)
	}
	if paths.Root != e.workdir {
		t.Errorf("paths.Root = %q, want %q", paths.Root, e.workdir)
	}
	if paths.Reports != filepath.Join(e.workdir, "reports") {
		t.Errorf("paths.Reports = %q", paths.Reports)
	}
}

func TestLoadConfig_BadConfigFile(t *testing.T) {
	e := newEnv(t)

	cfgPath := filepath.Join(e.home, "bad.yaml")
	if err := os.WriteFile(cfgPath, []byte("days: -3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, _, err := e.run(t, "", "--config", cfgPath, "reports")
	if err == nil || !strings.Contains(err.Error(), "days") {
		t.Errorf("expected validation error for negative days, got %v", err)
	}
}

func TestUnknownCommandSuggests(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.run(t, "", "scna")
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}
	if !strings.Contains(err.Error(), "scan") {
		t.Errorf("expected a suggestion for 'scan', got: %v", err)
	}
}
