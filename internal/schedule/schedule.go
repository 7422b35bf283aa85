// Package schedule registers a periodic `depprune scan` with the operating
// system scheduler: the user crontab on Unix, Task Scheduler on Windows.
//
// Only scanning is ever scheduled. Deletion always needs a person.
package schedule

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

const (
	// Marker tags the crontab line owned by depprune.
	Marker = "# depprune-scan"

	// TaskName is the Windows scheduled task name.
	TaskName = "depprune-scan"
)

// ErrLegacyStrategy is returned when asked to schedule the legacy strategy,
// whose access-time evidence the scheduled scan itself would disturb.
var ErrLegacyStrategy = errors.New("the legacy strategy cannot be scheduled; access times are unreliable for unattended scans")

// Entry describes the scheduled scan.
type Entry struct {
	Binary  string
	Days    int
	Hour    int
	Minute  int
	WorkDir string
	Roots   []string
	Legacy  bool
}

// Status describes what is currently registered.
type Status struct {
	Installed bool
	Detail    string // the crontab line or the task query output
}

// Runner executes an external command with optional stdin and returns its
// combined output.
type Runner func(ctx context.Context, stdin string, name string, args ...string) (string, error)

// Installer manages the scheduled entry for one platform.
type Installer struct {
	goos string
	run  Runner
}

// New returns an Installer for the running platform.
func New() *Installer {
	return &Installer{goos: runtime.GOOS, run: execRunner}
}

// NewWith returns an Installer for goos that runs commands through run
// (useful for testing).
func NewWith(goos string, run Runner) *Installer {
	return &Installer{goos: goos, run: run}
}

func execRunner(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// ParseAt parses an HH:MM time of day.
func ParseAt(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// Args returns the scan command line, binary first.
func (e Entry) Args() []string {
	args := []string{e.Binary, "scan", "--quiet", "--days", strconv.Itoa(e.Days)}
	if e.WorkDir != "" {
		args = append(args, "--workdir", e.WorkDir)
	}
	return append(args, e.Roots...)
}

func (e Entry) validate() error {
	if e.Legacy {
		return ErrLegacyStrategy
	}
	if e.Binary == "" {
		return errors.New("scheduled binary path is empty")
	}
	if e.Days < 0 {
		return fmt.Errorf("invalid days: %d (must not be negative)", e.Days)
	}
	return nil
}

// Install registers e, replacing any previous depprune entry.
func (i *Installer) Install(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	if i.goos == "windows" {
		if out, err := i.run(ctx, "", "schtasks", SchtasksCreateArgs(e)...); err != nil {
			return fmt.Errorf("schtasks create failed: %w (output: %s)", err, strings.TrimSpace(out))
		}
		return nil
	}

	current, err := i.readCrontab(ctx)
	if err != nil {
		return err
	}
	return i.writeCrontab(ctx, WithEntry(current, e))
}

// Uninstall removes the depprune entry. It reports whether one existed.
func (i *Installer) Uninstall(ctx context.Context) (bool, error) {
	if i.goos == "windows" {
		st, err := i.Status(ctx)
		if err != nil || !st.Installed {
			return false, err
		}
		if out, err := i.run(ctx, "", "schtasks", SchtasksDeleteArgs()...); err != nil {
			return false, fmt.Errorf("schtasks delete failed: %w (output: %s)", err, strings.TrimSpace(out))
		}
		return true, nil
	}

	current, err := i.readCrontab(ctx)
	if err != nil {
		return false, err
	}
	updated, removed := WithoutEntry(current)
	if !removed {
		return false, nil
	}
	return true, i.writeCrontab(ctx, updated)
}

// Status reports whether a depprune entry is registered.
func (i *Installer) Status(ctx context.Context) (Status, error) {
	if i.goos == "windows" {
		out, err := i.run(ctx, "", "schtasks", SchtasksQueryArgs()...)
		if err != nil {
			// schtasks exits non-zero when the task does not exist.
			return Status{}, nil
		}
		return Status{Installed: true, Detail: strings.TrimSpace(out)}, nil
	}

	current, err := i.readCrontab(ctx)
	if err != nil {
		return Status{}, err
	}
	line, ok := FindEntry(current)
	return Status{Installed: ok, Detail: line}, nil
}

func (i *Installer) readCrontab(ctx context.Context) (string, error) {
	out, err := i.run(ctx, "", "crontab", "-l")
	if err != nil {
		if strings.Contains(strings.ToLower(out), "no crontab") {
			return "", nil
		}
		return "", fmt.Errorf("crontab -l failed: %w (output: %s)", err, strings.TrimSpace(out))
	}
	return out, nil
}

func (i *Installer) writeCrontab(ctx context.Context, content string) error {
	if out, err := i.run(ctx, content, "crontab", "-"); err != nil {
		return fmt.Errorf("crontab install failed: %w (output: %s)", err, strings.TrimSpace(out))
	}
	return nil
}

// CronLine renders e as a daily crontab line tagged with Marker.
func CronLine(e Entry) string {
	args := e.Args()
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return fmt.Sprintf("%d %d * * * %s %s", e.Minute, e.Hour, strings.Join(quoted, " "), Marker)
}

// WithEntry returns crontab content with any previous depprune line replaced
// by e. Other lines are kept in order.
func WithEntry(crontab string, e Entry) string {
	kept, _ := WithoutEntry(crontab)
	if kept != "" && !strings.HasSuffix(kept, "\n") {
		kept += "\n"
	}
	return kept + CronLine(e) + "\n"
}

// WithoutEntry strips depprune lines from crontab content.
func WithoutEntry(crontab string) (string, bool) {
	if crontab == "" {
		return "", false
	}
	lines := strings.SplitAfter(crontab, "\n")
	var sb strings.Builder
	removed := false
	for _, line := range lines {
		if strings.HasSuffix(strings.TrimRight(line, "\r\n"), Marker) {
			removed = true
			continue
		}
		sb.WriteString(line)
	}
	return sb.String(), removed
}

// FindEntry returns the depprune line in crontab content, if any.
func FindEntry(crontab string) (string, bool) {
	for _, line := range strings.Split(crontab, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasSuffix(line, Marker) {
			return line, true
		}
	}
	return "", false
}

// SchtasksCreateArgs returns the schtasks arguments that register e.
func SchtasksCreateArgs(e Entry) []string {
	args := e.Args()
	quoted := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t") {
			a = `"` + a + `"`
		}
		quoted[i] = a
	}
	return []string{
		"/Create", "/F",
		"/SC", "DAILY",
		"/TN", TaskName,
		"/TR", strings.Join(quoted, " "),
		"/ST", fmt.Sprintf("%02d:%02d", e.Hour, e.Minute),
	}
}

// SchtasksDeleteArgs returns the schtasks arguments that remove the task.
func SchtasksDeleteArgs() []string {
	return []string{"/Delete", "/F", "/TN", TaskName}
}

// SchtasksQueryArgs returns the schtasks arguments that describe the task.
func SchtasksQueryArgs() []string {
	return []string{"/Query", "/TN", TaskName, "/FO", "LIST"}
}

// shellQuote single-quotes s for /bin/sh when it contains anything but
// safe characters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@%+", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
