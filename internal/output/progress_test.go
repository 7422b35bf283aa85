package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestProgressBar_NonTTYStaysQuietUntilFinish(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(0, "")
	p.SetWriter(buf)

	p.Update(1, 3, "/a/node_modules")
	p.Update(3, 3, "/c/node_modules")
	if buf.Len() != 0 {
		t.Fatalf("non-TTY bar should not render before Finish, got: %q", buf.String())
	}

	p.Finish()
	out := buf.String()
	if !strings.Contains(out, "100%") || !strings.Contains(out, "3/3") || !strings.Contains(out, "/c/node_modules") {
		t.Errorf("finished bar should show 100%%, the count and the last label, got: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("finished bar should end its line, got: %q", out)
	}
}

func TestProgressBar_FinishIsIdempotent(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(5, "Classifying")
	p.SetWriter(buf)

	p.Update(2, 5, "Classifying")
	p.Finish()
	p.Finish()
	p.Update(1, 5, "late")

	if n := strings.Count(buf.String(), "100%"); n != 1 {
		t.Errorf("expected exactly one completion line, got %d: %q", n, buf.String())
	}
	if strings.Contains(buf.String(), "late") {
		t.Errorf("updates after Finish should be ignored, got: %q", buf.String())
	}
}

func TestProgressBar_Line(t *testing.T) {
	tests := []struct {
		name           string
		current, total int
		wantBar        string
		wantPct        string
	}{
		{"empty", 0, 4, strings.Repeat(" ", barWidth), "  0%"},
		{"half", 2, 4, strings.Repeat("=", 14) + ">" + strings.Repeat(" ", 15), " 50%"},
		{"full", 4, 4, strings.Repeat("=", barWidth), "100%"},
		{"over limit", 9, 4, strings.Repeat("=", barWidth), "100%"},
		{"negative", -3, 4, strings.Repeat(" ", barWidth), "  0%"},
		{"unknown total", 0, 0, strings.Repeat(" ", barWidth), "  0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgress(0, "")
			p.SetWriter(&bytes.Buffer{})
			p.Update(tt.current, tt.total, "x")

			line := p.line()
			if !strings.HasPrefix(line, "["+tt.wantBar+"] "+tt.wantPct) {
				t.Errorf("line() = %q, want prefix %q", line, "["+tt.wantBar+"] "+tt.wantPct)
			}
		})
	}
}

func TestProgressBar_LongLabelIsTruncated(t *testing.T) {
	p := NewProgress(0, "")
	p.SetWriter(&bytes.Buffer{})
	long := "/home/dev/" + strings.Repeat("deep/", 30) + "node_modules"
	p.Update(1, 1, long)

	line := p.line()
	if !strings.HasSuffix(line, "node_modules") || !strings.Contains(line, "...") {
		t.Errorf("long label should keep its tail, got: %q", line)
	}
}

func TestProgressBar_Concurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(0, "")
	p.SetWriter(buf)

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Update(i, 10, "Classifying")
		}(i)
	}
	wg.Wait()
	p.Finish()

	if !strings.Contains(buf.String(), "100%") {
		t.Errorf("expected completion after concurrent updates, got: %q", buf.String())
	}
}

func TestSpinner_NonTTYPrintsOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Searching for node_modules")
	s.SetWriter(buf)

	s.Start()
	s.Start()
	s.UpdateMessage("Searching for node_modules (3 found)")
	s.Stop()
	s.Stop()

	if n := strings.Count(buf.String(), "Searching for node_modules..."); n != 1 {
		t.Errorf("non-TTY spinner should print its message once, got %d: %q", n, buf.String())
	}
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("idle")
	s.SetWriter(buf)

	s.Stop()
	if buf.Len() != 0 {
		t.Errorf("stopping an idle spinner should print nothing, got: %q", buf.String())
	}
}

func TestSpinner_StopWithMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Searching")
	s.SetWriter(buf)

	s.Start()
	s.StopWithMessage("Found 4 directories")

	if !strings.HasSuffix(buf.String(), "Found 4 directories\n") {
		t.Errorf("spinner should end with the final message, got: %q", buf.String())
	}
}
