package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// clearEOL erases the rest of the terminal line so a shorter redraw leaves
// no residue from a longer one.
const clearEOL = "\x1b[K"

const (
	barWidth      = 30
	barLabelWidth = 50
	spinInterval  = 100 * time.Millisecond
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// writerIsTTY reports whether w is a file attached to a terminal.
func writerIsTTY(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && isatty.IsTerminal(f.Fd())
}

// ProgressBar tracks a phase with a known total:
//
//	[=============>                ]  45% 9/20 ~/src/app/node_modules
//
// On a terminal it redraws in place. On any other writer it stays silent
// until Finish, which prints the final state once.
type ProgressBar struct {
	mu      sync.Mutex
	w       io.Writer
	tty     bool
	current int
	total   int
	label   string
	done    bool
}

// NewProgress creates a bar writing to stdout.
func NewProgress(total int, label string) *ProgressBar {
	return &ProgressBar{
		w:     os.Stdout,
		tty:   writerIsTTY(os.Stdout),
		total: total,
		label: label,
	}
}

// SetWriter redirects the bar.
func (p *ProgressBar) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.w = w
	p.tty = writerIsTTY(w)
}

// Update moves the bar to current of total. The total may change between
// calls; the scanner only knows it once discovery has finished.
func (p *ProgressBar) Update(current, total int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return
	}
	p.total = max(total, 0)
	p.current = min(max(current, 0), p.total)
	p.label = label
	if p.tty {
		fmt.Fprint(p.w, "\r"+p.line()+clearEOL)
	}
}

// Finish fills the bar and ends its line. Later calls do nothing.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return
	}
	p.done = true
	p.current = p.total
	if p.tty {
		fmt.Fprint(p.w, "\r"+p.line()+clearEOL+"\n")
		return
	}
	fmt.Fprintln(p.w, p.line())
}

func (p *ProgressBar) line() string {
	pct, filled := 0, 0
	if p.total > 0 {
		pct = p.current * 100 / p.total
		filled = p.current * barWidth / p.total
	}

	var bar strings.Builder
	bar.WriteString(strings.Repeat("=", max(filled-1, 0)))
	switch {
	case filled == barWidth:
		bar.WriteString("=")
	case filled > 0:
		bar.WriteString(">")
	}
	bar.WriteString(strings.Repeat(" ", barWidth-filled))

	return fmt.Sprintf("[%s] %3d%% %d/%d %s", bar.String(), pct, p.current, p.total,
		truncatePath(p.label, barLabelWidth))
}

// Spinner shows that a phase without a known total is still running. On a
// non-terminal writer Start prints the message once and nothing animates.
type Spinner struct {
	mu      sync.Mutex
	w       io.Writer
	tty     bool
	message string

	stop    chan struct{}
	stopped chan struct{}
}

// NewSpinner creates a spinner writing to stdout. It does not start until
// Start is called.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		w:       os.Stdout,
		tty:     writerIsTTY(os.Stdout),
		message: message,
	}
}

// SetWriter redirects the spinner. Call it before Start.
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
	s.tty = writerIsTTY(w)
}

// Start begins animating. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})

	if !s.tty {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		close(s.stopped)
		return
	}
	go s.spin(s.stop, s.stopped)
}

func (s *Spinner) spin(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	tick := time.NewTicker(spinInterval)
	defer tick.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-stop:
			return
		case <-tick.C:
			s.mu.Lock()
			glyph := colorize(styleDim, spinnerFrames[frame%len(spinnerFrames)])
			fmt.Fprintf(s.w, "\r%s %s%s", glyph, s.message, clearEOL)
			s.mu.Unlock()
		}
	}
}

// UpdateMessage replaces the text shown next to the spinner.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop halts the animation and clears its line. Stopping a spinner that is
// not running does nothing.
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped

	if s.tty {
		s.mu.Lock()
		fmt.Fprint(s.w, "\r"+clearEOL)
		s.mu.Unlock()
	}
}

// StopWithMessage stops the spinner and prints message on its own line.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, message)
}
