package cleaner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// LinePrompter asks for the confirmation phrase on Out and reads one line
// from In. Only the line terminator is stripped; surrounding whitespace is
// part of the answer.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer
}

// Confirm implements Prompter. It returns ctx.Err() as soon as ctx is
// cancelled. A blocking read on In cannot be interrupted, so the goroutine
// reading the answer stays parked until In yields a line, reaches EOF or is
// closed; callers that outlive the prompt should close In.
func (p *LinePrompter) Confirm(ctx context.Context, preview Preview) (string, error) {
	fmt.Fprintf(p.Out, "This will permanently delete %d directories. Deletion cannot be undone.\n", len(preview.Items))
	fmt.Fprintf(p.Out, "Type %q to confirm (anything else cancels): ", ConfirmPhrase)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- answer{line, err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.Out)
		return "", ctx.Err()
	case a := <-ch:
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return "", a.err
		}
		line := strings.TrimSuffix(a.line, "\n")
		line = strings.TrimSuffix(line, "\r")
		return line, nil
	}
}
