// Package selector lets the user narrow a clean run to a subset of the
// report with a terminal multi-select form.
package selector

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/depprune/internal/cleaner"
)

// Form is a huh multi-select over cleaner items.
type Form struct {
	// IsTerminal reports whether stdin and stdout are terminals. Nil means
	// check os.Stdin and os.Stdout.
	IsTerminal func() bool
}

// New returns a Form bound to the process terminal.
func New() *Form {
	return &Form{}
}

// Available implements cleaner.Selector.
func (f *Form) Available() bool {
	if f.IsTerminal != nil {
		return f.IsTerminal()
	}
	return isTerminal(os.Stdin.Fd()) && isTerminal(os.Stdout.Fd())
}

// Select implements cleaner.Selector. Every item starts selected; the user
// deselects what should be kept.
func (f *Form) Select(ctx context.Context, items []cleaner.Item) ([]string, error) {
	var selected []string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Directories to delete").
				Description("space toggles, / filters, enter confirms").
				Options(Options(items)...).
				Filterable(true).
				Value(&selected),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, cleaner.ErrSelectionCancelled
		}
		return nil, fmt.Errorf("selection form failed: %w", err)
	}
	return selected, nil
}

// Options builds the pre-selected form options for items, in report order.
func Options(items []cleaner.Item) []huh.Option[string] {
	opts := make([]huh.Option[string], len(items))
	for i, it := range items {
		opts[i] = huh.NewOption(Label(it), it.Path).Selected(true)
	}
	return opts
}

// Label is the text shown for one item.
func Label(it cleaner.Item) string {
	return fmt.Sprintf("%s (%s)", it.Path, humanize.Bytes(uint64(max(it.SizeBytes, 0))))
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
