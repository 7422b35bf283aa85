package cleaner

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinePrompter_KeepsWhitespace(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"DELETE\n", "DELETE"},
		{"DELETE\r\n", "DELETE"},
		{"DELETE \n", "DELETE "},
		{"delete\n", "delete"},
		{"DELETE", "DELETE"},
		{"", ""},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		p := &LinePrompter{In: strings.NewReader(tt.input), Out: &out}

		got, err := p.Confirm(context.Background(), Preview{Items: []Item{{Path: "/x"}}})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), `"DELETE"`)
	}
}

func TestLinePrompter_CancelReturnsWhileReadBlocks(t *testing.T) {
	in, w := io.Pipe()
	t.Cleanup(func() { w.Close() })

	var out bytes.Buffer
	p := &LinePrompter{In: in, Out: &out}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Confirm(ctx, Preview{Items: []Item{{Path: "/x"}}})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Confirm did not return after cancellation")
	}
}
