package cleaner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatOutcome(t *testing.T) {
	assert.Equal(t, "[SUCCESS] /a/node_modules", FormatOutcome(Outcome{Path: "/a/node_modules", Success: true}))
	assert.Equal(t, "[FAILED] /b/node_modules - access denied",
		FormatOutcome(Outcome{Path: "/b/node_modules", Reason: "access denied"}))
	assert.Equal(t, "[FAILED] /c - line one line two",
		FormatOutcome(Outcome{Path: "/c", Reason: "line one\nline two"}))
}

func TestParseOutcome(t *testing.T) {
	o, err := ParseOutcome("[FAILED] /x/node_modules - busy - really")
	require.NoError(t, err)
	assert.Equal(t, "/x/node_modules", o.Path)
	assert.Equal(t, "busy - really", o.Reason)
	assert.False(t, o.Success)

	_, err = ParseOutcome("garbage")
	assert.Error(t, err)
}

func TestAuditLog_AppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "clean.log")

	a, err := OpenAuditLog(path)
	require.NoError(t, err)
	require.NoError(t, a.Append(Outcome{Path: "/one", Success: true}))
	require.NoError(t, a.Close())

	a, err = OpenAuditLog(path)
	require.NoError(t, err)
	require.NoError(t, a.Append(Outcome{Path: "/two", Reason: "denied"}))
	require.NoError(t, a.Close())

	got, err := ReadAuditLog(path)
	require.NoError(t, err)
	assert.Equal(t, []Outcome{
		{Path: "/one", Success: true},
		{Path: "/two", Reason: "denied"},
	}, got)
}
