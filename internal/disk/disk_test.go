package disk

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFree_TempDir(t *testing.T) {
	dir := t.TempDir()

	u, err := Free(context.Background(), dir)
	require.NoError(t, err)
	assert.Greater(t, u.Total, uint64(0))
	assert.LessOrEqual(t, u.Free, u.Total)
}

func TestFree_MissingPathUsesAncestor(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "not", "yet", "created")

	u, err := Free(context.Background(), missing)
	require.NoError(t, err)
	assert.Equal(t, dir, u.Path)
}

func TestDelta(t *testing.T) {
	assert.Equal(t, int64(500), Delta(Usage{Free: 1000}, Usage{Free: 1500}))
	assert.Equal(t, int64(-200), Delta(Usage{Free: 1000}, Usage{Free: 800}))
}
