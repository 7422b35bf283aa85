package staleness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect_PrefersFirstLockFile(t *testing.T) {
	project := t.TempDir()
	deps := filepath.Join(project, "node_modules")
	require.NoError(t, os.Mkdir(deps, 0755))

	yarnTime := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	npmTime := time.Now().Add(-24 * time.Hour).Truncate(time.Second)
	writeFileAt(t, filepath.Join(project, "yarn.lock"), yarnTime)
	writeFileAt(t, filepath.Join(project, "package-lock.json"), npmTime)

	c, err := Inspect(deps, nil)
	require.NoError(t, err)

	assert.Equal(t, deps, c.Path)
	assert.Equal(t, project, c.Parent)
	assert.Equal(t, filepath.Join(project, "package-lock.json"), c.LockFile)
	assert.True(t, c.LockFileModTime.Equal(npmTime))

	c, err = Inspect(deps, []string{"yarn.lock", "package-lock.json"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(project, "yarn.lock"), c.LockFile)
}

func TestInspect_NoLockFile(t *testing.T) {
	project := t.TempDir()
	deps := filepath.Join(project, "node_modules")
	require.NoError(t, os.Mkdir(deps, 0755))

	// A directory named like a lock file is not a lock file.
	require.NoError(t, os.Mkdir(filepath.Join(project, "yarn.lock"), 0755))

	old := time.Now().AddDate(0, 0, -100)
	require.NoError(t, os.Chtimes(project, old, old))

	c, err := Inspect(deps, nil)
	require.NoError(t, err)
	assert.False(t, c.HasLockFile())
	assert.WithinDuration(t, old, c.ParentModTime, time.Second)
}

func TestInspect_MissingParent(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "gone", "node_modules"), nil)
	assert.Error(t, err)
}

func writeFileAt(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}
