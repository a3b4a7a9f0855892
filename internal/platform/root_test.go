package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDataDir(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, DataDirName)
	require.NoError(t, os.Mkdir(data, 0o700))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o700))

	found, err := FindDataDir(nested)
	require.NoError(t, err)
	want, _ := filepath.EvalSymlinks(data)
	got, _ := filepath.EvalSymlinks(found)
	assert.Equal(t, want, got)

	// A plain file with the same name does not count.
	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, DataDirName), nil, 0o600))
	_, err = FindDataDir(other)
	assert.Error(t, err)
}
