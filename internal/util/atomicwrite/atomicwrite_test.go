package atomicwrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "signing.pem")

	require.NoError(t, WriteFile(path, []byte("one"), 0o600))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, WriteFile(path, []byte("two"), 0o600))
	got, _ = os.ReadFile(path)
	assert.Equal(t, "two", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteFileNoClobber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, WriteFile(path, []byte("keep"), 0o600, NoClobber()))

	err := WriteFile(path, []byte("replace"), 0o600, NoClobber())
	assert.ErrorIs(t, err, ErrExists)
	got, _ := os.ReadFile(path)
	assert.Equal(t, "keep", string(got))
}
