package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingLog_AppendsWithoutTruncating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "missing_keywords.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("from an earlier run\n"), 0o644))

	ml := NewMissingLog(path)
	require.NoError(t, ml.Append("alpha", "beta"))
	require.NoError(t, ml.Append("gamma"))
	require.NoError(t, ml.Append())

	got, err := ReadMissingLog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"from an earlier run", "alpha", "beta", "gamma"}, got)
}

func TestMissingLog_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "missing.log")

	require.NoError(t, NewMissingLog(path).Append("kw"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "kw\n", string(data))
}

func TestReadMissingLog_MissingFileIsEmpty(t *testing.T) {
	got, err := ReadMissingLog(filepath.Join(t.TempDir(), "absent.log"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
