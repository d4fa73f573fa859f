package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBlake3Hash(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \"127.0.0.1:8080\"\n")

	h1, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	h2, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))
	h3, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestLockThenCheck(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \"127.0.0.1:8080\"\n")

	require.NoError(t, Lock(path))

	manifestPath := filepath.Join(filepath.Dir(path), ChecksumFilename)
	info, err := os.Stat(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	assert.NoError(t, Check(path))
}

func TestCheck_DetectsEdit(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \"127.0.0.1:8080\"\n")
	require.NoError(t, Lock(path))

	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen: \"0.0.0.0:80\"\n"), 0o644))

	err := Check(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integrity check failed")
}

func TestCheck_MissingManifest(t *testing.T) {
	path := writeConfig(t, "server: {}\n")

	err := Check(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksums file not found")
}
