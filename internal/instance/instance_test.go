//go:build unix

package instance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "gureum.pid")
	l, err := Acquire(path)
	require.NoError(t, err)
	defer l.Release()

	assert.Equal(t, path, l.Path())
	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestSecondAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gureum.pid")
	l, err := Acquire(path)
	require.NoError(t, err)
	defer l.Release()

	// flock locks belong to the open file description, so a second open in
	// the same process conflicts.
	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrRunning)
	assert.Contains(t, err.Error(), "pid")
}

func TestReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gureum.pid")
	l, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l.Release())
	require.NoError(t, l.Release())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	l2, err := Acquire(path)
	require.NoError(t, err)
	assert.NoError(t, l2.Release())
}

func TestStalePIDFileIsReused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gureum.pid")
	require.NoError(t, os.WriteFile(path, []byte("999999 stale\n"), 0o600))

	l, err := Acquire(path)
	require.NoError(t, err)
	defer l.Release()
	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPIDErrors(t *testing.T) {
	_, err := ReadPID(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("nope"), 0o600))
	_, err = ReadPID(path)
	assert.Error(t, err)
}
