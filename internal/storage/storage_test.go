package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.md")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	require.NoError(t, os.Chmod(path, 0600))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0644))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "existing mode is kept")

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestAcquireExclusiveLock(t *testing.T) {
	target := filepath.Join(t.TempDir(), "lessons.jsonl")

	lockPath, err := AcquireExclusiveLock(target, "test")
	require.NoError(t, err)
	assert.Equal(t, LockPath(target), lockPath)

	lock, err := ReadLock(lockPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), lock.PID)
	assert.Equal(t, "test", lock.Holder)

	// Our own PID is alive, so a second acquire must fail.
	_, err = AcquireExclusiveLock(target, "other")
	var held *LockHeldError
	require.True(t, errors.As(err, &held), "got %v", err)
	assert.Equal(t, "test", held.Lock.Holder)

	require.NoError(t, ReleaseExclusiveLock(lockPath))
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err))

	// Releasing twice is harmless.
	require.NoError(t, ReleaseExclusiveLock(lockPath))
	require.NoError(t, ReleaseExclusiveLock(""))
}

func TestAcquireExclusiveLock_ReclaimsStale(t *testing.T) {
	target := filepath.Join(t.TempDir(), "lessons.jsonl")
	hostname, err := os.Hostname()
	require.NoError(t, err)

	stale := ExclusiveLock{Holder: "crashed", PID: -1, Hostname: hostname, StartedAt: time.Now().Add(-time.Hour)}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(LockPath(target), data, 0644))

	lockPath, err := AcquireExclusiveLock(target, "fresh")
	require.NoError(t, err)
	defer ReleaseExclusiveLock(lockPath)

	lock, err := ReadLock(lockPath)
	require.NoError(t, err)
	assert.Equal(t, "fresh", lock.Holder)
}

func TestAcquireExclusiveLock_ReclaimsGarbage(t *testing.T) {
	target := filepath.Join(t.TempDir(), "lessons.jsonl")
	require.NoError(t, os.WriteFile(LockPath(target), []byte("not json"), 0644))

	lockPath, err := AcquireExclusiveLock(target, "fresh")
	require.NoError(t, err)
	assert.NoError(t, ReleaseExclusiveLock(lockPath))
}
