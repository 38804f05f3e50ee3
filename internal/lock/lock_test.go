package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataRootLock_AcquireAndRelease(t *testing.T) {
	l := New(t.TempDir())

	acquired, err := l.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)

	require.NoError(t, l.Unlock())
}

func TestDataRootLock_SecondHolderBlocked(t *testing.T) {
	dir := t.TempDir()

	first := New(dir)
	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = first.Unlock() }()

	second := New(dir)
	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestDataRootLock_UnlockWithoutLockIsNoop(t *testing.T) {
	l := New(t.TempDir())
	require.NoError(t, l.Unlock())
}
