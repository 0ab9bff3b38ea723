package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/metacache/pkg/errors"
)

func TestNotruncateIndex(t *testing.T) {
	x := NewNotruncateIndex()

	require.NoError(t, x.Register("/dir/b.txt"))
	require.NoError(t, x.Register("/dir/a.txt"))
	require.NoError(t, x.Register("/dir/a.txt"))
	require.NoError(t, x.Register("/top"))

	assert.Equal(t, []string{"a.txt", "b.txt"}, x.Lookup("/dir/"))
	assert.Equal(t, []string{"a.txt", "b.txt"}, x.Lookup("/dir"), "trailing slash is added")
	assert.Equal(t, []string{"top"}, x.Lookup("/"))
	assert.Equal(t, 3, x.Len())

	require.NoError(t, x.Unregister("/dir/a.txt"))
	require.NoError(t, x.Unregister("/dir/never"))
	require.NoError(t, x.Unregister("/elsewhere/x"))
	assert.Equal(t, []string{"b.txt"}, x.Lookup("/dir/"))

	require.NoError(t, x.Unregister("/dir/b.txt"))
	assert.Nil(t, x.Lookup("/dir/"))
	_, ok := x.dirs["/dir/"]
	assert.False(t, ok, "empty directories are removed")
	assert.Equal(t, 1, x.Len())

	assert.Nil(t, x.Lookup(""))
}

func TestNotruncateIndexRejectsDirectories(t *testing.T) {
	x := NewNotruncateIndex()

	for _, p := range []string{"", "dir/", "/"} {
		err := x.Register(p)
		require.Error(t, err, p)
		assert.True(t, errors.HasCode(err, errors.ErrCodePathInvalid), p)

		err = x.Unregister(p)
		require.Error(t, err, p)
	}
	assert.Zero(t, x.Len())
}

func TestNotruncateIndexLookupCopies(t *testing.T) {
	x := NewNotruncateIndex()
	require.NoError(t, x.Register("d/f"))

	names := x.Lookup("d")
	names[0] = "mutated"
	assert.Equal(t, []string{"f"}, x.Lookup("d"))
}

func TestPinnedListingOverlay(t *testing.T) {
	c, _ := newTestCache(t)

	// A file created locally and pinned before upload shows up in its
	// directory's overlay even though storage knows nothing about it.
	guard, err := c.InsertPinned("dir/newfile", fileHeaders(0), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"newfile"}, c.PinnedNames("dir/"))

	c.Delete("dir/newfile")
	assert.Empty(t, c.PinnedNames("dir/"), "delete drops index linkage")
	guard.Release()

	require.NoError(t, c.Insert("dir/", fileHeaders(0), false, true))
	assert.Empty(t, c.PinnedNames("dir/"), "directory keys are never indexed")
}
