package headers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/metacache/pkg/errors"
)

func TestHeadersCaseInsensitive(t *testing.T) {
	h := FromMap(map[string]string{"Content-Type": "text/plain", "ETag": `"abc"`})

	assert.Equal(t, "text/plain", h.Get("content-type"))
	assert.Equal(t, `"abc"`, h.Get("etag"))

	h.Set("X-Amz-Meta-Mode", "33188")
	v, ok := h.Lookup("x-amz-meta-mode")
	assert.True(t, ok)
	assert.Equal(t, "33188", v)

	h.Del("CONTENT-TYPE")
	_, ok = h.Lookup("content-type")
	assert.False(t, ok)
}

func TestHeadersClone(t *testing.T) {
	h := FromMap(map[string]string{"etag": "1"})
	c := h.Clone()
	c.Set("etag", "2")
	assert.Equal(t, "1", h.Get("etag"))

	var nilHeaders Headers
	assert.NotNil(t, nilHeaders.Clone())
}

func TestFilter(t *testing.T) {
	h := FromMap(map[string]string{
		"Content-Type":         "text/plain",
		"Content-Length":       "10",
		"ETag":                 "e",
		"Last-Modified":        "Mon, 02 Jan 2006 15:04:05 GMT",
		"X-Amz-Meta-Uid":       "1000",
		"x-amz-version-id":     "v1",
		"Cache-Control":        "no-cache",
		"Content-Disposition":  "inline",
		"x-goog-meta-whatever": "dropped",
	})

	got := h.Filter()
	assert.Len(t, got, 6)
	assert.Equal(t, "1000", got.Get("x-amz-meta-uid"))
	assert.Equal(t, "v1", got.Get("x-amz-version-id"))
	_, ok := got.Lookup("cache-control")
	assert.False(t, ok)
}

func TestCacheable(t *testing.T) {
	tests := map[string]bool{
		"Content-Type":     true,
		"content-length":   true,
		"ETAG":             true,
		"last-modified":    true,
		"x-amz-meta-mtime": true,
		"X-Amz-Storage":    true,
		"content-encoding": false,
		"date":             false,
	}
	for name, want := range tests {
		assert.Equal(t, want, Cacheable(name), name)
	}
}

func TestDefaultConverter(t *testing.T) {
	conv := DefaultConverter{UID: 500, GID: 600}

	t.Run("regular file from headers", func(t *testing.T) {
		h := FromMap(map[string]string{
			"Content-Length":   "1025",
			"X-Amz-Meta-Mode":  "33188", // 0100644
			"X-Amz-Meta-Uid":   "1000",
			"X-Amz-Meta-Gid":   "1001",
			"X-Amz-Meta-Mtime": "1700000000.5",
		})
		attr, err := conv.ToAttributes("dir/file.txt", h, false)
		require.NoError(t, err)
		assert.True(t, attr.IsRegular())
		assert.Equal(t, uint32(0o644), attr.Mode&ModePermMask)
		assert.Equal(t, int64(1025), attr.Size)
		assert.Equal(t, int64(3), attr.Blocks)
		assert.Equal(t, uint32(1000), attr.UID)
		assert.Equal(t, uint32(1001), attr.GID)
		assert.Equal(t, time.Unix(1700000000, 500000000).UTC(), attr.Mtime)
		assert.Equal(t, attr.Mtime, attr.Ctime)
		assert.Equal(t, uint32(1), attr.Nlink)
	})

	t.Run("defaults without posix headers", func(t *testing.T) {
		h := FromMap(map[string]string{
			"Content-Length": "0",
			"Last-Modified":  "Mon, 02 Jan 2006 15:04:05 GMT",
		})
		attr, err := conv.ToAttributes("plain", h, false)
		require.NoError(t, err)
		assert.Equal(t, ModeRegular|0o644, attr.Mode)
		assert.Equal(t, uint32(500), attr.UID)
		assert.Equal(t, uint32(600), attr.GID)
		assert.Equal(t, 2006, attr.Mtime.Year())
	})

	t.Run("trailing slash is a directory", func(t *testing.T) {
		attr, err := conv.ToAttributes("dir/", Headers{}, false)
		require.NoError(t, err)
		assert.True(t, attr.IsDir())
		assert.Equal(t, uint32(2), attr.Nlink)
	})

	t.Run("directory content type", func(t *testing.T) {
		h := FromMap(map[string]string{"Content-Type": "application/x-directory"})
		attr, err := conv.ToAttributes("dir", h, false)
		require.NoError(t, err)
		assert.True(t, attr.IsDir())
	})

	t.Run("forced directory overrides file mode", func(t *testing.T) {
		h := FromMap(map[string]string{"X-Amz-Meta-Mode": "0100600", "Content-Length": "7"})
		attr, err := conv.ToAttributes("dir", h, true)
		require.NoError(t, err)
		assert.True(t, attr.IsDir())
		assert.Equal(t, uint32(0o600), attr.Mode&ModePermMask)
		assert.Equal(t, int64(0), attr.Size)
	})

	t.Run("symlink mode", func(t *testing.T) {
		h := FromMap(map[string]string{"X-Amz-Meta-Mode": "0120777"})
		attr, err := conv.ToAttributes("link", h, false)
		require.NoError(t, err)
		assert.True(t, attr.IsSymlink())
	})

	t.Run("malformed mode fails", func(t *testing.T) {
		h := FromMap(map[string]string{"X-Amz-Meta-Mode": "rwxr-xr-x"})
		_, err := conv.ToAttributes("f", h, false)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
	})

	t.Run("malformed uid fails", func(t *testing.T) {
		h := FromMap(map[string]string{"X-Amz-Meta-Uid": "alice"})
		_, err := conv.ToAttributes("f", h, false)
		require.Error(t, err)
	})

	t.Run("malformed mtime falls back", func(t *testing.T) {
		h := FromMap(map[string]string{
			"X-Amz-Meta-Mtime": "yesterday",
			"Last-Modified":    "Mon, 02 Jan 2006 15:04:05 GMT",
		})
		attr, err := conv.ToAttributes("f", h, false)
		require.NoError(t, err)
		assert.Equal(t, 2006, attr.Mtime.Year())
	})
}

func TestConverterFunc(t *testing.T) {
	var called bool
	f := ConverterFunc(func(path string, h Headers, forceDir bool) (Attributes, error) {
		called = true
		return Attributes{Mode: ModeSymlink | 0o777}, nil
	})
	attr, err := f.ToAttributes("x", nil, false)
	require.NoError(t, err)
	assert.True(t, called)
	assert.True(t, attr.IsSymlink())
}
