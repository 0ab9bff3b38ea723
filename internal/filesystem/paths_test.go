package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/metacache/pkg/errors"
)

func TestPathMapper(t *testing.T) {
	tests := []struct {
		name       string
		rootPrefix string
		path       string
		wantKey    string
		wantPrefix string
	}{
		{"root no prefix", "", "/", "", ""},
		{"file no prefix", "", "/a/b.txt", "a/b.txt", "a/b.txt/"},
		{"root with prefix", "/data/", "/", "data/", "data/"},
		{"file with prefix", "data", "/a/b.txt", "data/a/b.txt", "data/a/b.txt/"},
		{"relative path", "data", "a", "data/a", "data/a/"},
		{"trailing slash", "data", "/dir/", "data/dir", "data/dir/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newPathMapper(tt.rootPrefix)
			assert.Equal(t, tt.wantKey, m.pathToKey(tt.path))
			assert.Equal(t, tt.wantPrefix, m.dirPrefix(tt.path))
		})
	}
}

func TestCleanPath(t *testing.T) {
	for in, want := range map[string]string{
		"":          "/",
		"/":         "/",
		"a/b":       "/a/b",
		"/a//b/":    "/a/b",
		"/a/./b":    "/a/b",
		"/dir/sub/": "/dir/sub",
	} {
		got, err := cleanPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := cleanPath("/a/../../b")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePathInvalid))
}

func TestChildPath(t *testing.T) {
	assert.Equal(t, "/a", childPath("/", "a"))
	assert.Equal(t, "/d/a", childPath("/d", "a"))
	assert.Equal(t, "/d/a", childPath("/d/", "a"))
}

func TestFileMode(t *testing.T) {
	assert.Equal(t, "drwxr-xr-x", FileMode(0o040755).String())
	assert.Equal(t, "-rw-r--r--", FileMode(0o100644).String())
	assert.Equal(t, "Lrwxrwxrwx", FileMode(0o120777).String())
	assert.Equal(t, "dir", FileTypeDirectory.String())
}
