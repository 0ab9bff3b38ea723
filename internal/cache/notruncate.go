package cache

import (
	"sort"

	"github.com/objectfs/metacache/pkg/errors"
	"github.com/objectfs/metacache/pkg/utils"
)

// NotruncateIndex records the base names of pinned files per parent
// directory, so that directory listings can include files that exist locally
// but have not reached the object store yet.
//
// NotruncateIndex is not safe for concurrent use; Cache guards it with its
// own lock.
type NotruncateIndex struct {
	dirs  map[string]map[string]struct{}
	count int
}

// NewNotruncateIndex returns an empty index.
func NewNotruncateIndex() *NotruncateIndex {
	return &NotruncateIndex{dirs: make(map[string]map[string]struct{})}
}

func splitPinnedPath(op, path string) (dir, name string, err error) {
	if path == "" || utils.HasTrailingSlash(path) {
		return "", "", errors.Newf(errors.ErrCodePathInvalid, "cannot pin directory path %q", path).
			WithComponent("notruncate").WithOperation(op).WithContext("path", path)
	}
	dir, name = utils.SplitParent(path)
	return dir, name, nil
}

// Register adds path's base name under its parent directory. Registering a
// name twice is a no-op.
func (x *NotruncateIndex) Register(path string) error {
	dir, name, err := splitPinnedPath("Register", path)
	if err != nil {
		return err
	}
	names, ok := x.dirs[dir]
	if !ok {
		names = make(map[string]struct{})
		x.dirs[dir] = names
	}
	if _, dup := names[name]; !dup {
		names[name] = struct{}{}
		x.count++
	}
	return nil
}

// Unregister removes path's base name. Unknown names are ignored; a
// directory left with no names is dropped.
func (x *NotruncateIndex) Unregister(path string) error {
	dir, name, err := splitPinnedPath("Unregister", path)
	if err != nil {
		return err
	}
	names, ok := x.dirs[dir]
	if !ok {
		return nil
	}
	if _, found := names[name]; found {
		delete(names, name)
		x.count--
	}
	if len(names) == 0 {
		delete(x.dirs, dir)
	}
	return nil
}

// Lookup returns the sorted base names registered under dir. A trailing
// slash is added to dir if missing.
func (x *NotruncateIndex) Lookup(dir string) []string {
	if dir == "" {
		return nil
	}
	names, ok := x.dirs[utils.EnsureTrailingSlash(dir)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of registered names.
func (x *NotruncateIndex) Len() int {
	return x.count
}
