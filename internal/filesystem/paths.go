package filesystem

import (
	"path"
	"strings"

	"github.com/objectfs/metacache/pkg/errors"
	"github.com/objectfs/metacache/pkg/utils"
)

// pathMapper translates between filesystem paths ("/a/b") and object keys
// under a root prefix ("prefix/a/b").
type pathMapper struct {
	rootPrefix string // "" or slash-terminated
}

func newPathMapper(rootPrefix string) pathMapper {
	rootPrefix = strings.Trim(rootPrefix, "/")
	if rootPrefix != "" {
		rootPrefix += "/"
	}
	return pathMapper{rootPrefix: rootPrefix}
}

// cleanPath validates p and returns it absolute and cleaned, without a
// trailing slash except for the root.
func cleanPath(p string) (string, error) {
	if p == "" {
		return "/", nil
	}
	if err := utils.ValidateKey(p); err != nil {
		return "", errors.NewError(errors.ErrCodePathInvalid, err.Error()).
			WithComponent("filesystem").WithContext("path", p)
	}
	clean := path.Clean("/" + p)
	return clean, nil
}

// pathToKey converts a filesystem path to an object key
func (m pathMapper) pathToKey(p string) string {
	clean := path.Clean("/" + p)
	if clean == "/" {
		return m.rootPrefix
	}
	return m.rootPrefix + strings.TrimPrefix(clean, "/")
}

// dirPrefix returns the listing prefix for directory p.
func (m pathMapper) dirPrefix(p string) string {
	key := m.pathToKey(p)
	if key == "" {
		return ""
	}
	return utils.EnsureTrailingSlash(key)
}

// childPath joins a directory path and a child name.
func childPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return utils.TrimTrailingSlash(dir) + "/" + name
}
