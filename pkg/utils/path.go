package utils

import (
	"fmt"
	"path"
	"strings"
)

// ValidateKey checks that a cache or object key is usable. Keys are
// slash-separated and may or may not carry a trailing slash; they must not be
// empty or contain NUL bytes or ".." segments.
//
// Example usage:
//
//	if err := ValidateKey(key); err != nil {
//		return fmt.Errorf("invalid key: %w", err)
//	}
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if strings.ContainsRune(key, 0) {
		return fmt.Errorf("key contains NUL byte: %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return fmt.Errorf("key contains directory traversal: %s", key)
		}
	}
	return nil
}

// HasTrailingSlash reports whether p names a directory in slash form.
func HasTrailingSlash(p string) bool {
	return strings.HasSuffix(p, "/")
}

// EnsureTrailingSlash returns p with exactly one trailing slash added if it
// had none. The empty string is returned unchanged.
func EnsureTrailingSlash(p string) string {
	if p == "" || HasTrailingSlash(p) {
		return p
	}
	return p + "/"
}

// TrimTrailingSlash removes a single trailing slash, except from "/".
func TrimTrailingSlash(p string) string {
	if len(p) > 1 && HasTrailingSlash(p) {
		return p[:len(p)-1]
	}
	return p
}

// ToggleSlash returns the slash-toggled counterpart of p ("a" <-> "a/").
// ok is false for "" and "/", which have no counterpart.
func ToggleSlash(p string) (string, bool) {
	if p == "" || p == "/" {
		return "", false
	}
	if HasTrailingSlash(p) {
		return p[:len(p)-1], true
	}
	return p + "/", true
}

// SplitParent splits a file path into its slash-terminated parent directory
// and base name. "/x" yields ("/", "x"); a name without any slash yields
// ("./", name), matching path.Dir.
func SplitParent(p string) (dir, name string) {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return "./", p
	}
	return p[:idx+1], p[idx+1:]
}

// JoinKey joins a prefix and a relative name with exactly one slash.
// Trailing slashes on name are preserved.
func JoinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	dirSuffix := HasTrailingSlash(name) && name != "/"
	joined := path.Join(prefix, name)
	if dirSuffix {
		joined += "/"
	}
	return joined
}
