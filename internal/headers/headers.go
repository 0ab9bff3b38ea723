// Package headers holds the object metadata exchanged between the storage
// backend and the metadata cache: a case-insensitive header map and the
// POSIX attributes derived from it.
package headers

import "strings"

// Headers maps lower-cased header names to values. Use the methods rather
// than indexing directly so that names stay case-insensitive.
type Headers map[string]string

// Header names the cache keeps and the converter reads.
const (
	ContentType   = "content-type"
	ContentLength = "content-length"
	ETag          = "etag"
	LastModified  = "last-modified"

	AmzPrefix  = "x-amz"
	MetaPrefix = "x-amz-meta-"
	MetaMode   = MetaPrefix + "mode"
	MetaUID    = MetaPrefix + "uid"
	MetaGID    = MetaPrefix + "gid"
	MetaMtime  = MetaPrefix + "mtime"
	MetaCtime  = MetaPrefix + "ctime"
	MetaAtime  = MetaPrefix + "atime"
)

// FromMap copies m, folding every name to lower case.
func FromMap(m map[string]string) Headers {
	h := make(Headers, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

// Get returns the value for name, or "".
func (h Headers) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Lookup returns the value for name and whether it was present.
func (h Headers) Lookup(name string) (string, bool) {
	v, ok := h[strings.ToLower(name)]
	return v, ok
}

// Set stores value under name.
func (h Headers) Set(name, value string) {
	h[strings.ToLower(name)] = value
}

// Del removes name.
func (h Headers) Del(name string) {
	delete(h, strings.ToLower(name))
}

// Clone returns an independent copy. A nil map clones to an empty one.
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Cacheable reports whether the metadata cache retains the named header.
func Cacheable(name string) bool {
	name = strings.ToLower(name)
	switch name {
	case ContentType, ContentLength, ETag, LastModified:
		return true
	}
	return strings.HasPrefix(name, AmzPrefix)
}

// Filter returns the cacheable subset of h.
func (h Headers) Filter() Headers {
	out := make(Headers)
	for k, v := range h {
		if Cacheable(k) {
			out.Set(k, v)
		}
	}
	return out
}
