// Package objlist normalizes the names returned by a delimited object
// listing so that every logical directory appears exactly once, whatever
// naming convention the writer of the bucket used ("dir/", a bare "dir"
// reported as a prefix, or the legacy "dir_$folder$" marker).
//
// A List is built fresh for each listing pass and is not safe for
// concurrent use; callers feeding it from several page fetchers must
// serialize Insert themselves.
package objlist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/objectfs/metacache/pkg/errors"
	"github.com/objectfs/metacache/pkg/utils"
)

// FolderSuffix marks a directory placeholder object in buckets written by
// older S3 clients.
const FolderSuffix = "_$folder$"

// ObjType classifies a listed name.
type ObjType int

const (
	// Unknown is a file or symlink: anything that is not a directory.
	Unknown ObjType = iota
	// DirNormal is a directory listed with its trailing slash.
	DirNormal
	// DirNotTerminated is a directory listed without a trailing slash.
	DirNotTerminated
	// DirFolderSuffix is a directory listed through a FolderSuffix marker.
	DirFolderSuffix
)

// IsDir reports whether t is one of the directory types.
func (t ObjType) IsDir() bool {
	return t != Unknown
}

func (t ObjType) String() string {
	switch t {
	case Unknown:
		return "unknown"
	case DirNormal:
		return "dir"
	case DirNotTerminated:
		return "dir-noslash"
	case DirFolderSuffix:
		return "dir-folder"
	default:
		return fmt.Sprintf("ObjType(%d)", int(t))
	}
}

// record is either canonical (origName set, normName empty) or an alias
// (normName names the canonical key).
type record struct {
	origName string
	normName string
	etag     string
	typ      ObjType
}

// List collects the names of one listing pass keyed by normalized name.
type List struct {
	objects map[string]*record
}

// New returns an empty List.
func New() *List {
	return &List{objects: make(map[string]*record)}
}

// Len returns the number of records, aliases included.
func (l *List) Len() int {
	return len(l.objects)
}

// Insert adds a raw listed name. isDir is the caller's hint that the name
// is a directory even without a trailing slash (a common prefix). An empty
// etag keeps any etag already recorded.
func (l *List) Insert(name, etag string, isDir bool) error {
	if name == "" {
		return errors.NewError(errors.ErrCodePathInvalid, "listed name cannot be empty").
			WithComponent("objlist").WithOperation("Insert")
	}

	newName := name
	typ := Unknown
	if pos := strings.Index(name, FolderSuffix); pos >= 0 {
		newName = name[:pos]
		typ = DirFolderSuffix
	}
	if utils.HasTrailingSlash(newName) {
		if !typ.IsDir() {
			typ = DirNormal
		}
	} else if isDir || typ.IsDir() {
		newName += "/"
		if !typ.IsDir() {
			typ = DirNotTerminated
		}
	}

	if typ.IsDir() {
		// The directory form wins over a stray file-form record.
		delete(l.objects, newName[:len(newName)-1])
	} else if _, ok := l.objects[newName+"/"]; ok {
		l.insertAlias(name, newName+"/", typ)
		return nil
	}

	if rec, ok := l.objects[newName]; ok {
		rec.normName = ""
		rec.origName = name
		rec.typ = typ
		if etag != "" {
			rec.etag = etag
		}
	} else {
		l.objects[newName] = &record{origName: name, etag: etag, typ: typ}
	}

	l.insertAlias(name, newName, typ)
	return nil
}

// insertAlias points name at canonical. It does nothing when they match.
func (l *List) insertAlias(name, canonical string, typ ObjType) {
	if name == canonical || name == "" || canonical == "" {
		return
	}
	if rec, ok := l.objects[name]; ok {
		rec.origName = ""
		rec.etag = ""
		rec.normName = canonical
		rec.typ = typ
		return
	}
	l.objects[name] = &record{normName: canonical, typ: typ}
}

// OriginalName returns the raw name a canonical record was listed under, or
// "" for aliases and unknown names.
func (l *List) OriginalName(name string) string {
	if rec, ok := l.objects[name]; ok {
		return rec.origName
	}
	return ""
}

// NormalizedName returns the canonical key for name: the alias target, or
// name itself when name is canonical. Unknown names yield "".
func (l *List) NormalizedName(name string) string {
	rec, ok := l.objects[name]
	if !ok {
		return ""
	}
	if rec.normName == "" {
		return name
	}
	return rec.normName
}

// ETag returns the etag recorded for name.
func (l *List) ETag(name string) string {
	if rec, ok := l.objects[name]; ok {
		return rec.etag
	}
	return ""
}

// Type returns the classification of name, Unknown if not listed.
func (l *List) Type(name string) ObjType {
	if rec, ok := l.objects[name]; ok {
		return rec.typ
	}
	return Unknown
}

// IsDir reports whether name is listed as a directory.
func (l *List) IsDir(name string) bool {
	return l.Type(name).IsDir()
}

// LastName returns the greatest raw name seen, for use as the marker of the
// next page request. ok is false when nothing has been inserted.
func (l *List) LastName() (last string, ok bool) {
	for _, rec := range l.objects {
		if rec.origName != "" && rec.origName > last {
			last = rec.origName
			ok = true
		}
	}
	return last, ok
}

// Names returns the record keys in sorted order. onlyCanonical skips
// aliases; cutSlash strips one trailing slash from every name except "/".
func (l *List) Names(onlyCanonical, cutSlash bool) []string {
	keys := l.sortedKeys()
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if onlyCanonical && l.objects[key].normName != "" {
			continue
		}
		if cutSlash {
			key = utils.TrimTrailingSlash(key)
		}
		out = append(out, key)
	}
	return out
}

// NameMap is Names as a name to type mapping.
func (l *List) NameMap(onlyCanonical, cutSlash bool) map[string]ObjType {
	out := make(map[string]ObjType, len(l.objects))
	for key, rec := range l.objects {
		if onlyCanonical && rec.normName != "" {
			continue
		}
		if cutSlash {
			key = utils.TrimTrailingSlash(key)
		}
		out[key] = rec.typ
	}
	return out
}

func (l *List) sortedKeys() []string {
	keys := make([]string, 0, len(l.objects))
	for key := range l.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
