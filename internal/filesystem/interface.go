// Package filesystem is the consumer side of the metadata cache: the
// stat, readlink and readdir calls a filesystem front end makes, answered
// from the cache where possible and from the object store otherwise.
package filesystem

import (
	"context"
	"os"
	"time"

	"github.com/objectfs/metacache/internal/cache"
	"github.com/objectfs/metacache/internal/headers"
)

// MetadataService defines the metadata operations a protocol handler needs.
// *Metadata implements it.
type MetadataService interface {
	GetAttr(ctx context.Context, path string) (cache.Entry, error)
	ReadLink(ctx context.Context, path string) (string, error)
	ReadDir(ctx context.Context, path string) ([]DirEntry, error)

	Open(ctx context.Context, path string) (*cache.PinGuard, error)
	Create(ctx context.Context, path string, h headers.Headers) (*cache.PinGuard, error)
	UpdateHeaders(path string, h headers.Headers) error
	Invalidate(path string)
}

// DirEntry represents a directory entry returned by ReadDir
type DirEntry struct {
	Name    string
	Type    FileType
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
	IsDir   bool

	// Object store details
	Key  string
	ETag string

	// Pinned entries are known locally but may not be in the store yet.
	Pinned bool
	// HasAttr is false when attributes could not be fetched.
	HasAttr bool
}

// FileType represents the type of a file system entry
type FileType uint8

const (
	FileTypeRegular FileType = iota
	FileTypeDirectory
	FileTypeSymlink
	FileTypeUnknown
)

// String returns a short name for the type.
func (t FileType) String() string {
	switch t {
	case FileTypeRegular:
		return "file"
	case FileTypeDirectory:
		return "dir"
	case FileTypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

func fileTypeOf(a headers.Attributes) FileType {
	switch {
	case a.IsDir():
		return FileTypeDirectory
	case a.IsSymlink():
		return FileTypeSymlink
	case a.IsRegular():
		return FileTypeRegular
	default:
		return FileTypeUnknown
	}
}

// FileMode converts POSIX mode bits to an os.FileMode.
func FileMode(mode uint32) os.FileMode {
	m := os.FileMode(mode & headers.ModePermMask & 0o777)
	switch mode & headers.ModeTypeMask {
	case headers.ModeDir:
		m |= os.ModeDir
	case headers.ModeSymlink:
		m |= os.ModeSymlink
	}
	return m
}

// FilesystemError records the operation and path of a failure
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
