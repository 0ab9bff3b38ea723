package headers

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/objectfs/metacache/pkg/errors"
)

// File type bits, matching the POSIX S_IFMT layout.
const (
	ModeTypeMask uint32 = 0o170000
	ModeDir      uint32 = 0o040000
	ModeRegular  uint32 = 0o100000
	ModeSymlink  uint32 = 0o120000
	ModePermMask uint32 = 0o7777

	defaultDirPerm  uint32 = 0o755
	defaultFilePerm uint32 = 0o644
	blockSize              = 512
)

// Attributes is the stat-equivalent view of an object.
type Attributes struct {
	Mode   uint32
	Size   int64
	UID    uint32
	GID    uint32
	Nlink  uint32
	Blocks int64
	Atime  time.Time
	Mtime  time.Time
	Ctime  time.Time
}

// IsDir reports whether the type bits mark a directory.
func (a Attributes) IsDir() bool { return a.Mode&ModeTypeMask == ModeDir }

// IsSymlink reports whether the type bits mark a symbolic link.
func (a Attributes) IsSymlink() bool { return a.Mode&ModeTypeMask == ModeSymlink }

// IsRegular reports whether the type bits mark a regular file.
func (a Attributes) IsRegular() bool { return a.Mode&ModeTypeMask == ModeRegular }

// Converter turns an object's headers into attributes. forceDir makes the
// result a directory whatever the headers say.
type Converter interface {
	ToAttributes(path string, h Headers, forceDir bool) (Attributes, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(path string, h Headers, forceDir bool) (Attributes, error)

// ToAttributes calls f.
func (f ConverterFunc) ToAttributes(path string, h Headers, forceDir bool) (Attributes, error) {
	return f(path, h, forceDir)
}

// DefaultConverter reads the x-amz-meta-* POSIX headers written by s3fs-style
// clients, falling back to content-length and last-modified.
type DefaultConverter struct {
	// UID and GID are used when the object carries no owner headers.
	UID uint32
	GID uint32
}

// ToAttributes implements Converter.
func (c DefaultConverter) ToAttributes(path string, h Headers, forceDir bool) (Attributes, error) {
	var attr Attributes

	mode, err := c.mode(path, h, forceDir)
	if err != nil {
		return attr, err
	}
	attr.Mode = mode

	if v := h.Get(ContentLength); v != "" && !attr.IsDir() {
		size, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil || size < 0 {
			return attr, errors.Newf(errors.ErrCodeValidationFailed, "invalid content-length %q", v).
				WithComponent("headers").WithContext("path", path)
		}
		attr.Size = size
	}
	attr.Blocks = (attr.Size + blockSize - 1) / blockSize

	if attr.UID, err = c.id(h, MetaUID, c.UID); err != nil {
		return attr, errors.NewError(errors.ErrCodeValidationFailed, "invalid uid header").
			WithComponent("headers").WithContext("path", path).WithCause(err)
	}
	if attr.GID, err = c.id(h, MetaGID, c.GID); err != nil {
		return attr, errors.NewError(errors.ErrCodeValidationFailed, "invalid gid header").
			WithComponent("headers").WithContext("path", path).WithCause(err)
	}

	attr.Mtime = metaTime(h, MetaMtime)
	if attr.Mtime.IsZero() {
		if lm := h.Get(LastModified); lm != "" {
			if t, perr := http.ParseTime(lm); perr == nil {
				attr.Mtime = t
			}
		}
	}
	attr.Ctime = metaTime(h, MetaCtime)
	if attr.Ctime.IsZero() {
		attr.Ctime = attr.Mtime
	}
	attr.Atime = metaTime(h, MetaAtime)
	if attr.Atime.IsZero() {
		attr.Atime = attr.Mtime
	}

	attr.Nlink = 1
	if attr.IsDir() {
		attr.Nlink = 2
	}
	return attr, nil
}

func (c DefaultConverter) mode(path string, h Headers, forceDir bool) (uint32, error) {
	var mode uint32
	if v := h.Get(MetaMode); v != "" {
		m, err := strconv.ParseUint(strings.TrimSpace(v), 0, 32)
		if err != nil {
			return 0, errors.Newf(errors.ErrCodeValidationFailed, "invalid mode header %q", v).
				WithComponent("headers").WithContext("path", path).WithCause(err)
		}
		mode = uint32(m)
	}

	if forceDir {
		perm := mode & ModePermMask
		if perm == 0 {
			perm = defaultDirPerm
		}
		return ModeDir | perm, nil
	}

	if mode&ModeTypeMask != 0 {
		return mode, nil
	}

	if isDirHeaders(path, h) {
		if mode == 0 {
			mode = defaultDirPerm
		}
		return ModeDir | mode, nil
	}
	if mode == 0 {
		mode = defaultFilePerm
	}
	return ModeRegular | mode, nil
}

func isDirHeaders(path string, h Headers) bool {
	if strings.HasSuffix(path, "/") {
		return true
	}
	ct := h.Get(ContentType)
	return strings.HasPrefix(ct, "application/x-directory") || strings.HasPrefix(ct, "httpd/unix-directory")
}

func (c DefaultConverter) id(h Headers, name string, fallback uint32) (uint32, error) {
	v := h.Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// metaTime parses "seconds[.fraction]" headers. Malformed values read as zero.
func metaTime(h Headers, name string) time.Time {
	v := h.Get(name)
	if v == "" {
		return time.Time{}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
