package filesystem

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	concpool "github.com/sourcegraph/conc/pool"

	"github.com/objectfs/metacache/internal/cache"
	"github.com/objectfs/metacache/internal/config"
	"github.com/objectfs/metacache/internal/headers"
	"github.com/objectfs/metacache/internal/objlist"
	"github.com/objectfs/metacache/pkg/errors"
	"github.com/objectfs/metacache/pkg/types"
	"github.com/objectfs/metacache/pkg/utils"
)

// Config configures a Metadata service
type Config struct {
	RootPrefix          string
	PageSize            int
	PrefetchAttributes  bool
	PrefetchConcurrency int
	Logger              *slog.Logger
}

// ConfigFrom builds a Config from the listing and storage sections.
func ConfigFrom(listing config.ListingConfig, s3cfg config.S3Config) Config {
	return Config{
		RootPrefix:          s3cfg.Prefix,
		PageSize:            listing.PageSize,
		PrefetchAttributes:  listing.PrefetchAttributes,
		PrefetchConcurrency: listing.PrefetchConcurrency,
	}
}

// Metadata answers attribute, link and directory queries cache-aside: the
// cache is consulted first and backend results are written back to it.
// Backend calls are never made from inside a cache call.
type Metadata struct {
	backend     types.Backend
	cache       *cache.Cache
	paths       pathMapper
	pageSize    int
	prefetch    bool
	concurrency int
	logger      *slog.Logger
}

var _ MetadataService = (*Metadata)(nil)

// NewMetadata creates a metadata service over backend and c
func NewMetadata(backend types.Backend, c *cache.Cache, cfg Config) *Metadata {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.PrefetchConcurrency <= 0 {
		cfg.PrefetchConcurrency = 16
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Metadata{
		backend:     backend,
		cache:       c,
		paths:       newPathMapper(cfg.RootPrefix),
		pageSize:    cfg.PageSize,
		prefetch:    cfg.PrefetchAttributes,
		concurrency: cfg.PrefetchConcurrency,
		logger:      logger.With("component", "filesystem"),
	}
}

// Cache returns the underlying metadata cache
func (m *Metadata) Cache() *cache.Cache {
	return m.cache
}

// GetAttr returns the attributes of path. A cached known-absent entry
// answers FILE_NOT_FOUND without touching the backend.
func (m *Metadata) GetAttr(ctx context.Context, path string) (cache.Entry, error) {
	clean, err := cleanPath(path)
	if err != nil {
		return cache.Entry{}, &FilesystemError{Op: "getattr", Path: path, Err: err}
	}

	entry, err := m.stat(ctx, clean, "")
	if err != nil {
		return cache.Entry{}, &FilesystemError{Op: "getattr", Path: clean, Err: err}
	}
	return entry, nil
}

// ReadLink returns the target of the symbolic link at path
func (m *Metadata) ReadLink(ctx context.Context, path string) (string, error) {
	clean, err := cleanPath(path)
	if err != nil {
		return "", &FilesystemError{Op: "readlink", Path: path, Err: err}
	}

	if target, ok := m.cache.LookupSymlink(clean); ok {
		return target, nil
	}

	entry, err := m.stat(ctx, clean, "")
	if err != nil {
		return "", &FilesystemError{Op: "readlink", Path: clean, Err: err}
	}
	if !entry.Attr.IsSymlink() {
		return "", &FilesystemError{Op: "readlink", Path: clean, Err: errors.NewError(errors.ErrCodeNotSymlink, "not a symbolic link").
			WithComponent("filesystem").WithContext("path", clean)}
	}

	data, err := m.backend.GetObject(ctx, m.paths.pathToKey(clean))
	if err != nil {
		return "", &FilesystemError{Op: "readlink", Path: clean, Err: err}
	}

	target := string(data)
	if err := m.cache.InsertSymlink(clean, target); err != nil {
		m.logger.Debug("symlink not cached", "path", clean, "error", err)
	}
	return target, nil
}

// ReadDir lists the entries directly under path. The store listing is
// normalized, completed with implied subdirectories and merged with pinned
// files that may not be in the store yet. With prefetch enabled each
// entry's attributes are fetched concurrently and cached.
func (m *Metadata) ReadDir(ctx context.Context, path string) ([]DirEntry, error) {
	clean, err := cleanPath(path)
	if err != nil {
		return nil, &FilesystemError{Op: "readdir", Path: path, Err: err}
	}
	dir := utils.EnsureTrailingSlash(clean)
	prefix := m.paths.dirPrefix(clean)

	list, err := m.listAll(ctx, prefix)
	if err != nil {
		return nil, &FilesystemError{Op: "readdir", Path: clean, Err: err}
	}

	names := objlist.Hierarchize(list.Names(true, false), true)
	entries := make([]DirEntry, 0, len(names))
	index := make(map[string]int, len(names))

	for _, name := range names {
		base := utils.TrimTrailingSlash(name)
		if base == "" || strings.Contains(base, "/") {
			continue
		}
		if _, ok := index[base]; ok {
			continue
		}
		isDir := utils.HasTrailingSlash(name)
		typ := FileTypeUnknown
		if isDir {
			typ = FileTypeDirectory
		}
		index[base] = len(entries)
		entries = append(entries, DirEntry{
			Name:  base,
			Type:  typ,
			IsDir: isDir,
			Key:   prefix + name,
			ETag:  list.ETag(name),
		})
	}

	for _, name := range m.cache.PinnedNames(dir) {
		if i, ok := index[name]; ok {
			entries[i].Pinned = true
			continue
		}
		index[name] = len(entries)
		entries = append(entries, DirEntry{
			Name:   name,
			Type:   FileTypeUnknown,
			Key:    prefix + name,
			Pinned: true,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	if m.prefetch && len(entries) > 0 {
		entries, err = m.prefetchAttributes(ctx, clean, entries)
		if err != nil {
			return nil, &FilesystemError{Op: "readdir", Path: clean, Err: err}
		}
	}

	m.logger.Debug("directory listed", "path", dir, "entries", len(entries))
	return entries, nil
}

// Open pins path for the lifetime of a handle. The guard must be released
// when the handle closes. With caching disabled the guard holds nothing.
func (m *Metadata) Open(ctx context.Context, path string) (*cache.PinGuard, error) {
	clean, err := cleanPath(path)
	if err != nil {
		return nil, &FilesystemError{Op: "open", Path: path, Err: err}
	}

	entry, err := m.stat(ctx, clean, "")
	if err != nil {
		return nil, &FilesystemError{Op: "open", Path: clean, Err: err}
	}

	key := clean
	if entry.Attr.IsDir() && clean != "/" {
		key = clean + "/"
	}
	guard := m.cache.Pin(clean)
	if !guard.Held() && key != clean {
		guard = m.cache.Pin(key)
	}
	if guard.Held() {
		return guard, nil
	}

	// Evicted since stat, or never cached at capacity 0.
	guard, err = m.cache.InsertPinned(key, entry.Headers, entry.ForcedDir)
	if err != nil {
		return nil, &FilesystemError{Op: "open", Path: clean, Err: err}
	}
	return guard, nil
}

// Create records a new local file that is not in the store yet. The entry
// is pinned, so it neither expires nor gets evicted and it shows up in
// ReadDir of its parent until the guard is released. Missing size, mode and
// mtime headers are filled with an empty regular file's values.
func (m *Metadata) Create(ctx context.Context, path string, h headers.Headers) (*cache.PinGuard, error) {
	clean, err := cleanPath(path)
	if err != nil {
		return nil, &FilesystemError{Op: "create", Path: path, Err: err}
	}
	if clean == "/" {
		return nil, &FilesystemError{Op: "create", Path: clean, Err: errors.NewError(errors.ErrCodePathInvalid, "cannot create the root").
			WithComponent("filesystem")}
	}

	parent, _ := utils.SplitParent(clean)
	if parent != "/" {
		pe, err := m.stat(ctx, utils.TrimTrailingSlash(parent), "")
		if err != nil {
			return nil, &FilesystemError{Op: "create", Path: clean, Err: err}
		}
		if !pe.Attr.IsDir() {
			return nil, &FilesystemError{Op: "create", Path: clean, Err: errors.NewError(errors.ErrCodePathInvalid, "parent is not a directory").
				WithComponent("filesystem").WithContext("parent", parent)}
		}
	}

	hh := h.Clone()
	if _, ok := hh.Lookup(headers.ContentLength); !ok {
		hh.Set(headers.ContentLength, "0")
	}
	if _, ok := hh.Lookup(headers.MetaMode); !ok {
		hh.Set(headers.MetaMode, strconv.FormatUint(uint64(headers.ModeRegular|0o644), 10))
	}
	if _, ok := hh.Lookup(headers.MetaMtime); !ok {
		hh.Set(headers.MetaMtime, strconv.FormatInt(time.Now().Unix(), 10))
	}

	guard, err := m.cache.InsertPinned(clean, hh, false)
	if err != nil {
		return nil, &FilesystemError{Op: "create", Path: clean, Err: err}
	}
	return guard, nil
}

// UpdateHeaders merges locally changed headers, such as a new mode or size
// on an open file, into the cached entry for path.
func (m *Metadata) UpdateHeaders(path string, h headers.Headers) error {
	clean, err := cleanPath(path)
	if err != nil {
		return &FilesystemError{Op: "update", Path: path, Err: err}
	}
	if err := m.cache.UpdateHeaders(clean, h); err != nil {
		return &FilesystemError{Op: "update", Path: clean, Err: err}
	}
	return nil
}

// Invalidate drops everything cached about path
func (m *Metadata) Invalidate(path string) {
	clean, err := cleanPath(path)
	if err != nil {
		return
	}
	m.cache.Delete(clean)
	m.cache.DeleteSymlink(clean)
}

// stat is GetAttr on a clean path. A non-empty etag invalidates a cached
// entry whose ETag differs.
func (m *Metadata) stat(ctx context.Context, p, etag string) (cache.Entry, error) {
	if p == "/" {
		return m.statRoot()
	}

	entry, res := m.cache.Lookup(p, true, etag)
	switch res {
	case cache.Hit:
		return entry, nil
	case cache.KnownAbsent:
		return cache.Entry{}, notFound(p)
	}
	return m.fetch(ctx, p)
}

func (m *Metadata) statRoot() (cache.Entry, error) {
	if entry, res := m.cache.Lookup("/", false, ""); res == cache.Hit {
		return entry, nil
	}
	return m.populate("/", nil, true)
}

// fetch resolves p against the store in the order: object, directory
// object, legacy folder marker, any object below p. Nothing found caches a
// negative entry.
func (m *Metadata) fetch(ctx context.Context, p string) (cache.Entry, error) {
	key := m.paths.pathToKey(p)

	h, err := m.backend.HeadObject(ctx, key)
	if err == nil {
		return m.populate(p, headers.FromMap(h), false)
	}
	if !errors.IsNotFound(err) {
		return cache.Entry{}, err
	}

	h, err = m.backend.HeadObject(ctx, key+"/")
	if err == nil {
		return m.populate(p+"/", headers.FromMap(h), false)
	}
	if !errors.IsNotFound(err) {
		return cache.Entry{}, err
	}

	h, err = m.backend.HeadObject(ctx, key+objlist.FolderSuffix)
	if err == nil {
		return m.populate(p+"/", headers.FromMap(h), true)
	}
	if !errors.IsNotFound(err) {
		return cache.Entry{}, err
	}

	page, err := m.backend.ListPage(ctx, key+"/", "", 1)
	if err != nil {
		return cache.Entry{}, err
	}
	if len(page.Entries) > 0 {
		return m.populate(p+"/", nil, true)
	}

	if err := m.cache.InsertNegative(p); err != nil {
		m.logger.Debug("negative entry not cached", "path", p, "error", err)
	}
	return cache.Entry{}, notFound(p)
}

// populate caches key and returns its attributes. The result does not
// depend on the insert succeeding, so a disabled cache still answers.
func (m *Metadata) populate(key string, h headers.Headers, forcedDir bool) (cache.Entry, error) {
	if err := m.cache.Insert(key, h, forcedDir, false); err != nil {
		return cache.Entry{}, err
	}
	return m.cache.Attributes(key, h, forcedDir)
}

// statListedDir returns attributes for a directory the listing reported.
// The listing proves it exists, so a stale negative entry is replaced.
func (m *Metadata) statListedDir(p string) (cache.Entry, error) {
	if entry, res := m.cache.Lookup(p, true, ""); res == cache.Hit {
		return entry, nil
	}
	m.cache.Delete(p)
	return m.populate(p+"/", nil, true)
}

// listAll fetches every page under prefix. The marker for the next page is
// the greatest name seen so far, or the backend's own marker when that is
// further along.
func (m *Metadata) listAll(ctx context.Context, prefix string) (*objlist.List, error) {
	list := objlist.New()
	marker := ""

	for {
		page, err := m.backend.ListPage(ctx, prefix, marker, m.pageSize)
		if err != nil {
			return nil, err
		}
		for _, e := range page.Entries {
			if err := list.Insert(e.Name, e.ETag, e.IsDir); err != nil {
				m.logger.Debug("listing entry skipped", "prefix", prefix, "name", e.Name, "error", err)
			}
		}
		if !page.Truncated {
			return list, nil
		}

		next := page.NextMarker
		if last, ok := list.LastName(); ok && prefix+last > next {
			next = prefix + last
		}
		if next == "" || next <= marker {
			return nil, errors.NewError(errors.ErrCodeInternalError, "listing marker did not advance").
				WithComponent("filesystem").WithContext("prefix", prefix).WithContext("marker", marker)
		}
		marker = next
	}
}

// prefetchAttributes fills in attributes with at most concurrency backend
// calls in flight. Entries that turn out not to exist are dropped.
func (m *Metadata) prefetchAttributes(ctx context.Context, dir string, entries []DirEntry) ([]DirEntry, error) {
	missing := make([]bool, len(entries))

	p := concpool.New().WithErrors().WithMaxGoroutines(m.concurrency)
	for i := range entries {
		i := i
		p.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			e := &entries[i]
			child := childPath(dir, e.Name)

			var (
				entry cache.Entry
				err   error
			)
			if e.IsDir && !e.Pinned {
				entry, err = m.statListedDir(child)
			} else {
				entry, err = m.stat(ctx, child, e.ETag)
			}

			switch {
			case err == nil:
				e.fill(entry.Attr)
			case errors.IsNotFound(err):
				missing[i] = true
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				m.logger.Warn("attribute prefetch failed", "path", child, "error", err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	out := entries[:0]
	for i, e := range entries {
		if !missing[i] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (e *DirEntry) fill(a headers.Attributes) {
	e.Type = fileTypeOf(a)
	e.IsDir = a.IsDir()
	e.Size = a.Size
	e.Mode = FileMode(a.Mode)
	e.ModTime = a.Mtime
	e.HasAttr = true
}

func notFound(p string) error {
	return errors.NewError(errors.ErrCodeFileNotFound, "no such file or directory").
		WithComponent("filesystem").WithContext("path", p)
}
