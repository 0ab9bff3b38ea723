package cache

import (
	"math"
	"strings"
	"time"

	"github.com/objectfs/metacache/internal/headers"
	"github.com/objectfs/metacache/pkg/utils"
)

// Result classifies a stat cache lookup.
type Result int

const (
	// Miss means nothing usable is cached.
	Miss Result = iota
	// Hit means a positive entry was served.
	Hit
	// KnownAbsent means the path is cached as not existing.
	KnownAbsent
)

func (r Result) String() string {
	switch r {
	case Hit:
		return "hit"
	case KnownAbsent:
		return "absent"
	default:
		return "miss"
	}
}

// Entry is a copy of a cached stat record.
type Entry struct {
	Attr      headers.Attributes
	Headers   headers.Headers
	ForcedDir bool
}

// statEntry represents an item in the stat cache
type statEntry struct {
	attr      headers.Attributes
	meta      headers.Headers
	forcedDir bool
	negative  bool
	pinCount  int
	createdAt time.Time
	hitCount  uint64
}

func (e *statEntry) touch(now time.Time, mode TTLMode) {
	if e.hitCount < math.MaxUint64 {
		e.hitCount++
	}
	if mode == TTLRefreshOnHit {
		e.createdAt = now
	}
}

// findStatLocked probes key+"/" first when overcheck is set, then key.
func (c *Cache) findStatLocked(key string, overcheck bool) (string, *statEntry) {
	if overcheck && !utils.HasTrailingSlash(key) {
		if e, ok := c.stat[key+"/"]; ok {
			return key + "/", e
		}
	}
	if e, ok := c.stat[key]; ok {
		return key, e
	}
	return "", nil
}

// Lookup returns the cached attributes for key. With overcheck set the
// directory form key+"/" is tried first. A non-empty etag is compared with
// the cached ETag header, when there is one, and a mismatch drops the entry.
func (c *Cache) Lookup(key string, overcheck bool, etag string) (Entry, Result) {
	if key == "" {
		return Entry{}, Miss
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path, e := c.findStatLocked(key, overcheck)
	if e == nil {
		return Entry{}, c.missLocked()
	}

	now := c.clock.Now()
	if e.pinCount == 0 && c.expiredLocked(e.createdAt, now) {
		c.logger.Debug("stat cache entry expired", "path", path)
		c.dropStaleLocked(path)
		c.recordEvictionLocked(statCacheName, "ttl", 1)
		return Entry{}, c.missLocked()
	}

	if e.negative {
		if !c.negative {
			c.dropStaleLocked(path)
			return Entry{}, c.missLocked()
		}
		e.touch(now, c.ttlMode)
		c.stats.NegativeHits++
		c.rec.RecordLookup(statCacheName, KnownAbsent.String())
		return Entry{}, KnownAbsent
	}

	if etag != "" {
		if cached, ok := e.meta.Lookup(headers.ETag); ok && trimETag(cached) != trimETag(etag) {
			c.logger.Debug("stat cache etag mismatch", "path", path, "cached", cached, "etag", etag)
			c.dropStaleLocked(path)
			c.recordEvictionLocked(statCacheName, "etag", 1)
			return Entry{}, c.missLocked()
		}
	}

	e.touch(now, c.ttlMode)
	c.stats.Hits++
	c.rec.RecordLookup(statCacheName, Hit.String())
	return Entry{
		Attr:      e.attr,
		Headers:   e.meta.Clone(),
		ForcedDir: e.forcedDir,
	}, Hit
}

// IsKnownAbsent reports whether key is cached as not existing. Expired
// entries are dropped; a negative entry found while negative caching is off
// is dropped and reported as unknown.
func (c *Cache) IsKnownAbsent(key string, overcheck bool) bool {
	if key == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path, e := c.findStatLocked(key, overcheck)
	if e == nil {
		return false
	}
	now := c.clock.Now()
	if e.pinCount == 0 && c.expiredLocked(e.createdAt, now) {
		c.dropStaleLocked(path)
		c.recordEvictionLocked(statCacheName, "ttl", 1)
		return false
	}
	if !e.negative {
		return false
	}
	if !c.negative {
		c.dropStaleLocked(path)
		return false
	}
	if c.ttlMode == TTLRefreshOnHit {
		e.createdAt = now
	}
	return true
}

// Insert caches key's attributes, converted from h. Only whitelisted headers
// are kept. forcedDir makes the entry a directory whatever h says; pinned
// exempts it from expiry and eviction until unpinned. With capacity 0 only
// pinned entries are stored.
func (c *Cache) Insert(key string, h headers.Headers, forcedDir, pinned bool) error {
	if key == "" {
		return invalidKey("Insert")
	}

	meta := h.Filter()
	attr, err := c.conv.ToAttributes(key, meta, forcedDir)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity < 1 && !pinned {
		return nil
	}

	c.replaceSlotLocked(key)

	e := &statEntry{
		attr:      attr,
		meta:      meta,
		forcedDir: forcedDir,
		createdAt: c.clock.Now(),
	}
	c.stat[key] = e

	if pinned {
		e.pinCount = 1
		if rerr := c.pinned.Register(key); rerr != nil {
			c.logger.Debug("pinned entry not indexed", "path", key, "error", rerr)
		}
	}
	if !attr.IsSymlink() {
		delete(c.symlinks, key)
	}

	c.rec.RecordInsert(statCacheName, "positive")
	c.updateGaugesLocked()
	c.logger.Debug("stat cache insert", "path", key, "mode", attr.Mode, "pinned", pinned)
	return nil
}

// InsertNegative records that key does not exist. It is a no-op when
// negative caching is off or capacity is 0.
func (c *Cache) InsertNegative(key string) error {
	if key == "" {
		return invalidKey("InsertNegative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.negative || c.capacity < 1 {
		return nil
	}

	c.replaceSlotLocked(key)
	c.stat[key] = &statEntry{
		meta:      headers.Headers{},
		negative:  true,
		createdAt: c.clock.Now(),
	}
	delete(c.symlinks, key)

	c.rec.RecordInsert(statCacheName, "negative")
	c.updateGaugesLocked()
	c.logger.Debug("stat cache negative insert", "path", key)
	return nil
}

// replaceSlotLocked makes room for key: an existing record (and its
// slash-toggled twin) is dropped, otherwise the cache is trimmed if full.
func (c *Cache) replaceSlotLocked(key string) {
	if _, ok := c.stat[key]; ok {
		c.deleteStatLocked(key)
		return
	}
	c.truncateStatLocked(true)
}

// UpdateHeaders merges h into key's cached headers: empty values delete,
// other whitelisted values overwrite. The entry's lifetime restarts and its
// mode is recomputed. Missing and negative entries are left alone.
func (c *Cache) UpdateHeaders(key string, h headers.Headers) error {
	if key == "" {
		return invalidKey("UpdateHeaders")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity < 1 {
		return nil
	}
	e, ok := c.stat[key]
	if !ok || e.negative {
		return nil
	}

	merged := e.meta.Clone()
	for name, value := range h {
		if value == "" {
			merged.Del(name)
		} else if headers.Cacheable(name) {
			merged.Set(name, value)
		}
	}

	attr, err := c.conv.ToAttributes(key, merged, e.forcedDir)
	if err != nil {
		return err
	}

	e.meta = merged
	e.attr.Mode = attr.Mode
	e.createdAt = c.clock.Now()
	if !attr.IsSymlink() {
		delete(c.symlinks, key)
	}
	c.updateGaugesLocked()
	return nil
}

// SetPinned adjusts key's pin count. Pins are reference counted; unpinning
// below zero is ignored. Missing keys are ignored.
func (c *Cache) SetPinned(key string, pinned bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPinnedLocked(key, pinned)
}

func (c *Cache) setPinnedLocked(key string, pinned bool) bool {
	e, ok := c.stat[key]
	if !ok {
		return false
	}
	if pinned {
		if e.pinCount == 0 {
			if err := c.pinned.Register(key); err != nil {
				c.logger.Debug("pinned entry not indexed", "path", key, "error", err)
			}
		}
		e.pinCount++
	} else if e.pinCount > 0 {
		e.pinCount--
		if e.pinCount == 0 {
			_ = c.pinned.Unregister(key)
		}
	}
	c.updateGaugesLocked()
	return true
}

// Delete drops key and its slash-toggled counterpart from the stat cache.
func (c *Cache) Delete(key string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteStatLocked(key)
	c.updateGaugesLocked()
}

func (c *Cache) deleteStatLocked(key string) {
	c.removeStatLocked(key)
	if twin, ok := utils.ToggleSlash(key); ok {
		c.removeStatLocked(twin)
	}
}

// dropStaleLocked removes an expired or outdated entry found by a lookup.
// Its slash-toggled twin goes with it unless the twin is pinned.
func (c *Cache) dropStaleLocked(key string) {
	c.removeStatLocked(key)
	if twin, ok := utils.ToggleSlash(key); ok {
		if e, found := c.stat[twin]; found && e.pinCount == 0 {
			c.removeStatLocked(twin)
		}
	}
}

func (c *Cache) removeStatLocked(key string) {
	if _, ok := c.stat[key]; !ok {
		return
	}
	delete(c.stat, key)
	if !utils.HasTrailingSlash(key) {
		_ = c.pinned.Unregister(key)
	}
}

func (c *Cache) missLocked() Result {
	c.stats.Misses++
	c.rec.RecordLookup(statCacheName, Miss.String())
	return Miss
}

func trimETag(s string) string {
	return strings.Trim(s, `"`)
}
