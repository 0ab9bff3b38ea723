package cache

import (
	"math"
	"time"
)

// symlinkEntry represents an item in the symlink cache
type symlinkEntry struct {
	target    string
	createdAt time.Time
	hitCount  uint64
}

// LookupSymlink returns the cached link target for key. The symlink cache
// shares capacity, TTL and TTL mode with the stat cache but has no pinning.
func (c *Cache) LookupSymlink(key string) (string, bool) {
	if key == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.symlinks[key]
	if !ok {
		c.rec.RecordLookup(symlinkCacheName, Miss.String())
		return "", false
	}

	now := c.clock.Now()
	if c.expiredLocked(e.createdAt, now) {
		delete(c.symlinks, key)
		c.recordEvictionLocked(symlinkCacheName, "ttl", 1)
		c.rec.RecordLookup(symlinkCacheName, Miss.String())
		return "", false
	}

	if e.hitCount < math.MaxUint64 {
		e.hitCount++
	}
	if c.ttlMode == TTLRefreshOnHit {
		e.createdAt = now
	}
	c.rec.RecordLookup(symlinkCacheName, Hit.String())
	return e.target, true
}

// InsertSymlink caches target as key's link target. It is a no-op when
// capacity is 0.
func (c *Cache) InsertSymlink(key, target string) error {
	if key == "" {
		return invalidKey("InsertSymlink")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity < 1 {
		return nil
	}

	if _, ok := c.symlinks[key]; ok {
		delete(c.symlinks, key)
	} else {
		c.truncateSymlinkLocked(true)
	}
	c.symlinks[key] = &symlinkEntry{
		target:    target,
		createdAt: c.clock.Now(),
	}

	c.rec.RecordInsert(symlinkCacheName, "positive")
	c.updateGaugesLocked()
	c.logger.Debug("symlink cache insert", "path", key, "target", target)
	return nil
}

// DeleteSymlink drops key from the symlink cache.
func (c *Cache) DeleteSymlink(key string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.symlinks, key)
	c.updateGaugesLocked()
}
