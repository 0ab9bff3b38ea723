package cache

import (
	"sort"
	"time"
)

// victim is an eviction candidate.
type victim struct {
	key       string
	createdAt time.Time
	hitCount  uint64
}

// sortVictims orders candidates oldest first, breaking ties by fewest hits.
func sortVictims(vs []victim) {
	sort.Slice(vs, func(i, j int) bool {
		if !vs[i].createdAt.Equal(vs[j].createdAt) {
			return vs[i].createdAt.Before(vs[j].createdAt)
		}
		return vs[i].hitCount < vs[j].hitCount
	})
}

// Truncate expires stale entries in both caches and then trims each to
// below capacity.
func (c *Cache) Truncate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.truncateStatLocked(false)
	c.truncateSymlinkLocked(false)
}

// truncateStatLocked runs the two eviction phases on the stat cache.
//
// Phase one drops every expired unpinned entry. Phase two runs only if the
// cache is still at or over capacity: the excess (count-capacity+1) is first
// charged one unit per pinned entry, and whatever budget remains is spent on
// the oldest unpinned entries. A cache full of pinned entries therefore
// overshoots capacity rather than evicting anything.
func (c *Cache) truncateStatLocked(onlyOversize bool) {
	if len(c.stat) == 0 || (onlyOversize && len(c.stat) < c.capacity) {
		return
	}

	now := c.clock.Now()
	if c.ttlMode != TTLDisabled {
		expired := 0
		for key, e := range c.stat {
			if e.pinCount == 0 && c.expiredLocked(e.createdAt, now) {
				delete(c.stat, key)
				expired++
			}
		}
		if expired > 0 {
			c.recordEvictionLocked(statCacheName, "ttl", expired)
		}
	}

	if len(c.stat) < c.capacity {
		return
	}

	budget := len(c.stat) - c.capacity + 1
	candidates := make([]victim, 0, len(c.stat))
	for key, e := range c.stat {
		if e.pinCount > 0 {
			budget--
			continue
		}
		candidates = append(candidates, victim{key: key, createdAt: e.createdAt, hitCount: e.hitCount})
	}
	if budget <= 0 {
		c.logger.Debug("stat cache over capacity with pinned entries", "entries", len(c.stat), "capacity", c.capacity)
		return
	}

	sortVictims(candidates)
	if budget > len(candidates) {
		budget = len(candidates)
	}
	if budget == 0 {
		return
	}
	for _, v := range candidates[:budget] {
		delete(c.stat, v.key)
	}
	c.recordEvictionLocked(statCacheName, "capacity", budget)
	c.logger.Debug("stat cache truncated", "evicted", budget, "entries", len(c.stat))
}

// truncateSymlinkLocked is truncateStatLocked for the symlink cache, which
// has no pinning.
func (c *Cache) truncateSymlinkLocked(onlyOversize bool) {
	if len(c.symlinks) == 0 || (onlyOversize && len(c.symlinks) < c.capacity) {
		return
	}

	now := c.clock.Now()
	if c.ttlMode != TTLDisabled {
		expired := 0
		for key, e := range c.symlinks {
			if c.expiredLocked(e.createdAt, now) {
				delete(c.symlinks, key)
				expired++
			}
		}
		if expired > 0 {
			c.recordEvictionLocked(symlinkCacheName, "ttl", expired)
		}
	}

	if len(c.symlinks) < c.capacity {
		return
	}

	excess := len(c.symlinks) - c.capacity + 1
	candidates := make([]victim, 0, len(c.symlinks))
	for key, e := range c.symlinks {
		candidates = append(candidates, victim{key: key, createdAt: e.createdAt, hitCount: e.hitCount})
	}
	sortVictims(candidates)
	if excess > len(candidates) {
		excess = len(candidates)
	}
	for _, v := range candidates[:excess] {
		delete(c.symlinks, v.key)
	}
	c.recordEvictionLocked(symlinkCacheName, "capacity", excess)
}

func (c *Cache) recordEvictionLocked(cache, reason string, n int) {
	if reason == "ttl" {
		c.stats.Expirations += uint64(n)
	} else {
		c.stats.Evictions += uint64(n)
	}
	c.rec.RecordEviction(cache, reason, n)
	c.updateGaugesLocked()
}
