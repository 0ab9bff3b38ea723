/*
Package cache provides the in-memory metadata caches that sit between a
filesystem front end and an object store.

A metadata lookup against object storage costs a network round trip (a HEAD,
often two when the caller does not know whether a path is a file or a
directory). This package keeps the results so that repeated stat, readlink
and readdir calls are answered locally.

# Structures

A Cache owns three structures guarded by a single mutex:

	┌─────────────────────────────────────────────┐
	│                   Cache                     │
	│                                             │
	│  ┌──────────────┐  ┌──────────────────────┐ │
	│  │  stat cache  │  │    symlink cache     │ │
	│  │ path → attrs │  │   path → target      │ │
	│  │  + headers   │  │                      │ │
	│  └──────┬───────┘  └──────────────────────┘ │
	│         │ pin / unpin / delete              │
	│  ┌──────┴──────────────────────────────┐    │
	│  │        NotruncateIndex              │    │
	│  │   parent dir → pinned base names    │    │
	│  └─────────────────────────────────────┘    │
	└─────────────────────────────────────────────┘

The stat cache maps a path to its attributes, the whitelisted response
headers they were derived from, and a forced-directory flag. It also holds
negative entries recording that a path does not exist. The symlink cache
maps a path to its link target. The NotruncateIndex lists, per directory,
the files that are pinned so that listings can show files which have not
reached the store yet.

Cross-structure rules are enforced under the one lock: inserting a
non-symlink stat entry drops any symlink entry for the same path, and pin
count transitions between zero and one register or unregister the path in
the index.

# Expiry

Entries expire after a TTL measured in one of three modes:

	TTLDisabled      entries never expire
	TTLAbsolute      lifetime starts at insertion (default, 900s)
	TTLRefreshOnHit  every hit restarts the lifetime

Expiry is lazy. An expired entry is removed when a lookup finds it or when
an insertion triggers eviction. Time comes from a timeutil.Clock, so tests can
drive it with a timeutil.SimulatedClock.

# Eviction

Capacity is an entry count (default 100000), shared by both caches but
applied to each separately. When an insertion finds a cache at capacity it
runs two phases:

 1. Expire: remove every unpinned entry past its TTL.
 2. Trim: if still at capacity, remove the count-capacity+1 oldest unpinned
    entries ordered by (createdAt, hitCount).

In the stat cache each pinned entry reduces the phase two removal count by
one. Capacity is therefore a soft limit: a cache holding many pinned entries
can exceed it rather than evict unpinned entries that were not asked for.

# Pinning

A pinned entry never expires and is never evicted. Pins are reference
counted, one per open handle:

	guard := c.Pin("/dir/file")
	defer guard.Release()

Release is idempotent. Files created locally are inserted already pinned
with InsertPinned, which makes them visible through PinnedNames until the
guard is released.

# Usage

	c := cache.New(
		cache.WithCapacity(50000),
		cache.WithTTL(5*time.Minute, cache.TTLRefreshOnHit),
		cache.WithLogger(logger),
	)

	entry, res := c.Lookup("/dir/file", true, "")
	switch res {
	case cache.Hit:
		return entry.Attr, nil
	case cache.KnownAbsent:
		return headers.Attributes{}, errNotFound
	}
	// Miss: HEAD the object outside any cache call, then populate.
	if err := c.Insert("/dir/file", h, false, false); err != nil {
		return headers.Attributes{}, err
	}

No method performs I/O, so callers never block on the network while the
cache lock is held.
*/
package cache
