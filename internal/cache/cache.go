package cache

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jacobsa/timeutil"

	"github.com/objectfs/metacache/internal/config"
	"github.com/objectfs/metacache/internal/headers"
	"github.com/objectfs/metacache/pkg/errors"
	"github.com/objectfs/metacache/pkg/types"
)

// Defaults applied by New.
const (
	DefaultCapacity = 100000
	DefaultTTL      = 900 * time.Second
)

// Cache names used for metrics and logging.
const (
	statCacheName    = "stat"
	symlinkCacheName = "symlink"
	pinnedIndexName  = "pinned"
)

// TTLMode selects how entry age is measured.
type TTLMode int

const (
	// TTLDisabled never expires entries.
	TTLDisabled TTLMode = iota
	// TTLAbsolute expires entries a fixed time after insertion.
	TTLAbsolute
	// TTLRefreshOnHit restarts an entry's lifetime every time it is served.
	TTLRefreshOnHit
)

func (m TTLMode) String() string {
	switch m {
	case TTLDisabled:
		return "disabled"
	case TTLAbsolute:
		return "absolute"
	case TTLRefreshOnHit:
		return "refresh"
	default:
		return fmt.Sprintf("TTLMode(%d)", int(m))
	}
}

// ParseTTLMode parses the configuration spelling of a TTL mode.
func ParseTTLMode(s string) (TTLMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "none", "off":
		return TTLDisabled, nil
	case "", "absolute":
		return TTLAbsolute, nil
	case "refresh", "refresh_on_hit", "interval":
		return TTLRefreshOnHit, nil
	default:
		return TTLAbsolute, errors.Newf(errors.ErrCodeInvalidConfig, "unknown ttl mode %q", s).
			WithComponent("cache")
	}
}

// Recorder receives cache events. Implementations must not call back into
// the cache; they are invoked with the cache lock held.
type Recorder interface {
	RecordLookup(cache, result string)
	RecordInsert(cache, kind string)
	RecordEviction(cache, reason string, n int)
	SetEntries(cache string, n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordLookup(string, string)        {}
func (nopRecorder) RecordInsert(string, string)        {}
func (nopRecorder) RecordEviction(string, string, int) {}
func (nopRecorder) SetEntries(string, int)             {}

// Cache is the path-keyed metadata subsystem: the stat cache, the symlink
// cache, and the index of pinned names per directory. All three share one
// lock so that compound operations (insert plus eviction plus index upkeep)
// are atomic.
type Cache struct {
	mu sync.Mutex

	clock  timeutil.Clock
	conv   headers.Converter
	logger *slog.Logger
	rec    Recorder

	capacity int
	ttl      time.Duration
	ttlMode  TTLMode
	negative bool

	stat     map[string]*statEntry
	symlinks map[string]*symlinkEntry
	pinned   *NotruncateIndex

	// Statistics
	stats types.CacheStats
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source. Tests use a timeutil.SimulatedClock.
func WithClock(c timeutil.Clock) Option {
	return func(cc *Cache) {
		if c != nil {
			cc.clock = c
		}
	}
}

// WithConverter sets the header-to-attribute converter.
func WithConverter(conv headers.Converter) Option {
	return func(c *Cache) {
		if conv != nil {
			c.conv = conv
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l.With("component", "metacache")
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(c *Cache) {
		if r != nil {
			c.rec = r
		}
	}
}

// WithCapacity sets the maximum entry count of each cache.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n >= 0 {
			c.capacity = n
		}
	}
}

// WithTTL sets the entry lifetime and how it is measured.
func WithTTL(d time.Duration, mode TTLMode) Option {
	return func(c *Cache) {
		c.ttl = d
		c.ttlMode = mode
	}
}

// WithNegativeCaching enables or disables caching of known-absent paths.
func WithNegativeCaching(enabled bool) Option {
	return func(c *Cache) {
		c.negative = enabled
	}
}

// WithConfig applies a configuration section. An unparsable TTL mode keeps
// the absolute default; FromConfig reports it as an error instead.
func WithConfig(cfg config.CacheConfig) Option {
	return func(c *Cache) {
		c.capacity = cfg.MaxEntries
		c.negative = cfg.NegativeCache
		mode, err := ParseTTLMode(cfg.TTLMode)
		if err != nil {
			mode = TTLAbsolute
		}
		c.ttl = cfg.TTL
		c.ttlMode = mode
		if cfg.TTL <= 0 {
			c.ttlMode = TTLDisabled
		}
		c.conv = headers.DefaultConverter{UID: cfg.DefaultUID, GID: cfg.DefaultGID}
	}
}

// FromConfig validates a configuration section and builds a Cache from it.
// Additional options are applied after the configuration.
func FromConfig(cfg config.CacheConfig, opts ...Option) (*Cache, error) {
	if cfg.MaxEntries < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig, "max_entries must not be negative: %d", cfg.MaxEntries).
			WithComponent("cache")
	}
	if _, err := ParseTTLMode(cfg.TTLMode); err != nil {
		return nil, err
	}
	return New(append([]Option{WithConfig(cfg)}, opts...)...), nil
}

// New creates a Cache with capacity 100000, a 900s absolute TTL and negative
// caching enabled, then applies opts.
func New(opts ...Option) *Cache {
	c := &Cache{
		clock:    timeutil.RealClock(),
		conv:     headers.DefaultConverter{},
		logger:   slog.Default().With("component", "metacache"),
		rec:      nopRecorder{},
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		ttlMode:  TTLAbsolute,
		negative: true,
		stat:     make(map[string]*statEntry),
		symlinks: make(map[string]*symlinkEntry),
		pinned:   NewNotruncateIndex(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capacity returns the per-cache entry limit.
func (c *Cache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// SetCapacity changes the entry limit and returns the previous value.
// Capacity 0 disables insertion of unpinned entries. Existing entries are
// not evicted until the next insertion or Truncate.
func (c *Cache) SetCapacity(n int) int {
	if n < 0 {
		n = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.capacity
	c.capacity = n
	return old
}

// TTL returns the entry lifetime and mode.
func (c *Cache) TTL() (time.Duration, TTLMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl, c.ttlMode
}

// SetTTL changes the entry lifetime and mode, returning the previous lifetime.
func (c *Cache) SetTTL(d time.Duration, mode TTLMode) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.ttl
	c.ttl = d
	c.ttlMode = mode
	return old
}

// DisableTTL turns expiry off and returns the previous lifetime.
func (c *Cache) DisableTTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.ttl
	c.ttl = 0
	c.ttlMode = TTLDisabled
	return old
}

// NegativeCaching reports whether known-absent paths are cached.
func (c *Cache) NegativeCaching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negative
}

// SetNegativeCaching toggles negative caching and returns the previous value.
// Existing negative entries are dropped lazily when next looked up.
func (c *Cache) SetNegativeCaching(enabled bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.negative
	c.negative = enabled
	return old
}

// Clear removes every entry, pinned or not, from all three structures.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stat = make(map[string]*statEntry)
	c.symlinks = make(map[string]*symlinkEntry)
	c.pinned = NewNotruncateIndex()
	c.updateGaugesLocked()
	c.logger.Debug("cache cleared")
}

// Len returns the number of stat and symlink entries.
func (c *Cache) Len() (stat, symlink int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stat), len(c.symlinks)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.stat)
	stats.SymlinkEntries = len(c.symlinks)
	stats.PinnedEntries = c.pinned.Len()
	stats.Capacity = c.capacity

	lookups := stats.Hits + stats.Misses + stats.NegativeHits
	if lookups > 0 {
		stats.HitRate = float64(stats.Hits+stats.NegativeHits) / float64(lookups)
	}
	if c.capacity > 0 {
		stats.Utilization = float64(len(c.stat)) / float64(c.capacity)
	}
	return stats
}

// Attributes converts h the way Insert does, without caching anything.
// Callers use it to answer from fresh headers when capacity is 0.
func (c *Cache) Attributes(key string, h headers.Headers, forcedDir bool) (Entry, error) {
	meta := h.Filter()
	attr, err := c.conv.ToAttributes(key, meta, forcedDir)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Attr: attr, Headers: meta, ForcedDir: forcedDir}, nil
}

// PinnedNames returns the base names of pinned entries directly under dir.
// A missing trailing slash on dir is added.
func (c *Cache) PinnedNames(dir string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pinned.Lookup(dir)
}

// expiredLocked reports whether an entry created at created has outlived the TTL.
func (c *Cache) expiredLocked(created, now time.Time) bool {
	if c.ttlMode == TTLDisabled {
		return false
	}
	return now.Sub(created) > c.ttl
}

func (c *Cache) updateGaugesLocked() {
	c.rec.SetEntries(statCacheName, len(c.stat))
	c.rec.SetEntries(symlinkCacheName, len(c.symlinks))
	c.rec.SetEntries(pinnedIndexName, c.pinned.Len())
}

func invalidKey(op string) error {
	return errors.NewError(errors.ErrCodePathInvalid, "key cannot be empty").
		WithComponent("cache").WithOperation(op)
}
