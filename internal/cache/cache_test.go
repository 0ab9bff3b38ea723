package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/metacache/internal/config"
	"github.com/objectfs/metacache/internal/headers"
	"github.com/objectfs/metacache/pkg/errors"
)

func newTestCache(t *testing.T, opts ...Option) (*Cache, *timeutil.SimulatedClock) {
	t.Helper()
	clk := &timeutil.SimulatedClock{}
	clk.SetTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(append([]Option{WithClock(clk)}, opts...)...), clk
}

func fileHeaders(size int) headers.Headers {
	return headers.FromMap(map[string]string{
		"Content-Length":  fmt.Sprint(size),
		"Content-Type":    "text/plain",
		"X-Amz-Meta-Mode": "0100644",
	})
}

// fakeRecorder counts events by cache and label.
type fakeRecorder struct {
	mu        sync.Mutex
	lookups   map[string]int
	inserts   map[string]int
	evictions map[string]int
	entries   map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		lookups:   make(map[string]int),
		inserts:   make(map[string]int),
		evictions: make(map[string]int),
		entries:   make(map[string]int),
	}
}

func (r *fakeRecorder) RecordLookup(cache, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups[cache+"/"+result]++
}

func (r *fakeRecorder) RecordInsert(cache, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts[cache+"/"+kind]++
}

func (r *fakeRecorder) RecordEviction(cache, reason string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictions[cache+"/"+reason] += n
}

func (r *fakeRecorder) SetEntries(cache string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[cache] = n
}

func TestNewDefaults(t *testing.T) {
	c := New()

	assert.Equal(t, DefaultCapacity, c.Capacity())
	ttl, mode := c.TTL()
	assert.Equal(t, 900*time.Second, ttl)
	assert.Equal(t, TTLAbsolute, mode)
	assert.True(t, c.NegativeCaching())

	stat, symlink := c.Len()
	assert.Zero(t, stat)
	assert.Zero(t, symlink)
}

func TestRuntimeConfiguration(t *testing.T) {
	c, _ := newTestCache(t)

	assert.Equal(t, DefaultCapacity, c.SetCapacity(10))
	assert.Equal(t, 10, c.Capacity())
	assert.Equal(t, 10, c.SetCapacity(-5))
	assert.Equal(t, 0, c.Capacity())

	assert.Equal(t, DefaultTTL, c.SetTTL(time.Minute, TTLRefreshOnHit))
	ttl, mode := c.TTL()
	assert.Equal(t, time.Minute, ttl)
	assert.Equal(t, TTLRefreshOnHit, mode)

	assert.Equal(t, time.Minute, c.DisableTTL())
	_, mode = c.TTL()
	assert.Equal(t, TTLDisabled, mode)

	assert.True(t, c.SetNegativeCaching(false))
	assert.False(t, c.NegativeCaching())
}

func TestParseTTLMode(t *testing.T) {
	tests := []struct {
		in      string
		want    TTLMode
		wantErr bool
	}{
		{"", TTLAbsolute, false},
		{"absolute", TTLAbsolute, false},
		{"Refresh", TTLRefreshOnHit, false},
		{"interval", TTLRefreshOnHit, false},
		{"disabled", TTLDisabled, false},
		{"sometimes", TTLAbsolute, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTTLMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromConfig(t *testing.T) {
	t.Run("applies section", func(t *testing.T) {
		c, err := FromConfig(config.CacheConfig{
			MaxEntries:    42,
			TTL:           30 * time.Second,
			TTLMode:       "refresh",
			NegativeCache: false,
		})
		require.NoError(t, err)
		assert.Equal(t, 42, c.Capacity())
		ttl, mode := c.TTL()
		assert.Equal(t, 30*time.Second, ttl)
		assert.Equal(t, TTLRefreshOnHit, mode)
		assert.False(t, c.NegativeCaching())
	})

	t.Run("zero ttl disables expiry", func(t *testing.T) {
		c, err := FromConfig(config.CacheConfig{MaxEntries: 1, TTLMode: "absolute"})
		require.NoError(t, err)
		_, mode := c.TTL()
		assert.Equal(t, TTLDisabled, mode)
	})

	t.Run("bad ttl mode", func(t *testing.T) {
		_, err := FromConfig(config.CacheConfig{MaxEntries: 1, TTLMode: "weekly"})
		require.Error(t, err)
	})

	t.Run("negative capacity", func(t *testing.T) {
		_, err := FromConfig(config.CacheConfig{MaxEntries: -1})
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
	})

	t.Run("later options win", func(t *testing.T) {
		c, err := FromConfig(config.CacheConfig{MaxEntries: 5, TTL: time.Second}, WithCapacity(7))
		require.NoError(t, err)
		assert.Equal(t, 7, c.Capacity())
	})
}

func TestStats(t *testing.T) {
	c, _ := newTestCache(t, WithCapacity(10))

	require.NoError(t, c.Insert("f", fileHeaders(1), false, false))
	require.NoError(t, c.InsertNegative("gone"))

	_, res := c.Lookup("f", false, "")
	assert.Equal(t, Hit, res)
	_, res = c.Lookup("missing", false, "")
	assert.Equal(t, Miss, res)
	_, res = c.Lookup("gone", false, "")
	assert.Equal(t, KnownAbsent, res)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.NegativeHits)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 10, stats.Capacity)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
	assert.InDelta(t, 0.2, stats.Utilization, 1e-9)
}

func TestRecorderEvents(t *testing.T) {
	rec := newFakeRecorder()
	c, clk := newTestCache(t, WithRecorder(rec), WithCapacity(2), WithTTL(time.Minute, TTLAbsolute))

	require.NoError(t, c.Insert("a", fileHeaders(1), false, false))
	clk.AdvanceTime(time.Second)
	require.NoError(t, c.Insert("b", fileHeaders(1), false, false))
	clk.AdvanceTime(time.Second)
	require.NoError(t, c.InsertNegative("c")) // evicts "a"
	require.NoError(t, c.InsertSymlink("l", "target"))

	c.Lookup("b", false, "")
	c.Lookup("zzz", false, "")
	clk.AdvanceTime(2 * time.Minute)
	c.Lookup("b", false, "")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 2, rec.inserts["stat/positive"])
	assert.Equal(t, 1, rec.inserts["stat/negative"])
	assert.Equal(t, 1, rec.inserts["symlink/positive"])
	assert.Equal(t, 1, rec.lookups["stat/hit"])
	assert.Equal(t, 2, rec.lookups["stat/miss"])
	assert.Equal(t, 1, rec.evictions["stat/capacity"])
	assert.Equal(t, 1, rec.evictions["stat/ttl"])
	assert.Equal(t, 1, rec.entries["stat"])
	assert.Equal(t, 1, rec.entries["symlink"])
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(t)

	require.NoError(t, c.Insert("dir/f", fileHeaders(1), false, true))
	require.NoError(t, c.InsertSymlink("l", "t"))
	c.Clear()

	stat, symlink := c.Len()
	assert.Zero(t, stat)
	assert.Zero(t, symlink)
	assert.Empty(t, c.PinnedNames("dir/"))
}

func TestConcurrentAccess(t *testing.T) {
	const capacity = 50
	c := New(WithCapacity(capacity))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("dir/file-%d-%d", g, i%70)
				switch i % 5 {
				case 0:
					_ = c.InsertNegative(key)
				case 1:
					guard := c.Pin(key)
					guard.Release()
				case 2:
					c.Lookup(key, true, "")
				case 3:
					c.Delete(key)
				default:
					_ = c.Insert(key, fileHeaders(i), false, false)
				}
			}
		}(g)
	}
	wg.Wait()

	stat, _ := c.Len()
	assert.LessOrEqual(t, stat, capacity)
	assert.Zero(t, c.Stats().PinnedEntries)
}

func TestAttributesDoesNotCache(t *testing.T) {
	c, _ := newTestCache(t, WithCapacity(0))

	entry, err := c.Attributes("/f", fileHeaders(12), false)
	require.NoError(t, err)
	assert.True(t, entry.Attr.IsRegular())
	assert.Equal(t, int64(12), entry.Attr.Size)
	assert.Equal(t, "text/plain", entry.Headers.Get(headers.ContentType))

	entry, err = c.Attributes("/d", nil, true)
	require.NoError(t, err)
	assert.True(t, entry.Attr.IsDir())
	assert.True(t, entry.ForcedDir)

	_, err = c.Attributes("/bad", headers.Headers{"content-length": "-1"}, false)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))

	stat, symlink := c.Len()
	assert.Zero(t, stat)
	assert.Zero(t, symlink)
}
