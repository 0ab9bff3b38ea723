package cache

import (
	"sync"

	"github.com/objectfs/metacache/internal/headers"
)

// PinGuard holds one pin on a stat cache entry until Release is called.
type PinGuard struct {
	c    *Cache
	key  string
	held bool
	once sync.Once
}

// Pin adds a pin to key and returns a guard that removes it. Pinning a key
// that is not cached yields a guard whose Release does nothing.
func (c *Cache) Pin(key string) *PinGuard {
	c.mu.Lock()
	held := c.setPinnedLocked(key, true)
	c.mu.Unlock()
	return &PinGuard{c: c, key: key, held: held}
}

// InsertPinned inserts key with one pin and returns the guard holding it.
func (c *Cache) InsertPinned(key string, h headers.Headers, forcedDir bool) (*PinGuard, error) {
	if err := c.Insert(key, h, forcedDir, true); err != nil {
		return nil, err
	}
	return &PinGuard{c: c, key: key, held: true}, nil
}

// Key returns the pinned key.
func (g *PinGuard) Key() string {
	return g.key
}

// Held reports whether the entry existed when the pin was taken.
func (g *PinGuard) Held() bool {
	return g.held
}

// Release drops the pin. Calling it more than once is safe.
func (g *PinGuard) Release() {
	if g == nil || !g.held {
		return
	}
	g.once.Do(func() {
		g.c.SetPinned(g.key, false)
	})
}
