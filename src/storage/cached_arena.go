package storage

import (
	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"
)

// cachedCell is one cell held by the LRU. Every cell counts as one unit of
// capacity.
type cachedCell []byte

// Size implements the cache.Value interface.
func (c cachedCell) Size() (uint64, error) {
	return 1, nil
}

// CachedArena keeps the most recently used cells of another Arena in memory.
// Writes go through to the underlying Arena.
type CachedArena struct {
	arena Arena
	cells *lru.Cache[int64, cachedCell]
}

// NewCachedArena wraps arena with an LRU of capacity cells.
func NewCachedArena(arena Arena, capacity int) *CachedArena {
	return &CachedArena{
		arena: arena,
		cells: lru.NewCache[int64, cachedCell](uint64(capacity)),
	}
}

// ReadCell implements the Arena interface.
func (a *CachedArena) ReadCell(pointer int64, cell []byte) error {
	cached, err := a.cells.Get(pointer)
	if err == nil {
		copy(cell, cached)
		return nil
	}
	if err != cache.ErrElementNotFound {
		return err
	}

	if err := a.arena.ReadCell(pointer, cell); err != nil {
		return err
	}
	return a.put(pointer, cell)
}

// WriteCell implements the Arena interface.
func (a *CachedArena) WriteCell(pointer int64, cell []byte) error {
	if err := a.arena.WriteCell(pointer, cell); err != nil {
		a.cells.Delete(pointer)
		return err
	}
	return a.put(pointer, cell)
}

// Size implements the Arena interface.
func (a *CachedArena) Size() int64 {
	return a.arena.Size()
}

// Len is the number of cached cells.
func (a *CachedArena) Len() int {
	return a.cells.Len()
}

func (a *CachedArena) put(pointer int64, cell []byte) error {
	c := make(cachedCell, len(cell))
	copy(c, cell)
	_, err := a.cells.Put(pointer, c)
	return err
}
