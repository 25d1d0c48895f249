// Package bitset defines the filter cache consulted when resolving which
// nested object scope a produced sub-document position falls into. The
// cache itself belongs to the index layer; this package carries the
// interface plus a map-backed implementation for embedders and tests.
package bitset

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// Context identifies one document batch (the unit the index layer resolves
// filters against).
type Context interface {
	ID() string
}

// FilterCache resolves a nested type filter against a document batch into
// the set of positions matching that filter.
type FilterCache interface {
	// BitSet returns the matching positions, or nil when the filter matches
	// nothing in this context.
	BitSet(typeFilter string, ctx Context) (*bitset.BitSet, error)
}

// BatchContext is a trivial Context keyed by a string id.
type BatchContext string

func (b BatchContext) ID() string { return string(b) }

// MemoryFilterCache is a FilterCache backed by a plain map, keyed by
// context id and filter.
type MemoryFilterCache struct {
	mu   sync.RWMutex
	sets map[string]map[string]*bitset.BitSet
}

// NewMemoryFilterCache creates an empty in-memory filter cache.
func NewMemoryFilterCache() *MemoryFilterCache {
	return &MemoryFilterCache{sets: make(map[string]map[string]*bitset.BitSet)}
}

// Put records the positions matching a filter within a context.
func (c *MemoryFilterCache) Put(typeFilter string, ctx Context, positions ...uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byFilter, ok := c.sets[ctx.ID()]
	if !ok {
		byFilter = make(map[string]*bitset.BitSet)
		c.sets[ctx.ID()] = byFilter
	}
	bs, ok := byFilter[typeFilter]
	if !ok {
		bs = bitset.New(0)
		byFilter[typeFilter] = bs
	}
	for _, p := range positions {
		bs.Set(p)
	}
}

// BitSet implements FilterCache.
func (c *MemoryFilterCache) BitSet(typeFilter string, ctx Context) (*bitset.BitSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byFilter, ok := c.sets[ctx.ID()]
	if !ok {
		return nil, nil
	}
	return byFilter[typeFilter], nil
}
