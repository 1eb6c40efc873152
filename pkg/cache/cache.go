// Package cache implements the in-memory staging cache that holds freshly
// appended entry offsets until the background worker sorts them into the
// page index. Offsets are staged into a live generation bounded by TTL and
// size; a generation that trips either bound is sealed and reported ready
// to drain. A sealed generation is only forgotten once a drain succeeds,
// so a failed drain retries without data loss.
package cache

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ringdb/ringdb/pkg/codec"
)

// Item is one staged offset with its ordering key.
type Item struct {
	Offset    codec.EntryOffset
	Timestamp codec.Timestamp
	ParamId   codec.ParamId
}

// Cache stages offsets for one volume.
type Cache struct {
	mu       sync.Mutex
	ttl      codec.Duration
	maxSize  int
	live     []Item
	liveBase codec.Timestamp
	sealed   [][]Item
}

// New creates a cache with the given late-write tolerance and maximum
// live-generation size.
func New(ttl codec.Duration, maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Stage records one offset and returns the number of generations that
// became ready to drain as a result. The caller is expected to notify the
// drain worker that many times.
func (c *Cache) Stage(it Item) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.live) == 0 {
		c.liveBase = it.Timestamp
	}
	c.live = append(c.live, it)

	ready := 0
	if len(c.live) >= c.maxSize {
		c.sealLocked()
		ready++
	} else if c.ttl > 0 && it.Timestamp.Sub(c.liveBase) > c.ttl {
		c.sealLocked()
		ready++
	}
	return ready
}

// Seal forces the live generation out for draining, returning 1 if a
// generation was produced. Used when a volume closes.
func (c *Cache) Seal() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.live) == 0 {
		return 0
	}
	c.sealLocked()
	return 1
}

func (c *Cache) sealLocked() {
	gen := c.live
	c.live = nil
	sort.Slice(gen, func(i, j int) bool {
		if gen[i].Timestamp != gen[j].Timestamp {
			return gen[i].Timestamp < gen[j].Timestamp
		}
		return gen[i].ParamId < gen[j].ParamId
	})
	c.sealed = append(c.sealed, gen)
}

// PickLast copies the oldest sealed generation's offsets, already ordered
// by (timestamp, param_id), into buf and forgets the generation. If buf is
// too small the generation is kept and an error returned so the caller can
// retry. Returns 0 when nothing is ready.
func (c *Cache) PickLast(buf []codec.EntryOffset) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.sealed) == 0 {
		return 0, nil
	}
	gen := c.sealed[0]
	if len(gen) > len(buf) {
		return 0, fmt.Errorf("drain buffer too small: %d offsets, %d slots", len(gen), len(buf))
	}
	for i, it := range gen {
		buf[i] = it.Offset
	}
	c.sealed = c.sealed[1:]
	return len(gen), nil
}

// Len reports how many offsets are staged in total.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.live)
	for _, gen := range c.sealed {
		n += len(gen)
	}
	return n
}

// Reset drops everything staged. Used when a volume's contents are
// destroyed on recycle.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live = nil
	c.sealed = nil
}
