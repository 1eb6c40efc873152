// Package volume pairs one memory-mapped page file with its staging
// cache and controls the page's open/close lifecycle.
package volume

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ringdb/ringdb/pkg/cache"
	"github.com/ringdb/ringdb/pkg/codec"
	"github.com/ringdb/ringdb/pkg/page"
)

// Volume is one slot of the storage ring.
type Volume struct {
	path         string
	ttl          codec.Duration
	maxCacheSize int
	mapping      *mapping
	page         atomic.Pointer[page.Page]
	cache        *cache.Cache

	// syncMu serializes index publication and recycling; both the drain
	// worker and an explicit storage Sync publish through DrainCache.
	syncMu sync.Mutex
}

// OpenVolume memory-maps the page file at path and interprets its prefix
// as a page header. A header that does not match the file is a fatal
// construction error.
func OpenVolume(path string, ttl codec.Duration, maxCacheSize int) (*Volume, error) {
	m, err := openMapping(path)
	if err != nil {
		return nil, err
	}
	p := page.New(m.data)
	if err := p.Validate(); err != nil {
		m.close()
		return nil, fmt.Errorf("volume %s: %w", path, err)
	}
	v := &Volume{
		path:         path,
		ttl:          ttl,
		maxCacheSize: maxCacheSize,
		mapping:      m,
		cache:        cache.New(ttl, maxCacheSize),
	}
	v.page.Store(p)
	return v, nil
}

// Path returns the underlying file path.
func (v *Volume) Path() string { return v.path }

// Page returns a borrowed reference to the mapped page. Callers snapshot
// it per operation; a snapshot must not outlive a recycle of this volume,
// which unmaps the region the snapshot points into.
func (v *Volume) Page() *page.Page { return v.page.Load() }

// Cache returns the volume's staging cache.
func (v *Volume) Cache() *cache.Cache { return v.cache }

// MaxCacheSize is the drain buffer size the worker should use.
func (v *Volume) MaxCacheSize() int { return v.maxCacheSize }

// DrainCache moves one drain-ready generation from the staging cache into
// the page index, using buf as scratch. Picking and publishing happen
// under one lock so a concurrent recycle can never see a generation from
// the previous epoch land in the fresh page. Returns how many offsets
// were published.
func (v *Volume) DrainCache(buf []codec.EntryOffset) (int, error) {
	v.syncMu.Lock()
	defer v.syncMu.Unlock()
	n, err := v.cache.PickLast(buf)
	if err != nil || n == 0 {
		return n, err
	}
	return v.page.Load().SyncIndexes(buf[:n]), nil
}

// ReallocateDiscSpace destructively remaps the file: contents are
// discarded and a fresh empty page is constructed preserving page_id,
// type, and the epoch counters.
func (v *Volume) ReallocateDiscSpace() (*page.Page, error) {
	v.syncMu.Lock()
	defer v.syncMu.Unlock()

	old := v.page.Load()
	pageID := old.PageID()
	pageType := old.Type()
	openCount := old.OpenCount()
	closeCount := old.CloseCount()

	if err := v.mapping.remapDestructive(); err != nil {
		return nil, fmt.Errorf("reallocate volume %s: %w", v.path, err)
	}
	p := page.New(v.mapping.data)
	p.Init(pageType, pageID)
	p.RestoreEpoch(openCount, closeCount)
	v.cache.Reset()
	v.page.Store(p)
	return p, nil
}

// Open begins a new active epoch on the page and flushes the mapping.
func (v *Volume) Open() error {
	v.page.Load().Reuse()
	return v.mapping.flush()
}

// Close ends the active epoch and flushes the mapping.
func (v *Volume) Close() error {
	v.page.Load().Close()
	return v.mapping.flush()
}

// Flush pushes dirty page bytes to disk.
func (v *Volume) Flush() error {
	return v.mapping.flush()
}

// Release unmaps the file. The volume is unusable afterwards.
func (v *Volume) Release() error {
	return v.mapping.close()
}

// CreateVolumeFile creates a page file of size bytes at path and formats
// an empty page header with the given id. When activate is set the page
// begins its first open epoch immediately.
func CreateVolumeFile(path string, size int, pageID uint32, activate bool) error {
	if size < page.HeaderSize {
		return fmt.Errorf("volume size %d below header size", size)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create volume %s: %w", path, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return fmt.Errorf("truncate volume %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close volume %s: %w", path, err)
	}

	m, err := openMapping(path)
	if err != nil {
		return err
	}
	p := page.New(m.data)
	p.Init(page.TypeIndex, pageID)
	if activate {
		p.Reuse()
	}
	if err := m.flush(); err != nil {
		m.close()
		return fmt.Errorf("flush volume %s: %w", path, err)
	}
	return m.close()
}
