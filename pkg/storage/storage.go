// Package storage implements the top-level ring of volumes: active-volume
// selection at startup, write routing with overflow-triggered rotation,
// the background worker that drains staging caches into page indexes, and
// the fan-out search over all volumes.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ringdb/ringdb/pkg/cache"
	"github.com/ringdb/ringdb/pkg/codec"
	"github.com/ringdb/ringdb/pkg/cursor"
	"github.com/ringdb/ringdb/pkg/page"
	"github.com/ringdb/ringdb/pkg/volume"
)

// drainRetryDelay spaces retries of a failed cache drain.
const drainRetryDelay = 10 * time.Millisecond

// Config holds construction parameters for a storage instance.
type Config struct {
	// MetadataPath locates the metadata document written by Create.
	MetadataPath string
	// TTL bounds how late a write may arrive before its staging
	// generation is sealed.
	TTL codec.Duration
	// MaxCacheSize bounds a staging generation, and sizes the worker's
	// drain buffer.
	MaxCacheSize int
	// Logger receives operational events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Storage owns the ring. Exactly one volume is active - the target of
// writes - at any instant.
type Storage struct {
	logger       *slog.Logger
	maxCacheSize int

	volumes   []*volume.Volume
	activeIdx atomic.Int64

	// ringMu serializes rotation; the atomic activeIdx load outside it is
	// a fast-path filter only.
	ringMu sync.Mutex
	// writeMu serializes appends into the active page.
	writeMu sync.Mutex

	outgoing chan *volume.Volume
	stop     chan struct{}
	wg       sync.WaitGroup
}

// Open constructs the storage from its metadata document, opens every
// volume, selects the active one, and starts the drain worker. Metadata
// or volume corruption is fatal here: the engine refuses to open.
func Open(cfg Config) (*Storage, error) {
	md, err := LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}
	if cfg.MaxCacheSize < 1 {
		cfg.MaxCacheSize = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Storage{
		logger:       logger,
		maxCacheSize: cfg.MaxCacheSize,
		outgoing:     make(chan *volume.Volume, 1024),
		stop:         make(chan struct{}),
	}

	for i, path := range md.VolumePaths() {
		vol, err := volume.OpenVolume(path, cfg.TTL, cfg.MaxCacheSize)
		if err != nil {
			s.releaseVolumes()
			return nil, fmt.Errorf("open volume %d: %w", i, err)
		}
		s.volumes = append(s.volumes, vol)
	}

	if err := s.selectActivePage(); err != nil {
		s.releaseVolumes()
		return nil, err
	}

	s.wg.Add(1)
	go s.runWorker()

	logger.Info("storage opened",
		"storage_id", md.StorageID,
		"volumes", len(s.volumes),
		"active", s.ActiveIndex())
	return s, nil
}

func (s *Storage) releaseVolumes() {
	for _, vol := range s.volumes {
		vol.Release()
	}
}

// volumeAt maps a monotonic revision onto the ring.
func (s *Storage) volumeAt(rev int64) *volume.Volume {
	return s.volumes[int(rev%int64(len(s.volumes)))]
}

// ActiveIndex returns the ring position of the active volume.
func (s *Storage) ActiveIndex() int {
	return int(s.activeIdx.Load() % int64(len(s.volumes)))
}

// selectActivePage picks the most recently opened volume: maximal
// open_count, ties broken by highest ring index. A cleanly closed page
// (open_count == close_count) means the previous run exited mid-ring;
// advance once to begin a new epoch.
func (s *Storage) selectActivePage() error {
	maxIdx := 0
	maxOpen := int64(-1)
	for i, vol := range s.volumes {
		oc := int64(vol.Page().OpenCount())
		if oc >= maxOpen {
			maxOpen = oc
			maxIdx = i
		}
	}
	s.activeIdx.Store(int64(maxIdx))

	p := s.volumes[maxIdx].Page()
	if p.CloseCount() == p.OpenCount() {
		if err := s.advanceVolume(int64(maxIdx)); err != nil {
			return err
		}
	}
	return nil
}

// Write appends a pre-assembled record to the active page and stages its
// offset for background index sync. Overflow rotates the ring and
// retries; bad data propagates.
func (s *Storage) Write(e codec.Entry) error {
	return s.write(e.ParamId, e.Timestamp, func(p *page.Page) (codec.EntryOffset, codec.Status) {
		return p.AddEntry(&e)
	})
}

// WriteEntry2 appends the zero-copy record form.
func (s *Storage) WriteEntry2(e codec.Entry2) error {
	return s.write(e.ParamId, e.Timestamp, func(p *page.Page) (codec.EntryOffset, codec.Status) {
		return p.AddEntry2(&e)
	})
}

func (s *Storage) write(param codec.ParamId, ts codec.Timestamp, add func(*page.Page) (codec.EntryOffset, codec.Status)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for attempt := 0; attempt <= len(s.volumes); attempt++ {
		rev := s.activeIdx.Load()
		vol := s.volumeAt(rev)
		off, status := add(vol.Page())
		switch status {
		case codec.StatusSuccess:
			ready := vol.Cache().Stage(cache.Item{Offset: off, Timestamp: ts, ParamId: param})
			for i := 0; i < ready; i++ {
				s.enqueue(vol)
			}
			return nil
		case codec.StatusWriteOverflow:
			if err := s.advanceVolume(rev); err != nil {
				return err
			}
		case codec.StatusWriteBadData:
			return codec.ErrBadData
		default:
			return fmt.Errorf("unexpected write status: %v", status)
		}
	}
	return codec.ErrOverflow
}

// advanceVolume rotates the ring. The revision check under the mutex is
// the linearization point: a stale rev means another writer already
// rotated and the caller simply retries.
func (s *Storage) advanceVolume(rev int64) error {
	s.ringMu.Lock()
	defer s.ringMu.Unlock()

	if s.activeIdx.Load() != rev {
		return nil
	}

	cur := s.volumeAt(rev)
	// A page that was already closed cleanly (startup advance) keeps its
	// epoch balance; closing it again would break open >= close.
	if cur.Page().OpenCount() > cur.Page().CloseCount() {
		if err := cur.Close(); err != nil {
			return fmt.Errorf("close volume %d: %w", s.ActiveIndex(), err)
		}
	}
	if cur.Cache().Seal() > 0 {
		s.enqueue(cur)
	}

	next := s.volumeAt(rev + 1)
	if _, err := next.ReallocateDiscSpace(); err != nil {
		return err
	}
	if err := next.Open(); err != nil {
		return fmt.Errorf("open volume: %w", err)
	}
	s.activeIdx.Store(rev + 1)

	s.logger.Info("ring advanced",
		"closed", cur.Path(),
		"active", next.Path(),
		"rev", rev+1)
	return nil
}

func (s *Storage) enqueue(vol *volume.Volume) {
	select {
	case s.outgoing <- vol:
	case <-s.stop:
	}
}

// runWorker drains staging caches into page indexes. A failed drain is
// retried in place; the cache still holds the offsets, so nothing is
// lost.
func (s *Storage) runWorker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case vol := <-s.outgoing:
			for {
				err := s.drain(vol)
				if err == nil {
					break
				}
				s.logger.Error("cache drain failed, retrying",
					"volume", vol.Path(), "error", err)
				select {
				case <-s.stop:
					return
				case <-time.After(drainRetryDelay):
				}
			}
		}
	}
}

func (s *Storage) drain(vol *volume.Volume) error {
	buf := make([]codec.EntryOffset, s.maxCacheSize)
	_, err := vol.DrainCache(buf)
	return err
}

// drainAll synchronously publishes everything still staged. Used on
// shutdown and by tests that need read-your-writes.
func (s *Storage) drainAll() error {
	for _, vol := range s.volumes {
		vol.Cache().Seal()
		for {
			buf := make([]codec.EntryOffset, s.maxCacheSize)
			n, err := vol.DrainCache(buf)
			if err != nil {
				return err
			}
			if n == 0 {
				break
			}
		}
	}
	return nil
}

// Sync seals and publishes all staged offsets, then flushes every
// mapping. Samples written before Sync are queryable after it returns.
func (s *Storage) Sync() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.drainAll(); err != nil {
		return err
	}
	for _, vol := range s.volumes {
		if err := vol.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Search fans the query out to every volume's page, one streaming cursor
// per volume, and returns the fan-in merger over them in the query's
// direction. Filtering lives in the page scan; the merger only orders.
func (s *Storage) Search(ctx context.Context, q page.Query) cursor.External {
	sources := make([]cursor.External, len(s.volumes))
	for i, vol := range s.volumes {
		p := vol.Page()
		sources[i] = cursor.NewStream(func(cur cursor.Internal) {
			p.Search(ctx, cur, q)
		})
	}
	return cursor.NewFanIn(sources, q.Direction)
}

// VolumeStats is a point-in-time snapshot of one ring slot.
type VolumeStats struct {
	Index      int              `json:"index"`
	Path       string           `json:"path"`
	PageID     uint32           `json:"page_id"`
	Count      uint32           `json:"count"`
	SyncIndex  uint32           `json:"sync_index"`
	FreeSpace  int              `json:"free_space"`
	OpenCount  uint32           `json:"open_count"`
	CloseCount uint32           `json:"close_count"`
	Staged     int              `json:"staged"`
	BBox       page.BoundingBox `json:"-"`
	Active     bool             `json:"active"`
}

// Stats snapshots every volume.
func (s *Storage) Stats() []VolumeStats {
	active := s.ActiveIndex()
	stats := make([]VolumeStats, len(s.volumes))
	for i, vol := range s.volumes {
		p := vol.Page()
		stats[i] = VolumeStats{
			Index:      i,
			Path:       vol.Path(),
			PageID:     p.PageID(),
			Count:      p.Count(),
			SyncIndex:  p.SyncIndex(),
			FreeSpace:  p.FreeSpace(),
			OpenCount:  p.OpenCount(),
			CloseCount: p.CloseCount(),
			Staged:     vol.Cache().Len(),
			BBox:       p.BBox(),
			Active:     i == active,
		}
	}
	return stats
}

// Close stops the worker, publishes everything staged, closes the active
// epoch, and releases every mapping.
func (s *Storage) Close() error {
	close(s.stop)
	s.wg.Wait()

	var first error
	if err := s.drainAll(); err != nil {
		first = err
	}

	active := s.volumeAt(s.activeIdx.Load())
	if active.Page().OpenCount() > active.Page().CloseCount() {
		if err := active.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, vol := range s.volumes {
		if err := vol.Release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
