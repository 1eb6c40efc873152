// Package page implements the on-disk page layout: a self-contained,
// relocatable record arena with a growing header-side offset index and a
// shrinking data-side record heap, plus the range search over the sorted
// part of the index.
//
// All multi-byte fields are little-endian on disk; the format is not
// portable to big-endian hosts.
package page

import (
	"encoding/binary"
	"fmt"

	"github.com/ringdb/ringdb/pkg/codec"
)

// PageType discriminates page files.
type PageType uint32

const (
	TypeIndex PageType = iota
	TypeMetadata
)

// Header field offsets. The header is the fixed prefix of every page file;
// the offset index grows from HeaderSize toward higher addresses and the
// record heap grows down from the end of the page.
const (
	offType       = 0
	offPageID     = 4
	offCount      = 8
	offSyncIndex  = 12
	offLastOffset = 16
	offOpenCount  = 20
	offCloseCount = 24
	offLength     = 28
	offBBoxMinID  = 32
	offBBoxMaxID  = 36
	offBBoxMinTS  = 40
	offBBoxMaxTS  = 48

	// HeaderSize is the size of the fixed page header in bytes.
	HeaderSize = 56

	// offsetSlotSize is the size of one page_index element.
	offsetSlotSize = 4
)

// BoundingBox is the min/max envelope over (param_id, timestamp) of a
// page's live entries. A fresh box is inverted so the first insertion
// produces a non-degenerate one.
type BoundingBox struct {
	MinParamId codec.ParamId
	MaxParamId codec.ParamId
	MinTime    codec.Timestamp
	MaxTime    codec.Timestamp
}

// Page wraps a fixed-size byte region (normally a memory mapping) whose
// prefix is the page header. All header state lives in the mapped bytes;
// Page itself carries no shadow state and can be re-created over the same
// region at any time.
type Page struct {
	data []byte
}

// New wraps data as a page without touching its contents. Use Init to
// format a fresh page.
func New(data []byte) *Page {
	return &Page{data: data}
}

// Init formats the region as an empty page with the given type and id.
// Epoch counters start at zero.
func (p *Page) Init(t PageType, pageID uint32) {
	for i := 0; i < HeaderSize; i++ {
		p.data[i] = 0
	}
	p.setU32(offType, uint32(t))
	p.setU32(offPageID, pageID)
	p.setU32(offLastOffset, uint32(len(p.data)))
	p.setU32(offLength, uint32(len(p.data)))
	p.resetBBox()
}

// Validate checks that the header is consistent with the region it was
// read from.
func (p *Page) Validate() error {
	if len(p.data) < HeaderSize {
		return fmt.Errorf("page region too small: %d bytes", len(p.data))
	}
	if p.Length() != uint32(len(p.data)) {
		return fmt.Errorf("page length mismatch: header says %d, region is %d", p.Length(), len(p.data))
	}
	if p.SyncIndex() > p.Count() {
		return fmt.Errorf("sync index %d exceeds count %d", p.SyncIndex(), p.Count())
	}
	endOfIndex := HeaderSize + offsetSlotSize*int(p.Count())
	if int(p.LastOffset()) < endOfIndex || p.LastOffset() > p.Length() {
		return fmt.Errorf("last offset %d outside [%d, %d]", p.LastOffset(), endOfIndex, p.Length())
	}
	if p.OpenCount() < p.CloseCount() {
		return fmt.Errorf("open count %d below close count %d", p.OpenCount(), p.CloseCount())
	}
	return nil
}

func (p *Page) u32(off int) uint32 { return binary.LittleEndian.Uint32(p.data[off:]) }

func (p *Page) setU32(off int, v uint32) { binary.LittleEndian.PutUint32(p.data[off:], v) }

func (p *Page) i64(off int) int64 { return int64(binary.LittleEndian.Uint64(p.data[off:])) }

func (p *Page) setI64(off int, v int64) { binary.LittleEndian.PutUint64(p.data[off:], uint64(v)) }

// Type returns the page type.
func (p *Page) Type() PageType { return PageType(p.u32(offType)) }

// PageID is stable across reuse.
func (p *Page) PageID() uint32 { return p.u32(offPageID) }

// Count is the number of live entries.
func (p *Page) Count() uint32 { return p.u32(offCount) }

// SyncIndex is the count of offsets already sorted and published to
// readers; search traverses only page_index[0:SyncIndex).
func (p *Page) SyncIndex() uint32 { return p.u32(offSyncIndex) }

// LastOffset is the byte offset of the lowest-addressed entry; free space
// ends there.
func (p *Page) LastOffset() uint32 { return p.u32(offLastOffset) }

// OpenCount counts volume-open epochs.
func (p *Page) OpenCount() uint32 { return p.u32(offOpenCount) }

// CloseCount counts volume-close epochs.
func (p *Page) CloseCount() uint32 { return p.u32(offCloseCount) }

// Length is the total page size in bytes.
func (p *Page) Length() uint32 { return p.u32(offLength) }

// BBox returns the current bounding box.
func (p *Page) BBox() BoundingBox {
	return BoundingBox{
		MinParamId: codec.ParamId(p.u32(offBBoxMinID)),
		MaxParamId: codec.ParamId(p.u32(offBBoxMaxID)),
		MinTime:    codec.Timestamp(p.i64(offBBoxMinTS)),
		MaxTime:    codec.Timestamp(p.i64(offBBoxMaxTS)),
	}
}

func (p *Page) resetBBox() {
	p.setU32(offBBoxMinID, ^uint32(0))
	p.setU32(offBBoxMaxID, 0)
	p.setI64(offBBoxMinTS, int64(codec.MaxTimestamp))
	p.setI64(offBBoxMaxTS, int64(codec.MinTimestamp))
}

func (p *Page) updateBBox(param codec.ParamId, ts codec.Timestamp) {
	if uint32(param) > p.u32(offBBoxMaxID) {
		p.setU32(offBBoxMaxID, uint32(param))
	}
	if uint32(param) < p.u32(offBBoxMinID) {
		p.setU32(offBBoxMinID, uint32(param))
	}
	if int64(ts) > p.i64(offBBoxMaxTS) {
		p.setI64(offBBoxMaxTS, int64(ts))
	}
	if int64(ts) < p.i64(offBBoxMinTS) {
		p.setI64(offBBoxMinTS, int64(ts))
	}
}

// InsideBBox reports whether (param, ts) falls inside the bounding box.
func (p *Page) InsideBBox(param codec.ParamId, ts codec.Timestamp) bool {
	b := p.BBox()
	return ts <= b.MaxTime && ts >= b.MinTime && param <= b.MaxParamId && param >= b.MinParamId
}

// indexAt reads page_index[i].
func (p *Page) indexAt(i int) codec.EntryOffset {
	return codec.EntryOffset(p.u32(HeaderSize + offsetSlotSize*i))
}

func (p *Page) setIndexAt(i int, off codec.EntryOffset) {
	p.setU32(HeaderSize+offsetSlotSize*i, uint32(off))
}

// FreeSpace is the byte gap between the end of the offset index and the
// lowest-addressed entry.
func (p *Page) FreeSpace() int {
	endOfIndex := HeaderSize + offsetSlotSize*int(p.Count())
	return int(p.LastOffset()) - endOfIndex
}

// Reuse resets the page for a new active epoch: entries are forgotten, the
// epoch open counter advances, the id survives.
func (p *Page) Reuse() {
	p.setU32(offCount, 0)
	p.setU32(offSyncIndex, 0)
	p.setU32(offOpenCount, p.OpenCount()+1)
	p.setU32(offLastOffset, p.Length())
	p.resetBBox()
}

// RestoreEpoch reinstates epoch counters over a freshly initialized page.
// Used when a volume's disc space is reallocated: the page is new but its
// crash-recovery history is not.
func (p *Page) RestoreEpoch(openCount, closeCount uint32) {
	p.setU32(offOpenCount, openCount)
	p.setU32(offCloseCount, closeCount)
}

// Close advances the epoch close counter.
func (p *Page) Close() {
	p.setU32(offCloseCount, p.CloseCount()+1)
}

// AddEntry appends a pre-assembled record. On success it returns the
// offset the record landed at. The page is untouched on overflow or bad
// data.
func (p *Page) AddEntry(e *codec.Entry) (codec.EntryOffset, codec.Status) {
	if e.Length < codec.EntryHeaderSize {
		return 0, codec.StatusWriteBadData
	}
	required := int(e.Length) + offsetSlotSize
	if required > p.FreeSpace() {
		return 0, codec.StatusWriteOverflow
	}
	last := p.LastOffset() - e.Length
	e.EncodeTo(p.data[last : last+e.Length])
	p.setU32(offLastOffset, last)
	count := p.Count()
	// The slot write precedes the count increment so a concurrent reader
	// never sees an unwritten offset.
	p.setIndexAt(int(count), codec.EntryOffset(last))
	p.setU32(offCount, count+1)
	p.updateBBox(e.ParamId, e.Timestamp)
	return codec.EntryOffset(last), codec.StatusSuccess
}

// AddEntry2 appends the zero-copy record form: the page assembles the
// stored bytes from the fixed fields and the borrowed payload. The stored
// layout is identical to AddEntry's, so both forms decode through the same
// offset.
func (p *Page) AddEntry2(e *codec.Entry2) (codec.EntryOffset, codec.Status) {
	length := uint32(codec.EntryHeaderSize + len(e.Payload))
	required := int(length) + offsetSlotSize
	if required > p.FreeSpace() {
		return 0, codec.StatusWriteOverflow
	}
	last := p.LastOffset() - length
	buf := p.data[last : last+length]
	binary.LittleEndian.PutUint32(buf[0:], length)
	binary.LittleEndian.PutUint32(buf[4:], uint32(e.ParamId))
	binary.LittleEndian.PutUint64(buf[8:], uint64(e.Timestamp))
	copy(buf[codec.EntryHeaderSize:], e.Payload)
	p.setU32(offLastOffset, last)
	count := p.Count()
	p.setIndexAt(int(count), codec.EntryOffset(last))
	p.setU32(offCount, count+1)
	p.updateBBox(e.ParamId, e.Timestamp)
	return codec.EntryOffset(last), codec.StatusSuccess
}

// ReadEntry decodes the entry at a byte offset. The offset must point into
// the record heap.
func (p *Page) ReadEntry(off codec.EntryOffset) (*codec.Entry, error) {
	if uint32(off) < uint32(HeaderSize) || uint32(off) >= p.Length() {
		return nil, fmt.Errorf("entry offset %d outside page", off)
	}
	return codec.DecodeEntry(p.data[off:])
}

// ReadEntryAt decodes the entry at index position i.
func (p *Page) ReadEntryAt(i int) (*codec.Entry, error) {
	if i < 0 || i >= int(p.Count()) {
		return nil, fmt.Errorf("entry index %d out of range [0, %d)", i, p.Count())
	}
	return p.ReadEntry(p.indexAt(i))
}

// keyAt reads the ordering key of the entry at index position i without
// decoding the payload.
func (p *Page) keyAt(i int) (codec.Timestamp, codec.ParamId) {
	return codec.PeekKey(p.data[p.indexAt(i):])
}

// Sort reorders page_index[0:Count) ascending by (timestamp, param_id).
// Insertion sort on purpose: input disorder is bounded by the TTL and by
// client send order, so the window is small.
func (p *Page) Sort() {
	n := int(p.Count())
	for i := 1; i < n; i++ {
		off := p.indexAt(i)
		ts, param := codec.PeekKey(p.data[off:])
		j := i - 1
		for j >= 0 {
			jts, jparam := p.keyAt(j)
			if jts < ts || (jts == ts && jparam <= param) {
				break
			}
			p.setIndexAt(j+1, p.indexAt(j))
			j--
		}
		p.setIndexAt(j+1, off)
	}
}

// SyncIndexes mirrors externally-sorted offsets into the index slots
// starting at SyncIndex and publishes them to readers. The write is
// clamped so SyncIndex never exceeds Count. Returns how many offsets were
// applied.
func (p *Page) SyncIndexes(offsets []codec.EntryOffset) int {
	sync := p.SyncIndex()
	n := len(offsets)
	if sync+uint32(n) > p.Count() {
		n = int(p.Count() - sync)
	}
	for i := 0; i < n; i++ {
		p.setIndexAt(int(sync)+i, offsets[i])
	}
	p.setU32(offSyncIndex, sync+uint32(n))
	return n
}
