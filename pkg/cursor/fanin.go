package cursor

import (
	"container/heap"
	"context"

	"github.com/ringdb/ringdb/pkg/codec"
)

// fanInBatchSize is how many results the merger pulls from a source per
// refill.
const fanInBatchSize = 64

// FanInCursor merges N external cursors, each already ordered in the scan
// direction, into one globally ordered stream. It is itself an external
// cursor backed by the same stream bridge. The merge is stable: equal keys
// come out in source order.
type FanInCursor struct {
	*StreamCursor
	sources []External
}

// NewFanIn constructs the merger over sources scanning in dir. It takes
// ownership of the sources; closing the merger closes them too.
func NewFanIn(sources []External, dir codec.Direction) *FanInCursor {
	f := &FanInCursor{sources: sources}
	f.StreamCursor = NewStream(func(cur Internal) {
		f.merge(cur, dir)
	})
	return f
}

// Close releases the output stream and every source.
func (f *FanInCursor) Close() {
	f.StreamCursor.Close()
	for _, src := range f.sources {
		src.Close()
	}
}

// fanInSource buffers one input cursor.
type fanInSource struct {
	cur External
	buf [fanInBatchSize]Result
	pos int
	n   int
}

// next returns the head result, refilling from the cursor as needed. The
// second return is false once the source is exhausted; a source error is
// returned as the status.
func (s *fanInSource) next() (Result, bool, *codec.Status) {
	if s.pos == s.n {
		s.n = s.cur.Read(s.buf[:])
		s.pos = 0
		if s.n == 0 {
			if code, ok := s.cur.IsError(); ok {
				return Result{}, false, &code
			}
			return Result{}, false, nil
		}
	}
	r := s.buf[s.pos]
	s.pos++
	return r, true, nil
}

type fanInHead struct {
	r   Result
	src int
}

type fanInHeap struct {
	heads    []fanInHead
	backward bool
}

func (h *fanInHeap) Len() int { return len(h.heads) }

func (h *fanInHeap) Less(i, j int) bool {
	a, b := h.heads[i], h.heads[j]
	if a.r.Timestamp != b.r.Timestamp {
		if h.backward {
			return a.r.Timestamp > b.r.Timestamp
		}
		return a.r.Timestamp < b.r.Timestamp
	}
	if a.r.ParamId != b.r.ParamId {
		if h.backward {
			return a.r.ParamId > b.r.ParamId
		}
		return a.r.ParamId < b.r.ParamId
	}
	return a.src < b.src
}

func (h *fanInHeap) Swap(i, j int) { h.heads[i], h.heads[j] = h.heads[j], h.heads[i] }

func (h *fanInHeap) Push(x any) { h.heads = append(h.heads, x.(fanInHead)) }

func (h *fanInHeap) Pop() any {
	last := len(h.heads) - 1
	v := h.heads[last]
	h.heads = h.heads[:last]
	return v
}

// merge is the producer task of the output stream.
func (f *FanInCursor) merge(cur Internal, dir codec.Direction) {
	ctx := context.Background()

	srcs := make([]*fanInSource, len(f.sources))
	h := &fanInHeap{backward: dir == codec.Backward}
	for i, in := range f.sources {
		srcs[i] = &fanInSource{cur: in}
		r, ok, errCode := srcs[i].next()
		if errCode != nil {
			cur.SetError(ctx, *errCode)
			return
		}
		if ok {
			h.heads = append(h.heads, fanInHead{r: r, src: i})
		}
	}
	heap.Init(h)

	for h.Len() > 0 {
		head := heap.Pop(h).(fanInHead)
		if !cur.Put(ctx, head.r) {
			return
		}
		r, ok, errCode := srcs[head.src].next()
		if errCode != nil {
			cur.SetError(ctx, *errCode)
			return
		}
		if ok {
			heap.Push(h, fanInHead{r: r, src: head.src})
		}
	}
	cur.Complete(ctx)
}
