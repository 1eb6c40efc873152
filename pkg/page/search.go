package page

import (
	"context"

	"github.com/ringdb/ringdb/pkg/codec"
	"github.com/ringdb/ringdb/pkg/cursor"
)

const (
	// interpolationQuota bounds how many interpolation probes run before
	// falling back to bisection.
	interpolationQuota = 5
	// interpolationCutoff is the range width below which interpolation
	// stops paying for itself.
	interpolationCutoff = 64
)

// Search runs the single-parameter range query against the synced prefix
// of the index and delivers matching offsets through cur in scan order.
//
// Three phases: interpolation probes narrow the range using the bounding
// box timestamps, bisection finalizes the position, and a linear scan
// applies the parameter filter while emitting results. The index is sorted
// by timestamp only, so candidates for one parameter are sparse among
// neighbors; the filter belongs in the scan.
func (p *Page) Search(ctx context.Context, cur cursor.Internal, q Query) {
	if err := q.Validate(); err != nil {
		cur.SetError(ctx, codec.StatusSearchBadArg)
		return
	}

	n := int(p.SyncIndex())
	if n == 0 {
		cur.Complete(ctx)
		return
	}

	backward := q.Direction == codec.Backward
	key := q.Lowerbound
	if backward {
		key = q.Upperbound
	}

	bbox := p.BBox()
	begin, end := 0, n-1
	probe := 0

	if key >= bbox.MinTime && key <= bbox.MaxTime {
		lowerVal := int64(bbox.MinTime)
		upperVal := int64(bbox.MaxTime)

		for quota := interpolationQuota; quota > 0; quota-- {
			// On small distances fall back to bisection.
			if end-begin < interpolationCutoff {
				break
			}
			denom := upperVal - lowerVal
			if denom <= 0 {
				break
			}
			pi := begin + int((int64(key)-lowerVal)*int64(end-begin)/denom)
			if pi <= begin || pi >= end {
				break
			}
			ts, _ := p.keyAt(pi)
			if ts < key {
				begin = pi + 1
				bts, _ := p.keyAt(begin)
				lowerVal = int64(bts)
			} else {
				end = pi - 1
				ets, _ := p.keyAt(end)
				upperVal = int64(ets)
			}
		}

		for begin <= end {
			pi := begin + (end-begin)/2
			probe = pi
			ts, _ := p.keyAt(pi)
			if ts == key {
				break
			}
			if ts < key {
				begin = pi + 1
				if begin == n {
					break
				}
			} else {
				end = pi - 1
				if end < 0 {
					break
				}
			}
		}
	} else {
		// Shortcuts for keys outside the bounding box.
		if key > bbox.MaxTime {
			if !backward {
				cur.Complete(ctx)
				return
			}
			probe = end
		} else {
			if backward {
				cur.Complete(ctx)
				return
			}
			probe = begin
		}
	}

	// Bisection may land mid-run of equal timestamps; back the probe up to
	// the boundary of the range so no qualifying entry is skipped.
	if backward {
		for probe < n-1 {
			ts, _ := p.keyAt(probe + 1)
			if ts > q.Upperbound {
				break
			}
			probe++
		}
	} else {
		for probe > 0 {
			ts, _ := p.keyAt(probe - 1)
			if ts < q.Lowerbound {
				break
			}
			probe--
		}
	}

	p.scan(ctx, cur, q, probe, n, backward)
}

// scan walks the index from probe in the query direction, emitting every
// entry that matches both the parameter and the time range.
func (p *Page) scan(ctx context.Context, cur cursor.Internal, q Query, probe, n int, backward bool) {
	if backward {
		for i := probe; ; i-- {
			off := p.indexAt(i)
			ts, param := codec.PeekKey(p.data[off:])
			if param == q.Param && ts >= q.Lowerbound && ts <= q.Upperbound {
				if !cur.Put(ctx, cursor.Result{Offset: off, Timestamp: ts, ParamId: param, Page: p}) {
					return
				}
			}
			if ts < q.Lowerbound || i == 0 {
				cur.Complete(ctx)
				return
			}
		}
	}
	for i := probe; ; i++ {
		off := p.indexAt(i)
		ts, param := codec.PeekKey(p.data[off:])
		if param == q.Param && ts >= q.Lowerbound && ts <= q.Upperbound {
			if !cur.Put(ctx, cursor.Result{Offset: off, Timestamp: ts, ParamId: param, Page: p}) {
				return
			}
		}
		if ts > q.Upperbound || i == n-1 {
			cur.Complete(ctx)
			return
		}
	}
}
