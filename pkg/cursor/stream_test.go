package cursor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringdb/ringdb/pkg/codec"
)

func mkResult(ts codec.Timestamp) Result {
	return Result{Offset: codec.EntryOffset(ts), Timestamp: ts, ParamId: 1}
}

func readAll(cur External) []Result {
	var out []Result
	buf := make([]Result, 4)
	for {
		n := cur.Read(buf)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

func TestStreamOrderPreserved(t *testing.T) {
	ctx := context.Background()
	cur := NewStream(func(c Internal) {
		for ts := codec.Timestamp(1); ts <= 100; ts++ {
			if !c.Put(ctx, mkResult(ts)) {
				return
			}
		}
		c.Complete(ctx)
	})

	results := readAll(cur)
	require.Len(t, results, 100)
	for i, r := range results {
		assert.Equal(t, codec.Timestamp(i+1), r.Timestamp)
	}
	assert.True(t, cur.IsDone())
	_, hasErr := cur.IsError()
	assert.False(t, hasErr)
}

func TestStreamProducerSuspendsOnFullBuffer(t *testing.T) {
	ctx := context.Background()
	var produced atomic.Int64
	cur := NewStreamSize(2, func(c Internal) {
		for ts := codec.Timestamp(1); ts <= 50; ts++ {
			if !c.Put(ctx, mkResult(ts)) {
				return
			}
			produced.Add(1)
		}
		c.Complete(ctx)
	})

	// Without reads the producer can only fill the bounded buffer.
	require.Eventually(t, func() bool { return produced.Load() >= 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, produced.Load(), int64(3))

	results := readAll(cur)
	assert.Len(t, results, 50)
}

func TestStreamError(t *testing.T) {
	ctx := context.Background()
	cur := NewStream(func(c Internal) {
		c.Put(ctx, mkResult(1))
		c.SetError(ctx, codec.StatusSearchBadArg)
	})

	results := readAll(cur)
	assert.Len(t, results, 1)
	code, hasErr := cur.IsError()
	require.True(t, hasErr)
	assert.Equal(t, codec.StatusSearchBadArg, code)
	assert.True(t, cur.IsDone())
}

func TestStreamCloseStopsProducer(t *testing.T) {
	ctx := context.Background()
	stopped := make(chan struct{})
	cur := NewStreamSize(1, func(c Internal) {
		defer close(stopped)
		for ts := codec.Timestamp(1); ; ts++ {
			if !c.Put(ctx, mkResult(ts)) {
				return
			}
		}
	})

	buf := make([]Result, 1)
	require.Equal(t, 1, cur.Read(buf))
	cur.Close()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("producer did not observe close")
	}
}

func TestStreamReadZeroBuffer(t *testing.T) {
	cur := NewStream(func(c Internal) {
		c.Complete(context.Background())
	})
	assert.Equal(t, 0, cur.Read(nil))
}

func TestBufferedCursor(t *testing.T) {
	ctx := context.Background()
	buf := make([]Result, 2)
	cur := NewBuffered(buf)

	assert.True(t, cur.Put(ctx, mkResult(1)))
	assert.True(t, cur.Put(ctx, mkResult(2)))
	assert.False(t, cur.Put(ctx, mkResult(3)))
	assert.True(t, cur.ErrSet)
	assert.Equal(t, 2, cur.Count)
}

func TestRecordingCursorClose(t *testing.T) {
	ctx := context.Background()
	rec := &RecordingCursor{}
	assert.True(t, rec.Put(ctx, mkResult(1)))
	rec.Close()
	assert.False(t, rec.Put(ctx, mkResult(2)))
	assert.Len(t, rec.Results, 1)
}
