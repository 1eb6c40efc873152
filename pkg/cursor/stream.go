package cursor

import (
	"context"
	"sync"

	"github.com/ringdb/ringdb/pkg/codec"
)

// DefaultBufferSize is the capacity of the bounded channel between a
// stream cursor's producer and consumer. The producer suspends on Put once
// this many results are unread.
const DefaultBufferSize = 64

// StreamCursor bridges a producer task and a consumer into a lazy stream.
// The producer runs in its own goroutine and suspends inside Put whenever
// the bounded buffer is full; the consumer suspends inside Read until at
// least one result is available. Results reach the consumer in the exact
// order the producer called Put.
type StreamCursor struct {
	results chan Result
	closed  chan struct{}

	closeOnce    sync.Once
	completeOnce sync.Once

	mu     sync.Mutex
	code   codec.Status
	errSet bool
	done   bool
}

// NewStream constructs a stream cursor and starts run as its producer
// task. The task receives the cursor's internal interface and must finish
// with Complete or SetError, or unwind when Put returns false.
func NewStream(run func(cur Internal)) *StreamCursor {
	return NewStreamSize(DefaultBufferSize, run)
}

// NewStreamSize is NewStream with an explicit buffer capacity.
func NewStreamSize(size int, run func(cur Internal)) *StreamCursor {
	if size < 1 {
		size = 1
	}
	c := &StreamCursor{
		results: make(chan Result, size),
		closed:  make(chan struct{}),
	}
	go run(c)
	return c
}

// Put implements Internal.
func (c *StreamCursor) Put(ctx context.Context, r Result) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.results <- r:
		return true
	case <-c.closed:
		return false
	case <-ctx.Done():
		return false
	}
}

// Complete implements Internal.
func (c *StreamCursor) Complete(ctx context.Context) {
	c.completeOnce.Do(func() {
		close(c.results)
	})
}

// SetError implements Internal.
func (c *StreamCursor) SetError(ctx context.Context, code codec.Status) {
	c.mu.Lock()
	if !c.errSet {
		c.code = code
		c.errSet = true
	}
	c.mu.Unlock()
	c.Complete(ctx)
}

// Read implements External. The first result is awaited; any further
// results already buffered are drained without blocking.
func (c *StreamCursor) Read(buf []Result) int {
	if len(buf) == 0 {
		return 0
	}
	var r Result
	var ok bool
	select {
	case r, ok = <-c.results:
	case <-c.closed:
		c.markDone()
		return 0
	}
	if !ok {
		c.markDone()
		return 0
	}
	buf[0] = r
	n := 1
	for n < len(buf) {
		select {
		case r, ok := <-c.results:
			if !ok {
				c.markDone()
				return n
			}
			buf[n] = r
			n++
		default:
			return n
		}
	}
	return n
}

func (c *StreamCursor) markDone() {
	c.mu.Lock()
	c.done = true
	c.mu.Unlock()
}

// IsDone implements External.
func (c *StreamCursor) IsDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// IsError implements External.
func (c *StreamCursor) IsError() (codec.Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code, c.errSet
}

// Close implements External. The producer observes it as a false return
// from its next Put.
func (c *StreamCursor) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	c.markDone()
}
