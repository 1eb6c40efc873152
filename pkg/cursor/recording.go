package cursor

import (
	"context"

	"github.com/ringdb/ringdb/pkg/codec"
)

// RecordingCursor stores every result in memory. Used by tests and by
// callers that want the whole result set at once.
type RecordingCursor struct {
	Results   []Result
	Completed bool
	Code      codec.Status
	ErrSet    bool
	closed    bool
}

// Put implements Internal.
func (c *RecordingCursor) Put(ctx context.Context, r Result) bool {
	if c.closed {
		return false
	}
	c.Results = append(c.Results, r)
	return true
}

// Complete implements Internal.
func (c *RecordingCursor) Complete(ctx context.Context) {
	c.Completed = true
}

// SetError implements Internal.
func (c *RecordingCursor) SetError(ctx context.Context, code codec.Status) {
	c.Code = code
	c.ErrSet = true
	c.Completed = true
}

// Close stops accepting results; subsequent Put returns false.
func (c *RecordingCursor) Close() {
	c.closed = true
}

// BufferedCursor writes results into a caller-owned fixed buffer. Once the
// buffer fills, further Put calls fail the stream.
type BufferedCursor struct {
	buf       []Result
	Count     int
	Completed bool
	Code      codec.Status
	ErrSet    bool
}

// NewBuffered wraps buf as the cursor's output region.
func NewBuffered(buf []Result) *BufferedCursor {
	return &BufferedCursor{buf: buf}
}

// Put implements Internal.
func (c *BufferedCursor) Put(ctx context.Context, r Result) bool {
	if c.Count == len(c.buf) {
		c.SetError(ctx, codec.StatusWriteOverflow)
		return false
	}
	c.buf[c.Count] = r
	c.Count++
	return true
}

// Complete implements Internal.
func (c *BufferedCursor) Complete(ctx context.Context) {
	c.Completed = true
}

// SetError implements Internal.
func (c *BufferedCursor) SetError(ctx context.Context, code codec.Status) {
	c.Code = code
	c.ErrSet = true
	c.Completed = true
}
