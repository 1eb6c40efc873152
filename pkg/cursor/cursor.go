// Package cursor implements the streaming result protocol used by the
// search path: an internal producer interface driven by search code, an
// external consumer interface driven by callers, a goroutine-backed bridge
// between the two, and a fan-in merger combining several streams.
package cursor

import (
	"context"

	"github.com/ringdb/ringdb/pkg/codec"
)

// EntryReader resolves an offset emitted by a search back into the stored
// entry. A page satisfies this.
type EntryReader interface {
	ReadEntry(offset codec.EntryOffset) (*codec.Entry, error)
}

// Result is a single search hit: the offset of the matching entry, its
// ordering key, and the page it lives in.
type Result struct {
	Offset    codec.EntryOffset
	Timestamp codec.Timestamp
	ParamId   codec.ParamId
	Page      EntryReader
}

// Internal is the producer side of a cursor. Search code delivers results
// through it and must stop producing once Put returns false.
type Internal interface {
	// Put delivers one result. It returns false if the consumer has
	// closed the stream; the producer must then unwind without calling
	// Complete.
	Put(ctx context.Context, r Result) bool
	// Complete signals end-of-stream. No further calls are permitted.
	Complete(ctx context.Context)
	// SetError signals failure and implies completion.
	SetError(ctx context.Context, code codec.Status)
}

// External is the consumer side of a cursor.
type External interface {
	// Read copies up to len(buf) produced results into buf and returns
	// how many were written. It blocks until at least one result is
	// available or the stream has completed or errored, and returns 0
	// only at end-of-stream or error.
	Read(buf []Result) int
	IsDone() bool
	// IsError reports the error code, if any. Meaningful once the
	// stream has completed.
	IsError() (codec.Status, bool)
	// Close releases the stream. Any subsequent Put returns false.
	Close()
}

// Cursor combines both roles.
type Cursor interface {
	Internal
	External
}
