package page

import (
	"github.com/ringdb/ringdb/pkg/codec"
)

// Query is the validated descriptor of a single-parameter range search.
type Query struct {
	Param      codec.ParamId
	Lowerbound codec.Timestamp
	Upperbound codec.Timestamp
	Direction  codec.Direction
}

// Validate checks that the query is well-formed.
func (q *Query) Validate() error {
	if !q.Direction.Valid() {
		return codec.ErrBadArg
	}
	if q.Upperbound < q.Lowerbound {
		return codec.ErrBadArg
	}
	return nil
}
