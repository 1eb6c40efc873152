package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Timestamp is an opaque monotonic clock value with total order.
// Subtracting two timestamps yields a Duration in the same unit.
type Timestamp int64

// Duration is the difference between two Timestamps.
type Duration int64

// Timestamp bounds.
const (
	MinTimestamp Timestamp = 0
	MaxTimestamp Timestamp = math.MaxInt64
)

// Sub returns the duration between two timestamps.
func (t Timestamp) Sub(other Timestamp) Duration {
	return Duration(t - other)
}

// ParamId identifies a time series. The engine treats it as opaque.
type ParamId uint32

// EntryOffset is a byte offset from the start of a page pointing at the
// first byte of a stored entry.
type EntryOffset uint32

// EntryHeaderSize is the fixed prefix of every stored entry:
// length(4) + param_id(4) + timestamp(8).
const EntryHeaderSize = 16

// Entry is a single variable-length sample record. Length counts the whole
// record including the header; it is authoritative for delimiting records
// inside a page.
type Entry struct {
	Length    uint32
	ParamId   ParamId
	Timestamp Timestamp
	Payload   []byte
}

// Entry2 is the zero-copy packaging variant of Entry: the caller hands the
// fixed fields and a borrowed payload slice, and the page assembles the
// stored bytes itself. Both forms decode through the same offset.
type Entry2 struct {
	ParamId   ParamId
	Timestamp Timestamp
	Payload   []byte
}

// NewEntry builds an Entry around a payload with a consistent Length.
func NewEntry(param ParamId, ts Timestamp, payload []byte) Entry {
	return Entry{
		Length:    uint32(EntryHeaderSize + len(payload)),
		ParamId:   param,
		Timestamp: ts,
		Payload:   payload,
	}
}

// Size returns the total encoded size of the entry in bytes.
func (e *Entry) Size() int {
	return EntryHeaderSize + len(e.Payload)
}

// Encode serializes the entry into its on-page binary form.
// Format: [Length(4)][ParamId(4)][Timestamp(8)][Payload].
// The layout is fixed little-endian.
func (e *Entry) Encode() []byte {
	buf := make([]byte, e.Size())
	e.EncodeTo(buf)
	return buf
}

// EncodeTo writes the entry into buf, which must hold at least Size() bytes.
func (e *Entry) EncodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], e.Length)
	binary.LittleEndian.PutUint32(buf[4:], uint32(e.ParamId))
	binary.LittleEndian.PutUint64(buf[8:], uint64(e.Timestamp))
	copy(buf[EntryHeaderSize:], e.Payload)
}

// DecodeEntry deserializes an entry from data. The returned payload
// borrows from data.
func DecodeEntry(data []byte) (*Entry, error) {
	if len(data) < EntryHeaderSize {
		return nil, fmt.Errorf("data too short for entry header: %d bytes", len(data))
	}

	e := &Entry{}
	e.Length = binary.LittleEndian.Uint32(data[0:4])
	e.ParamId = ParamId(binary.LittleEndian.Uint32(data[4:8]))
	e.Timestamp = Timestamp(binary.LittleEndian.Uint64(data[8:16]))

	if e.Length < EntryHeaderSize {
		return nil, fmt.Errorf("entry length %d below header size", e.Length)
	}
	if len(data) < int(e.Length) {
		return nil, fmt.Errorf("data too short for entry length: %d < %d", len(data), e.Length)
	}

	e.Payload = data[EntryHeaderSize:e.Length]
	return e, nil
}

// PeekKey reads only the ordering key (timestamp, param id) of the entry
// starting at data without materializing the payload.
func PeekKey(data []byte) (Timestamp, ParamId) {
	param := ParamId(binary.LittleEndian.Uint32(data[4:8]))
	ts := Timestamp(binary.LittleEndian.Uint64(data[8:16]))
	return ts, param
}
