package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryRoundTrip(t *testing.T) {
	e := NewEntry(42, 1000, []byte("payload bytes"))
	require.Equal(t, EntryHeaderSize+13, e.Size())

	data := e.Encode()
	decoded, err := DecodeEntry(data)
	require.NoError(t, err)

	assert.Equal(t, e.Length, decoded.Length)
	assert.Equal(t, e.ParamId, decoded.ParamId)
	assert.Equal(t, e.Timestamp, decoded.Timestamp)
	assert.Equal(t, e.Payload, decoded.Payload)
}

func TestDecodeEntryShortData(t *testing.T) {
	_, err := DecodeEntry([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeEntryBadLength(t *testing.T) {
	e := NewEntry(1, 1, []byte("x"))
	data := e.Encode()

	// Corrupt the length field below the header size.
	data[0] = 4
	data[1] = 0
	data[2] = 0
	data[3] = 0
	_, err := DecodeEntry(data)
	assert.Error(t, err)
}

func TestDecodeEntryTruncated(t *testing.T) {
	e := NewEntry(1, 1, []byte("some payload"))
	data := e.Encode()
	_, err := DecodeEntry(data[:len(data)-4])
	assert.Error(t, err)
}

func TestPeekKey(t *testing.T) {
	e := NewEntry(9, 12345, nil)
	data := e.Encode()
	ts, param := PeekKey(data)
	assert.Equal(t, Timestamp(12345), ts)
	assert.Equal(t, ParamId(9), param)
}

func TestTimestampSub(t *testing.T) {
	assert.Equal(t, Duration(25), Timestamp(100).Sub(Timestamp(75)))
	assert.Equal(t, Duration(-25), Timestamp(75).Sub(Timestamp(100)))
}

func TestDirectionValid(t *testing.T) {
	assert.True(t, Forward.Valid())
	assert.True(t, Backward.Valid())
	assert.False(t, Direction(7).Valid())
}
