package volume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringdb/ringdb/pkg/codec"
	"github.com/ringdb/ringdb/pkg/page"
)

const testVolumeSize = 64 * 1024

func createTestVolume(t *testing.T, activate bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test_0.volume")
	require.NoError(t, CreateVolumeFile(path, testVolumeSize, 7, activate))
	return path
}

func TestCreateVolumeFile(t *testing.T) {
	path := createTestVolume(t, false)

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(testVolumeSize), st.Size())

	vol, err := OpenVolume(path, 0, 16)
	require.NoError(t, err)
	defer vol.Release()

	p := vol.Page()
	assert.Equal(t, uint32(7), p.PageID())
	assert.Equal(t, uint32(0), p.Count())
	assert.Equal(t, uint32(0), p.OpenCount())
}

func TestCreateVolumeFileActivated(t *testing.T) {
	path := createTestVolume(t, true)

	vol, err := OpenVolume(path, 0, 16)
	require.NoError(t, err)
	defer vol.Release()

	assert.Equal(t, uint32(1), vol.Page().OpenCount())
	assert.Equal(t, uint32(0), vol.Page().CloseCount())
}

func TestCreateVolumeFileExists(t *testing.T) {
	path := createTestVolume(t, false)
	assert.Error(t, CreateVolumeFile(path, testVolumeSize, 0, false))
}

func TestOpenVolumeRejectsCorruptHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.volume")
	data := make([]byte, testVolumeSize)
	for i := range data {
		data[i] = 0xFF
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err := OpenVolume(path, 0, 16)
	assert.Error(t, err)
}

func TestWritesSurviveReopen(t *testing.T) {
	path := createTestVolume(t, true)

	vol, err := OpenVolume(path, 0, 16)
	require.NoError(t, err)

	e := codec.NewEntry(3, 42, []byte("persisted"))
	_, status := vol.Page().AddEntry(&e)
	require.Equal(t, codec.StatusSuccess, status)
	require.NoError(t, vol.Flush())
	require.NoError(t, vol.Release())

	vol, err = OpenVolume(path, 0, 16)
	require.NoError(t, err)
	defer vol.Release()

	require.Equal(t, uint32(1), vol.Page().Count())
	got, err := vol.Page().ReadEntryAt(0)
	require.NoError(t, err)
	assert.Equal(t, codec.ParamId(3), got.ParamId)
	assert.Equal(t, []byte("persisted"), got.Payload)
}

func TestReallocatePreservesIdentity(t *testing.T) {
	path := createTestVolume(t, true)

	vol, err := OpenVolume(path, 0, 16)
	require.NoError(t, err)
	defer vol.Release()

	e := codec.NewEntry(1, 1, []byte("doomed"))
	_, status := vol.Page().AddEntry(&e)
	require.Equal(t, codec.StatusSuccess, status)
	require.NoError(t, vol.Close())

	open, closed := vol.Page().OpenCount(), vol.Page().CloseCount()

	p, err := vol.ReallocateDiscSpace()
	require.NoError(t, err)

	assert.Equal(t, uint32(7), p.PageID())
	assert.Equal(t, page.TypeIndex, p.Type())
	assert.Equal(t, open, p.OpenCount())
	assert.Equal(t, closed, p.CloseCount())
	assert.Equal(t, uint32(0), p.Count())
	assert.Equal(t, p.Length(), p.LastOffset())
}

func TestOpenCloseEpochs(t *testing.T) {
	path := createTestVolume(t, false)

	vol, err := OpenVolume(path, 0, 16)
	require.NoError(t, err)
	defer vol.Release()

	require.NoError(t, vol.Open())
	assert.Equal(t, uint32(1), vol.Page().OpenCount())
	assert.Equal(t, uint32(0), vol.Page().CloseCount())

	require.NoError(t, vol.Close())
	assert.Equal(t, uint32(1), vol.Page().CloseCount())
}
