package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringdb/ringdb/pkg/codec"
	"github.com/ringdb/ringdb/pkg/cursor"
	"github.com/ringdb/ringdb/pkg/page"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestStorage(t *testing.T, numVolumes, pageSize int) string {
	t.Helper()
	dir := t.TempDir()
	mdPath, err := Create(CreateConfig{
		BaseName:    "test",
		MetadataDir: dir,
		VolumesDir:  dir,
		NumVolumes:  numVolumes,
		PageSize:    pageSize,
	})
	require.NoError(t, err)
	return mdPath
}

func openTestStorage(t *testing.T, mdPath string, cacheSize int) *Storage {
	t.Helper()
	s, err := Open(Config{
		MetadataPath: mdPath,
		MaxCacheSize: cacheSize,
		Logger:       discardLogger(),
	})
	require.NoError(t, err)
	return s
}

func writeSample(t *testing.T, s *Storage, param codec.ParamId, ts codec.Timestamp) {
	t.Helper()
	require.NoError(t, s.WriteEntry2(codec.Entry2{
		ParamId:   param,
		Timestamp: ts,
		Payload:   []byte("01234567"),
	}))
}

func collect(t *testing.T, cur cursor.External) []cursor.Result {
	t.Helper()
	var out []cursor.Result
	buf := make([]cursor.Result, 32)
	for {
		n := cur.Read(buf)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

func TestCreateLaysOutFiles(t *testing.T) {
	dir := t.TempDir()
	mdPath, err := Create(CreateConfig{
		BaseName:    "metrics",
		MetadataDir: dir,
		VolumesDir:  dir,
		NumVolumes:  3,
		PageSize:    64 * 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "metrics.ringdb"), mdPath)

	md, err := LoadMetadata(mdPath)
	require.NoError(t, err)
	assert.Equal(t, 3, md.NumVolumes)
	assert.NotEmpty(t, md.StorageID)
	for i, path := range md.VolumePaths() {
		st, err := os.Stat(path)
		require.NoError(t, err, "volume %d", i)
		assert.Equal(t, int64(64*1024), st.Size())
	}
}

func TestCreateRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(CreateConfig{BaseName: "", MetadataDir: dir, VolumesDir: dir, NumVolumes: 1})
	assert.Error(t, err)
	_, err = Create(CreateConfig{BaseName: "x", MetadataDir: dir, VolumesDir: dir, NumVolumes: 0})
	assert.Error(t, err)
}

func TestWriteAndSearch(t *testing.T) {
	mdPath := createTestStorage(t, 3, 256*1024)
	s := openTestStorage(t, mdPath, 16)
	defer s.Close()

	for i := codec.Timestamp(1); i <= 50; i++ {
		writeSample(t, s, 1, i)
		writeSample(t, s, 2, i)
	}
	require.NoError(t, s.Sync())

	cur := s.Search(context.Background(), page.Query{
		Param:      2,
		Lowerbound: 1,
		Upperbound: 50,
		Direction:  codec.Forward,
	})
	defer cur.Close()

	results := collect(t, cur)
	require.Len(t, results, 50)
	for i, r := range results {
		assert.Equal(t, codec.ParamId(2), r.ParamId)
		assert.Equal(t, codec.Timestamp(i+1), r.Timestamp)
	}
	_, hasErr := cur.IsError()
	assert.False(t, hasErr)
}

func TestSearchBackward(t *testing.T) {
	mdPath := createTestStorage(t, 2, 256*1024)
	s := openTestStorage(t, mdPath, 16)
	defer s.Close()

	for i := codec.Timestamp(1); i <= 100; i++ {
		writeSample(t, s, 3, i)
	}
	require.NoError(t, s.Sync())

	cur := s.Search(context.Background(), page.Query{
		Param:      3,
		Lowerbound: 10,
		Upperbound: 20,
		Direction:  codec.Backward,
	})
	defer cur.Close()

	results := collect(t, cur)
	require.Len(t, results, 11)
	for i, r := range results {
		assert.Equal(t, codec.Timestamp(20-i), r.Timestamp)
	}
}

func TestRotationOnOverflow(t *testing.T) {
	mdPath := createTestStorage(t, 3, 4096)
	s := openTestStorage(t, mdPath, 8)
	defer s.Close()

	require.Equal(t, 0, s.ActiveIndex())

	// A 4 KiB page fits well under 200 of these samples; the ring must
	// rotate at least once.
	const samples = 200
	for i := codec.Timestamp(1); i <= samples; i++ {
		writeSample(t, s, 9, i)
	}
	require.NoError(t, s.Sync())

	stats := s.Stats()
	assert.Greater(t, s.ActiveIndex(), 0)
	assert.Equal(t, uint32(1), stats[0].CloseCount, "first volume closed on rotation")
	assert.Equal(t, stats[0].OpenCount, stats[0].CloseCount)

	// Records from the rotated-out volume are still searchable.
	cur := s.Search(context.Background(), page.Query{
		Param:      9,
		Lowerbound: 1,
		Upperbound: samples,
		Direction:  codec.Forward,
	})
	defer cur.Close()

	results := collect(t, cur)
	require.Len(t, results, samples)
	for i, r := range results {
		assert.Equal(t, codec.Timestamp(i+1), r.Timestamp)
	}
}

func TestRingWrapsDestroysOldest(t *testing.T) {
	mdPath := createTestStorage(t, 2, 4096)
	s := openTestStorage(t, mdPath, 8)
	defer s.Close()

	// Enough writes to wrap the two-volume ring: the oldest page is
	// recycled and its samples are gone.
	const samples = 500
	for i := codec.Timestamp(1); i <= samples; i++ {
		writeSample(t, s, 1, i)
	}
	require.NoError(t, s.Sync())

	cur := s.Search(context.Background(), page.Query{
		Param:      1,
		Lowerbound: 1,
		Upperbound: samples,
		Direction:  codec.Forward,
	})
	defer cur.Close()

	results := collect(t, cur)
	require.NotEmpty(t, results)
	require.Less(t, len(results), samples)
	// What survives is the most recent contiguous suffix.
	assert.Equal(t, codec.Timestamp(samples), results[len(results)-1].Timestamp)
	for i := 1; i < len(results); i++ {
		assert.Equal(t, results[i-1].Timestamp+1, results[i].Timestamp)
	}
}

func TestSelectActiveAfterCleanClose(t *testing.T) {
	mdPath := createTestStorage(t, 3, 64*1024)

	s := openTestStorage(t, mdPath, 8)
	require.Equal(t, 0, s.ActiveIndex())
	writeSample(t, s, 1, 10)
	require.NoError(t, s.Close())

	// A clean close balances the active volume's epochs; reopening must
	// advance once to begin a new epoch on the next volume.
	s = openTestStorage(t, mdPath, 8)
	defer s.Close()
	assert.Equal(t, 1, s.ActiveIndex())

	stats := s.Stats()
	assert.Equal(t, uint32(1), stats[0].OpenCount)
	assert.Equal(t, uint32(1), stats[0].CloseCount)
	assert.Equal(t, uint32(1), stats[1].OpenCount)
	assert.Equal(t, uint32(0), stats[1].CloseCount)

	// The closed volume's data is still there.
	require.NoError(t, s.Sync())
	cur := s.Search(context.Background(), page.Query{
		Param: 1, Lowerbound: 0, Upperbound: 100, Direction: codec.Forward,
	})
	defer cur.Close()
	assert.Len(t, collect(t, cur), 1)
}

func TestWriteBadData(t *testing.T) {
	mdPath := createTestStorage(t, 2, 64*1024)
	s := openTestStorage(t, mdPath, 8)
	defer s.Close()

	e := codec.NewEntry(1, 1, nil)
	e.Length = codec.EntryHeaderSize - 1
	err := s.Write(e)
	assert.ErrorIs(t, err, codec.ErrBadData)
}

func TestSearchInvalidQuery(t *testing.T) {
	mdPath := createTestStorage(t, 2, 64*1024)
	s := openTestStorage(t, mdPath, 8)
	defer s.Close()

	cur := s.Search(context.Background(), page.Query{
		Param: 1, Lowerbound: 20, Upperbound: 10, Direction: codec.Forward,
	})
	defer cur.Close()

	assert.Empty(t, collect(t, cur))
	code, hasErr := cur.IsError()
	require.True(t, hasErr)
	assert.Equal(t, codec.StatusSearchBadArg, code)
}

func TestWorkerDrainsInBackground(t *testing.T) {
	mdPath := createTestStorage(t, 2, 256*1024)
	s := openTestStorage(t, mdPath, 8)
	defer s.Close()

	// Crossing the cache size bound seals a generation and wakes the
	// worker; the synced prefix catches up without an explicit Sync.
	for i := codec.Timestamp(1); i <= 8; i++ {
		writeSample(t, s, 1, i)
	}
	require.Eventually(t, func() bool {
		return s.Stats()[s.ActiveIndex()].SyncIndex == 8
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMetadataErrorsAreFatal(t *testing.T) {
	dir := t.TempDir()
	mdPath := filepath.Join(dir, "bad.ringdb")
	require.NoError(t, os.WriteFile(mdPath, []byte(`{"num_volumes": 0}`), 0o600))

	_, err := Open(Config{MetadataPath: mdPath, MaxCacheSize: 8, Logger: discardLogger()})
	assert.Error(t, err)
}

func TestMissingVolumeIsFatal(t *testing.T) {
	mdPath := createTestStorage(t, 2, 64*1024)
	md, err := LoadMetadata(mdPath)
	require.NoError(t, err)
	require.NoError(t, os.Remove(md.VolumePaths()[1]))

	_, err = Open(Config{MetadataPath: mdPath, MaxCacheSize: 8, Logger: discardLogger()})
	assert.Error(t, err)
}
