package pak

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSelection(t *testing.T) {
	t.Parallel()

	path := packArchive(t, testFiles())
	a := openArchive(t, path)

	dest := t.TempDir()
	outcomes, err := a.Extract(context.Background(), dest, "config/engine.ini", "missing.bin")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	byPath := map[string]Outcome{}
	for _, o := range outcomes {
		byPath[o.Path] = o
	}
	assert.True(t, byPath["config/engine.ini"].OK())
	require.ErrorIs(t, byPath["missing.bin"].Err, fs.ErrNotExist)

	assert.FileExists(t, filepath.Join(dest, "config", "engine.ini"))
	assert.NoFileExists(t, filepath.Join(dest, "maps", "arena.umap"))
}

func TestExtractFileMissing(t *testing.T) {
	t.Parallel()

	path := packArchive(t, testFiles())
	a := openArchive(t, path)

	err := a.ExtractFile(context.Background(), "missing.bin", io.Discard)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestExtractCancelled(t *testing.T) {
	t.Parallel()

	path := packArchive(t, testFiles())
	a := openArchive(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := t.TempDir()
	outcomes, err := a.Extract(ctx, dest)
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, outcomes)

	left, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestExtractCorruptPayload(t *testing.T) {
	t.Parallel()

	path := packArchive(t, []testFile{
		{path: "good.bin", data: []byte("intact payload bytes")},
		{path: "bad.bin", data: []byte("soon to be damaged..")},
	})
	a := openArchive(t, path)
	bad, ok := a.Entry("bad.bin")
	require.True(t, ok)
	a.Close()

	flipByte(t, path, int64(bad.Offset)+2)

	a = openArchive(t, path)
	assert.Empty(t, a.Warnings())

	dest := t.TempDir()
	outcomes, err := a.Extract(context.Background(), dest)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		if o.Path == "bad.bin" {
			require.ErrorIs(t, o.Err, ErrChecksumMismatch)
		} else {
			assert.True(t, o.OK(), o.Path)
		}
	}

	// The failed entry must not land at its destination.
	assert.NoFileExists(t, filepath.Join(dest, "bad.bin"))
	assert.FileExists(t, filepath.Join(dest, "good.bin"))

	// And no stray temp files either.
	left, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, left, 1)
}

func TestExtractCorruptCompressedBlock(t *testing.T) {
	t.Parallel()

	path := packArchive(t, []testFile{
		{path: "big.bin", data: compressibleData(100000)},
	}, PackWithVersion(4), PackWithCompression(CompressionZlib))
	a := openArchive(t, path)
	e, ok := a.Entry("big.bin")
	require.True(t, ok)
	require.NotEmpty(t, e.Blocks)
	a.Close()

	flipByte(t, path, int64(e.Blocks[0].Start)+2)

	a = openArchive(t, path)
	err := a.ExtractFile(context.Background(), "big.bin", io.Discard)
	require.Error(t, err)
	assert.True(t,
		errors.Is(err, ErrCorruptData) || errors.Is(err, ErrChecksumMismatch),
		"unexpected error: %v", err)
}

func TestExtractEncryptedEntry(t *testing.T) {
	t.Parallel()

	path := packArchive(t, []testFile{
		{path: "locked.bin", data: []byte("ciphertext-to-be")},
	}, PackWithVersion(7))

	// Set the record's encrypted flag, which sits just before the block
	// size field at the end of the index. The index precedes the 61 byte
	// revision 7 footer.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-61-5] = 1
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	a := openArchive(t, path)
	assert.NotEmpty(t, a.Warnings())

	e, ok := a.Entry("locked.bin")
	require.True(t, ok)
	assert.True(t, e.Encrypted)

	err = a.ExtractFile(context.Background(), "locked.bin", io.Discard)
	require.ErrorIs(t, err, ErrUnsupportedFeature)
}

func TestExtractFileToBuffer(t *testing.T) {
	t.Parallel()

	data := compressibleData(70000)
	path := packArchive(t, []testFile{{path: "blob.bin", data: data}},
		PackWithVersion(8), PackWithCompression(CompressionZlib))
	a := openArchive(t, path)

	var out bytes.Buffer
	require.NoError(t, a.ExtractFile(context.Background(), "blob.bin", &out))
	assert.Equal(t, data, out.Bytes())
}
