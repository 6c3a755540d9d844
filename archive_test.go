package pak

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSelectsRevision(t *testing.T) {
	t.Parallel()

	for v := MinVersion; v <= MaxVersion; v++ {
		v := v
		t.Run(fmt.Sprintf("v%d", v), func(t *testing.T) {
			t.Parallel()

			path := packArchive(t, testFiles(), PackWithVersion(v))
			a := openArchive(t, path)
			assert.Equal(t, v, a.Version())
			assert.Empty(t, a.Warnings())
		})
	}
}

func TestOpenNotAnArchive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "noise.bin")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x33}, 4096), 0o644))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestOpenEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.pak")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "nope.pak"))
	require.Error(t, err)
}

func TestOpenCorruptMagic(t *testing.T) {
	t.Parallel()

	path := packArchive(t, testFiles(), PackWithVersion(3))
	info, err := os.Stat(path)
	require.NoError(t, err)

	// The revision 3 footer is the last 44 bytes; magic leads it.
	flipByte(t, path, info.Size()-44)

	_, err = Open(path)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestOpenCorruptFooterBounds(t *testing.T) {
	t.Parallel()

	path := packArchive(t, testFiles(), PackWithVersion(3))
	info, err := os.Stat(path)
	require.NoError(t, err)

	// Index offset sits 8 bytes into the revision 3 footer.
	flipByte(t, path, info.Size()-44+8)

	_, err = Open(path)
	require.ErrorIs(t, err, ErrCorruptFooter)
}

func TestOpenWarnsOnIndexDigestMismatch(t *testing.T) {
	t.Parallel()

	marker := "zz-unique-name.dat"
	path := packArchive(t, []testFile{
		{path: "first.bin", data: []byte("payload one")},
		{path: marker, data: []byte("payload two")},
	}, PackWithVersion(3))

	// Flip a path character inside the index; the table still parses but
	// no longer matches the footer digest.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	off := bytes.LastIndex(raw, []byte(marker))
	require.Greater(t, off, 0)
	flipByte(t, path, int64(off))

	a := openArchive(t, path)
	assert.NotEmpty(t, a.Warnings())
	assert.Equal(t, 2, a.Len())

	rep, err := a.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.IndexOK)
	assert.False(t, rep.OK)
	for _, res := range rep.Results {
		assert.True(t, res.OK(), res.Path)
	}
}

func TestNullEntryDigest(t *testing.T) {
	t.Parallel()

	build := func(t *testing.T) string {
		path := packArchive(t, []testFile{
			{path: "solo.bin", data: []byte("0123456789abcdef")},
		}, PackWithVersion(3))

		// Zero the record's 20 digest bytes. The revision 3 record ends
		// with digest then block size, and the index ends 44 bytes
		// before EOF.
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		end := len(raw) - 44 - 4
		for i := end - 20; i < end; i++ {
			raw[i] = 0
		}
		require.NoError(t, os.WriteFile(path, raw, 0o644))
		return path
	}

	t.Run("rejected by default", func(t *testing.T) {
		t.Parallel()
		a := openArchive(t, build(t))
		err := a.ExtractFile(context.Background(), "solo.bin", &bytes.Buffer{})
		require.ErrorIs(t, err, ErrChecksumMismatch)
	})

	t.Run("skipped when ignored", func(t *testing.T) {
		t.Parallel()
		a := openArchive(t, build(t), OpenWithIgnoreNullDigests())
		var out bytes.Buffer
		require.NoError(t, a.ExtractFile(context.Background(), "solo.bin", &out))
		assert.Equal(t, "0123456789abcdef", out.String())
	})
}

func TestEntryLookup(t *testing.T) {
	t.Parallel()

	path := packArchive(t, testFiles())
	a := openArchive(t, path)

	e, ok := a.Entry("config/engine.ini")
	require.True(t, ok)
	assert.Equal(t, "config/engine.ini", e.Path)
	assert.Equal(t, CompressionNone, e.Method)

	_, ok = a.Entry("missing.bin")
	assert.False(t, ok)
}

func TestEntriesReturnsCopy(t *testing.T) {
	t.Parallel()

	path := packArchive(t, testFiles())
	a := openArchive(t, path)

	entries := a.Entries()
	require.NotEmpty(t, entries)
	entries[0].Path = "mutated"

	again := a.Entries()
	assert.NotEqual(t, "mutated", again[0].Path)
}

func TestOpenWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	path := packArchive(t, testFiles())
	a := openArchive(t, path, OpenWithLogger(logger))
	assert.Equal(t, len(testFiles()), a.Len())
	assert.NotEmpty(t, buf.String())
}
