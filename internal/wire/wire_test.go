package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderScalars(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	w.Uint32(0x5A6F12E1)
	w.Uint64(1<<40 + 7)
	w.Byte(0xAB)
	w.Bytes([]byte{1, 2, 3})
	require.NoError(t, w.Err())
	assert.Equal(t, int64(4+8+1+3), w.Pos())

	r := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))

	u32, err := r.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x5A6F12E1), u32)

	u64, err := r.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40+7), u64)

	b, err := r.Byte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), b)

	rest, err := r.Bytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, rest)
	assert.Equal(t, int64(0), r.Remaining())
}

func TestReaderTruncated(t *testing.T) {
	t.Parallel()

	r := NewReader(bytes.NewReader([]byte{1, 2}), 2)
	_, err := r.Uint32()
	require.ErrorIs(t, err, ErrTruncated)

	require.Error(t, r.Seek(3))
	require.NoError(t, r.Seek(2))
	_, err = r.Byte()
	require.ErrorIs(t, err, ErrTruncated)
}

func TestPathRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	w.Path("Game/Content/map.umap")
	require.NoError(t, w.Err())

	// Length prefix counts the UTF-8 bytes plus the trailing NUL.
	assert.Equal(t, uint32(len("Game/Content/map.umap")+1), binary.LittleEndian.Uint32(buf.Bytes()))

	r := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	got, err := r.Path()
	require.NoError(t, err)
	assert.Equal(t, "Game/Content/map.umap", got)
}

func TestPathUTF16(t *testing.T) {
	t.Parallel()

	// A negative length prefix marks a UTF-16LE payload counted in code
	// units, including the trailing NUL.
	var buf bytes.Buffer
	text := "data/ähren.bin"
	units := []rune(text)
	binary.Write(&buf, binary.LittleEndian, int32(-(len(units) + 1)))
	for _, r := range units {
		binary.Write(&buf, binary.LittleEndian, uint16(r))
	}
	binary.Write(&buf, binary.LittleEndian, uint16(0))

	r := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	got, err := r.Path()
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestPathRejectsHugeLength(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(1<<30))
	r := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	_, err := r.Path()
	require.ErrorIs(t, err, ErrTruncated)
}

func TestWriterLatchesFirstError(t *testing.T) {
	t.Parallel()

	w := NewWriter(failWriter{}, 0)
	w.Uint32(1)
	require.Error(t, w.Err())
	first := w.Err()
	w.Uint64(2)
	assert.Equal(t, first, w.Err())
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}
