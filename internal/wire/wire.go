// Package wire implements the little-endian cursor used to parse and emit
// archive structures. All multi-byte values are little-endian.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"
)

// ErrTruncated is returned when a read runs past the end of the input.
var ErrTruncated = errors.New("pak: truncated input")

// maxPathBytes bounds a single serialized path. Anything larger is treated
// as a corrupt length prefix rather than an allocation request.
const maxPathBytes = 64 << 10

// Reader is a bounded random-access cursor over an io.ReaderAt.
type Reader struct {
	src  io.ReaderAt
	size int64
	pos  int64
}

// NewReader creates a cursor over src covering [0, size).
func NewReader(src io.ReaderAt, size int64) *Reader {
	return &Reader{src: src, size: size}
}

// Seek positions the cursor at an absolute offset.
func (r *Reader) Seek(off int64) error {
	if off < 0 || off > r.size {
		return fmt.Errorf("seek to %d outside [0, %d]: %w", off, r.size, ErrTruncated)
	}
	r.pos = off
	return nil
}

// Pos returns the current cursor position.
func (r *Reader) Pos() int64 { return r.pos }

// Size returns the total input length.
func (r *Reader) Size() int64 { return r.size }

// Remaining returns the number of bytes left before end of input.
func (r *Reader) Remaining() int64 { return r.size - r.pos }

// Bytes reads exactly n bytes at the cursor and advances it.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || int64(n) > r.Remaining() {
		return nil, fmt.Errorf("need %d bytes at offset %d, have %d: %w", n, r.pos, r.Remaining(), ErrTruncated)
	}
	buf := make([]byte, n)
	if _, err := r.src.ReadAt(buf, r.pos); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %d bytes at offset %d: %w", n, r.pos, err)
	}
	r.pos += int64(n)
	return buf, nil
}

// Fill reads len(buf) bytes at the cursor into buf and advances it.
func (r *Reader) Fill(buf []byte) error {
	if int64(len(buf)) > r.Remaining() {
		return fmt.Errorf("need %d bytes at offset %d, have %d: %w", len(buf), r.pos, r.Remaining(), ErrTruncated)
	}
	if _, err := r.src.ReadAt(buf, r.pos); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read %d bytes at offset %d: %w", len(buf), r.pos, err)
	}
	r.pos += int64(len(buf))
	return nil
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Path reads a length-prefixed path string.
//
// A non-negative prefix counts UTF-8 bytes including a trailing NUL. A
// negative prefix counts UTF-16 code units; the payload is UTF-16LE. Both
// forms appear in the wild; writes always use UTF-8.
func (r *Reader) Path() (string, error) {
	n, err := r.Uint32()
	if err != nil {
		return "", err
	}
	length := int32(n)
	if length >= 0 {
		if length > maxPathBytes {
			return "", fmt.Errorf("path length %d exceeds limit: %w", length, ErrTruncated)
		}
		raw, err := r.Bytes(int(length))
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(raw), "\x00"), nil
	}

	units := int(-length)
	if units*2 > maxPathBytes {
		return "", fmt.Errorf("path length %d exceeds limit: %w", units, ErrTruncated)
	}
	raw, err := r.Bytes(units * 2)
	if err != nil {
		return "", err
	}
	u16 := make([]uint16, units)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return strings.TrimRight(string(utf16.Decode(u16)), "\x00"), nil
}

// Writer is a position-tracking little-endian writer.
//
// The first error latches: later calls become no-ops and Err reports it.
type Writer struct {
	dst io.Writer
	pos int64
	err error
}

// NewWriter creates a Writer emitting to dst, with position starting at base.
func NewWriter(dst io.Writer, base int64) *Writer {
	return &Writer{dst: dst, pos: base}
}

// Pos returns the number of bytes written plus the starting base.
func (w *Writer) Pos() int64 { return w.pos }

// Err returns the first write error, if any.
func (w *Writer) Err() error { return w.err }

// Write implements io.Writer with position tracking.
func (w *Writer) Write(b []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.dst.Write(b)
	w.pos += int64(n)
	if err != nil {
		w.err = fmt.Errorf("write at offset %d: %w", w.pos, err)
	}
	return n, w.err
}

// Bytes writes raw bytes.
func (w *Writer) Bytes(b []byte) {
	if w.err != nil {
		return
	}
	n, err := w.dst.Write(b)
	w.pos += int64(n)
	if err != nil {
		w.err = fmt.Errorf("write at offset %d: %w", w.pos, err)
	}
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.Bytes([]byte{b})
}

// Uint32 writes a little-endian uint32.
func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Bytes(b[:])
}

// Uint64 writes a little-endian uint64.
func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Bytes(b[:])
}

// Path writes a length-prefixed UTF-8 path with a trailing NUL.
func (w *Writer) Path(p string) {
	encoded := append([]byte(p), 0)
	w.Uint32(uint32(len(encoded)))
	w.Bytes(encoded)
}
