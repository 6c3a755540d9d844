// Package zlibkit wraps zlib compression of fixed-size archive blocks.
//
// Codecs are pooled so that multi-entry extraction and packing do not
// allocate a new compressor or decompressor per block.
package zlibkit

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// DeflatePool manages reusable zlib writers.
type DeflatePool struct {
	pool sync.Pool
}

// NewDeflatePool creates a pool of default-level zlib writers.
func NewDeflatePool() *DeflatePool {
	return &DeflatePool{
		pool: sync.Pool{
			New: func() any {
				return zlib.NewWriter(io.Discard)
			},
		},
	}
}

// Deflate compresses src as one independent zlib stream appended to dst.
// It returns the number of compressed bytes produced.
func (p *DeflatePool) Deflate(dst *bytes.Buffer, src []byte) (int, error) {
	zw, ok := p.pool.Get().(*zlib.Writer)
	if !ok {
		zw = zlib.NewWriter(io.Discard)
	}
	defer p.pool.Put(zw)

	before := dst.Len()
	zw.Reset(dst)
	if _, err := zw.Write(src); err != nil {
		return 0, fmt.Errorf("deflate block: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("deflate block: %w", err)
	}
	return dst.Len() - before, nil
}

// Stream returns a pooled zlib writer emitting one stream to dst. The
// release function must be called after the writer has been closed.
func (p *DeflatePool) Stream(dst io.Writer) (*zlib.Writer, func()) {
	zw, ok := p.pool.Get().(*zlib.Writer)
	if !ok {
		zw = zlib.NewWriter(io.Discard)
	}
	zw.Reset(dst)
	return zw, func() { p.pool.Put(zw) }
}

// InflatePool manages reusable zlib readers.
type InflatePool struct {
	pool sync.Pool
}

// NewInflatePool creates a pool of zlib readers.
func NewInflatePool() *InflatePool {
	return &InflatePool{}
}

// Inflate decompresses one zlib stream from src into dst, refusing to
// produce more than limit bytes. It returns the inflated byte count.
func (p *InflatePool) Inflate(dst io.Writer, src io.Reader, limit int64) (int64, error) {
	var zr io.ReadCloser
	if pooled, ok := p.pool.Get().(io.ReadCloser); ok {
		if err := pooled.(zlib.Resetter).Reset(src, nil); err != nil {
			pooled.Close()
			return 0, fmt.Errorf("inflate block: %w", err)
		}
		zr = pooled
	} else {
		fresh, err := zlib.NewReader(src)
		if err != nil {
			return 0, fmt.Errorf("inflate block: %w", err)
		}
		zr = fresh
	}
	defer p.pool.Put(zr)

	// limit+1 so an oversized stream is detected instead of silently clipped.
	n, err := io.Copy(dst, io.LimitReader(zr, limit+1))
	if err != nil {
		return n, fmt.Errorf("inflate block: %w", err)
	}
	if n > limit {
		return n, fmt.Errorf("inflated block exceeds %d bytes", limit)
	}
	if err := zr.Close(); err != nil {
		return n, fmt.Errorf("inflate block: %w", err)
	}
	return n, nil
}
