package pak

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ueforge/pak/internal/layout"
	"github.com/ueforge/pak/internal/sha1sum"
	"github.com/ueforge/pak/internal/wire"
	"github.com/ueforge/pak/internal/zlibkit"
)

// Input is one file to be packed into an archive.
type Input struct {
	// Path is the archive-relative destination, forward-slash separated.
	Path string

	// Size is advisory; the packer streams to EOF and trusts what it read.
	Size int64

	// ModTime is stored only by revision 1.
	ModTime time.Time

	// Open returns the content stream. It is called once per build and
	// the stream is read to EOF.
	Open func() (io.ReadCloser, error)
}

// FileInput builds an Input backed by a file on disk.
func FileInput(archivePath, fsPath string) (Input, error) {
	info, err := os.Stat(fsPath)
	if err != nil {
		return Input{}, fmt.Errorf("stat %s: %w", fsPath, err)
	}
	if !info.Mode().IsRegular() {
		return Input{}, fmt.Errorf("not a regular file: %s", fsPath)
	}
	return Input{
		Path:    filepath.ToSlash(archivePath),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(fsPath)
		},
	}, nil
}

// BytesInput builds an Input backed by an in-memory byte slice.
func BytesInput(archivePath string, data []byte) Input {
	return Input{
		Path: archivePath,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Pack builds an archive at outPath from inputs, in the given order.
//
// Entry payloads are streamed into the body first, then the index and
// footer are appended. The whole archive is built into a temporary file
// beside outPath and renamed into place only on full success; any failure
// removes the temporary file so a partial archive never lands at the
// destination. Cancellation is checked between entries.
func Pack(ctx context.Context, outPath string, inputs []Input, opts ...PackOption) error {
	cfg := packConfig{
		version:    DefaultPackVersion,
		blockSize:  DefaultBlockSize,
		mountPoint: DefaultMountPoint,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	lay, err := layout.ForVersion(cfg.version)
	if err != nil {
		return err
	}
	switch cfg.method {
	case CompressionNone:
	case CompressionZlib:
		if !lay.SupportsCompression() {
			return fmt.Errorf("revision %d predates compression: %w", cfg.version, ErrUnsupportedFeature)
		}
	default:
		return fmt.Errorf("compression method %s: %w", cfg.method, ErrUnsupportedFeature)
	}
	if cfg.blockSize == 0 {
		cfg.blockSize = DefaultBlockSize
	}

	seen := make(map[string]bool, len(inputs))
	for i := range inputs {
		p := inputs[i].Path
		if !fs.ValidPath(p) {
			return &fs.PathError{Op: "pack", Path: p, Err: fs.ErrInvalid}
		}
		if seen[p] {
			return fmt.Errorf("duplicate archive path %s: %w", p, fs.ErrExist)
		}
		seen[p] = true
	}

	p := &packer{cfg: cfg, lay: lay, deflaters: zlibkit.NewDeflatePool()}
	p.log().Info("packing archive",
		"path", outPath,
		"version", uint32(cfg.version),
		"compression", cfg.method.String(),
		"entries", len(inputs))

	if err := p.build(ctx, outPath, inputs); err != nil {
		return err
	}
	p.log().Info("archive written", "path", outPath, "entries", len(inputs))
	return nil
}

// PackDir builds an archive from every regular file under dir. Paths are
// archive-relative to dir and visited in lexical order, so identical trees
// produce identical archives.
func PackDir(ctx context.Context, outPath, dir string, opts ...PackOption) error {
	var inputs []Input
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		in, err := FileInput(filepath.ToSlash(rel), path)
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir, err)
	}
	return Pack(ctx, outPath, inputs, opts...)
}

// packer holds state for one build pass.
type packer struct {
	cfg       packConfig
	lay       *layout.Layout
	deflaters *zlibkit.DeflatePool
}

// log returns the logger, falling back to a discard logger if nil.
func (p *packer) log() *slog.Logger {
	if p.cfg.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.cfg.logger
}

// build writes the body, index, and footer into a temp file and renames it
// over outPath on success.
func (p *packer) build(ctx context.Context, outPath string, inputs []Input) error {
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".pak-")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	var pre []*packedEntry
	if p.cfg.workers > 1 && p.cfg.method == CompressionZlib && p.lay.SupportsBlockTable() {
		if pre, err = p.precompress(ctx, inputs); err != nil {
			return err
		}
	}

	bw := bufio.NewWriterSize(tmp, 64<<10)
	w := wire.NewWriter(bw, 0)

	entries := make([]layout.Entry, 0, len(inputs))
	for i := range inputs {
		if err := cancelled(ctx); err != nil {
			return err
		}
		var e layout.Entry
		if pre != nil {
			e, err = p.writePrecompressed(w, &inputs[i], pre[i])
			pre[i] = nil
		} else {
			e, err = p.writeEntry(w, &inputs[i])
		}
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}

	footer := layout.Footer{
		IndexOffset: uint64(w.Pos()),
		MethodNames: layout.DefaultMethodNames,
	}
	idx := &layout.Index{MountPoint: p.cfg.mountPoint, Entries: entries}
	indexBytes, err := p.lay.EncodeIndex(idx, &footer)
	if err != nil {
		return err
	}
	footer.IndexSize = uint64(len(indexBytes))

	h := sha1sum.New()
	h.Write(indexBytes)
	footer.IndexDigest = sha1sum.Sum(h)

	w.Bytes(indexBytes)
	if err := p.lay.WriteFooter(w, &footer); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("renaming to destination: %w", err)
	}
	success = true
	return nil
}

// writeEntry streams one input into the body and returns its index record.
func (p *packer) writeEntry(w *wire.Writer, in *Input) (layout.Entry, error) {
	src, err := in.Open()
	if err != nil {
		return layout.Entry{}, fmt.Errorf("open %s: %w", in.Path, err)
	}
	defer src.Close()

	e := p.newEntry(in, uint64(w.Pos()))
	hasher := sha1sum.New()

	if p.cfg.method == CompressionNone {
		n, err := io.Copy(io.MultiWriter(w, hasher), src)
		if err != nil {
			return e, fmt.Errorf("write %s: %w", in.Path, err)
		}
		e.CompressedSize = uint64(n)
		e.UncompressedSize = uint64(n)
		e.Digest = sha1sum.Sum(hasher)
		return e, nil
	}

	if !p.lay.SupportsBlockTable() {
		return p.writeWholeStream(w, in, src, e, hasher)
	}

	e.Method = CompressionZlib
	e.BlockSize = p.cfg.blockSize
	contentHash := p.lay.DigestKind() == layout.DigestContent
	buf := make([]byte, p.cfg.blockSize)
	var comp bytes.Buffer

	for {
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			chunk := buf[:n]
			if contentHash {
				hasher.Write(chunk)
			}
			comp.Reset()
			if _, err := p.deflaters.Deflate(&comp, chunk); err != nil {
				return e, fmt.Errorf("compress %s: %w", in.Path, err)
			}
			if !contentHash {
				hasher.Write(comp.Bytes())
			}
			start := uint64(w.Pos())
			w.Bytes(comp.Bytes())
			if err := w.Err(); err != nil {
				return e, err
			}
			e.Blocks = append(e.Blocks, layout.Block{Start: start, End: uint64(w.Pos())})
			e.CompressedSize += uint64(comp.Len())
			e.UncompressedSize += uint64(n)
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return e, fmt.Errorf("read %s: %w", in.Path, rerr)
		}
	}

	if e.UncompressedSize == 0 {
		// Empty payloads are stored raw; a zero-block compressed entry
		// would be indistinguishable from corruption.
		e.Method = CompressionNone
		e.BlockSize = 0
	}
	e.Digest = sha1sum.Sum(hasher)
	return e, nil
}

// writeWholeStream compresses an entry as a single zlib stream, the shape
// revision 2 stores instead of a block table.
func (p *packer) writeWholeStream(w *wire.Writer, in *Input, src io.Reader, e layout.Entry, hasher hash.Hash) (layout.Entry, error) {
	buf := make([]byte, p.cfg.blockSize)
	n, rerr := io.ReadFull(src, buf)
	if n == 0 {
		if rerr != nil && !errors.Is(rerr, io.EOF) && !errors.Is(rerr, io.ErrUnexpectedEOF) {
			return e, fmt.Errorf("read %s: %w", in.Path, rerr)
		}
		e.Digest = sha1sum.Sum(hasher)
		return e, nil
	}

	e.Method = CompressionZlib
	contentHash := p.lay.DigestKind() == layout.DigestContent
	start := uint64(w.Pos())

	var sink io.Writer = w
	if !contentHash {
		sink = io.MultiWriter(w, hasher)
	}
	zw, release := p.deflaters.Stream(sink)
	defer release()

	for {
		if n > 0 {
			chunk := buf[:n]
			if contentHash {
				hasher.Write(chunk)
			}
			if _, err := zw.Write(chunk); err != nil {
				return e, fmt.Errorf("compress %s: %w", in.Path, err)
			}
			e.UncompressedSize += uint64(n)
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return e, fmt.Errorf("read %s: %w", in.Path, rerr)
		}
		n, rerr = io.ReadFull(src, buf)
	}
	if err := zw.Close(); err != nil {
		return e, fmt.Errorf("compress %s: %w", in.Path, err)
	}
	if err := w.Err(); err != nil {
		return e, err
	}

	e.CompressedSize = uint64(w.Pos()) - start
	e.Blocks = []layout.Block{{Start: start, End: start + e.CompressedSize}}
	e.Digest = sha1sum.Sum(hasher)
	return e, nil
}

// newEntry seeds the fields every record shares.
func (p *packer) newEntry(in *Input, offset uint64) layout.Entry {
	e := layout.Entry{Path: in.Path, Offset: offset}
	if p.lay.HasTimestamp() && !in.ModTime.IsZero() {
		e.Timestamp = uint64(in.ModTime.Unix())
	}
	return e
}

// packedEntry is the output of one parallel compression task.
type packedEntry struct {
	data      []byte
	blockLens []int
	usize     uint64
	digest    sha1sum.Digest
}

// precompress deflates every input concurrently, preserving input order in
// the result slice. Body writes still happen sequentially afterwards, so
// the archive is byte-identical to a serial build.
func (p *packer) precompress(ctx context.Context, inputs []Input) ([]*packedEntry, error) {
	results := make([]*packedEntry, len(inputs))
	contentHash := p.lay.DigestKind() == layout.DigestContent

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.workers)
	for i := range inputs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			in := &inputs[i]
			src, err := in.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", in.Path, err)
			}
			defer src.Close()

			pe := &packedEntry{}
			hasher := sha1sum.New()
			buf := make([]byte, p.cfg.blockSize)
			var data bytes.Buffer
			for {
				n, rerr := io.ReadFull(src, buf)
				if n > 0 {
					chunk := buf[:n]
					if contentHash {
						hasher.Write(chunk)
					}
					before := data.Len()
					if _, err := p.deflaters.Deflate(&data, chunk); err != nil {
						return fmt.Errorf("compress %s: %w", in.Path, err)
					}
					if !contentHash {
						hasher.Write(data.Bytes()[before:])
					}
					pe.blockLens = append(pe.blockLens, data.Len()-before)
					pe.usize += uint64(n)
				}
				if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
					break
				}
				if rerr != nil {
					return fmt.Errorf("read %s: %w", in.Path, rerr)
				}
			}
			pe.data = data.Bytes()
			pe.digest = sha1sum.Sum(hasher)
			results[i] = pe
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		return nil, err
	}
	return results, nil
}

// writePrecompressed appends one precompressed entry to the body.
func (p *packer) writePrecompressed(w *wire.Writer, in *Input, pe *packedEntry) (layout.Entry, error) {
	e := p.newEntry(in, uint64(w.Pos()))
	e.Digest = pe.digest

	if pe.usize == 0 {
		return e, nil
	}

	e.Method = CompressionZlib
	e.BlockSize = p.cfg.blockSize
	e.UncompressedSize = pe.usize
	e.CompressedSize = uint64(len(pe.data))

	off := 0
	for _, blen := range pe.blockLens {
		start := uint64(w.Pos())
		w.Bytes(pe.data[off : off+blen])
		if err := w.Err(); err != nil {
			return e, err
		}
		e.Blocks = append(e.Blocks, layout.Block{Start: start, End: uint64(w.Pos())})
		off += blen
	}
	return e, nil
}
