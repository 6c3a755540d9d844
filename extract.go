package pak

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ueforge/pak/internal/layout"
	"github.com/ueforge/pak/internal/sha1sum"
)

// Outcome reports the result of one entry during a batch operation.
type Outcome struct {
	Path string
	Err  error
}

// OK reports whether the entry succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// ExtractFile streams one entry's uncompressed content into dst.
//
// The payload is inflated block by block when compressed, the inflated
// length is checked against the index, and the stored digest is recomputed
// over whichever byte range this revision hashes. Failures are reported as
// ErrCorruptData, ErrChecksumMismatch, or ErrUnsupportedFeature.
func (a *Archive) ExtractFile(ctx context.Context, path string, dst io.Writer) error {
	if err := cancelled(ctx); err != nil {
		return err
	}
	i, ok := a.byPath[path]
	if !ok {
		return &fs.PathError{Op: "extract", Path: path, Err: fs.ErrNotExist}
	}
	return a.extractEntry(&a.index.Entries[i], dst)
}

// Extract writes the selected entries under destDir, preserving archive
// paths. An empty selection extracts everything, in index order.
//
// Each file is written to a temporary name and renamed into place once its
// content has been fully produced and verified. Failures are collected
// per entry; the batch continues past corrupt entries. Extract itself only
// returns an error for cancellation, which is checked between entries.
func (a *Archive) Extract(ctx context.Context, destDir string, paths ...string) ([]Outcome, error) {
	var selected []*layout.Entry
	var outcomes []Outcome
	if len(paths) == 0 {
		selected = make([]*layout.Entry, len(a.index.Entries))
		for i := range a.index.Entries {
			selected[i] = &a.index.Entries[i]
		}
	} else {
		for _, p := range paths {
			i, ok := a.byPath[p]
			if !ok {
				outcomes = append(outcomes, Outcome{Path: p, Err: &fs.PathError{Op: "extract", Path: p, Err: fs.ErrNotExist}})
				continue
			}
			selected = append(selected, &a.index.Entries[i])
		}
	}

	for _, e := range selected {
		if err := cancelled(ctx); err != nil {
			return outcomes, err
		}
		err := a.extractToFile(e, destDir)
		if err != nil {
			a.log().Warn("extract failed", "path", e.Path, "error", err)
		}
		outcomes = append(outcomes, Outcome{Path: e.Path, Err: err})
	}
	return outcomes, nil
}

// extractToFile writes one entry below destDir atomically.
func (a *Archive) extractToFile(e *layout.Entry, destDir string) error {
	if !fs.ValidPath(e.Path) {
		return &fs.PathError{Op: "extract", Path: e.Path, Err: fs.ErrInvalid}
	}

	dest := filepath.Join(destDir, filepath.FromSlash(e.Path))
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pak-")
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

	if err := a.extractEntry(e, tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("renaming to destination: %w", err)
	}
	success = true
	return nil
}

// extractEntry produces an entry's uncompressed content into dst and
// verifies it. It never consults the context; cancellation is honored only
// between entries.
func (a *Archive) extractEntry(e *layout.Entry, dst io.Writer) error {
	if e.Encrypted {
		return fmt.Errorf("%s: encrypted entry: %w", e.Path, ErrUnsupportedFeature)
	}

	hasher := sha1sum.New()
	var produced uint64

	switch e.Method {
	case CompressionNone:
		if e.CompressedSize != e.UncompressedSize {
			return fmt.Errorf("%s: stored size %d != uncompressed size %d: %w",
				e.Path, e.CompressedSize, e.UncompressedSize, ErrCorruptData)
		}
		if err := a.checkPayloadRange(e.Offset, e.CompressedSize); err != nil {
			return fmt.Errorf("%s: %v: %w", e.Path, err, ErrCorruptData)
		}
		src := io.NewSectionReader(a.f, int64(e.Offset), int64(e.CompressedSize))
		n, err := io.Copy(io.MultiWriter(dst, hasher), src)
		if err != nil {
			return fmt.Errorf("%s: read payload: %w", e.Path, err)
		}
		produced = uint64(n)

	case CompressionZlib:
		contentHash := a.layout.DigestKind() == layout.DigestContent
		for _, blk := range e.Blocks {
			if err := a.checkPayloadRange(blk.Start, blk.Size()); err != nil {
				return fmt.Errorf("%s: %v: %w", e.Path, err, ErrCorruptData)
			}
			var src io.Reader = io.NewSectionReader(a.f, int64(blk.Start), int64(blk.Size()))
			out := dst
			if contentHash {
				out = io.MultiWriter(dst, hasher)
			} else {
				src = io.TeeReader(src, hasher)
			}
			n, err := a.inflaters.Inflate(out, src, int64(e.UncompressedSize-produced))
			produced += uint64(n)
			if err != nil {
				return fmt.Errorf("%s: %v: %w", e.Path, err, ErrCorruptData)
			}
		}

	default:
		return fmt.Errorf("%s: compression method %s: %w", e.Path, e.Method, ErrUnsupportedFeature)
	}

	if produced != e.UncompressedSize {
		return fmt.Errorf("%s: inflated %d bytes, index declares %d: %w",
			e.Path, produced, e.UncompressedSize, ErrCorruptData)
	}

	if a.ignoreNullDigests && e.Digest.IsNull() {
		return nil
	}
	if got := sha1sum.Sum(hasher); !got.Equal(e.Digest) {
		return fmt.Errorf("%s: got %s, want %s: %w", e.Path, got, e.Digest, ErrChecksumMismatch)
	}
	return nil
}

// checkPayloadRange rejects payload ranges that overflow or reach past the
// start of the index.
func (a *Archive) checkPayloadRange(start, size uint64) error {
	end := start + size
	if end < start || end > a.footer.IndexOffset {
		return fmt.Errorf("payload range [%d, %d) outside body [0, %d)", start, end, a.footer.IndexOffset)
	}
	return nil
}

// cancelled maps a done context to ErrCancelled, keeping the context error
// matchable through errors.Is.
func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}
