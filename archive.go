package pak

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ueforge/pak/internal/layout"
	"github.com/ueforge/pak/internal/sha1sum"
	"github.com/ueforge/pak/internal/zlibkit"
)

// Archive is an open, read-only archive handle.
//
// The entry table is built once at open time and is immutable afterwards.
// A handle is safe for concurrent reads of distinct entries only if the
// underlying file supports it; it must never be shared with a writer.
type Archive struct {
	f      *os.File
	path   string
	size   int64
	layout *layout.Layout
	footer layout.Footer
	index  *layout.Index
	byPath map[string]int

	warnings          []error
	indexDigestOK     bool
	ignoreNullDigests bool
	logger            *slog.Logger

	inflaters *zlibkit.InflatePool
}

// Summary describes an archive without exposing its entry table.
type Summary struct {
	Version               Version
	MountPoint            string
	EntryCount            int
	TotalUncompressedSize uint64
	TotalCompressedSize   uint64
}

// Open opens the archive at path and parses its footer and index.
//
// The revision is discovered by the footer bootstrap: candidate footer
// sizes are tried newest to oldest until magic and index bounds agree.
// Open fails with ErrUnsupportedVersion when no candidate matches,
// ErrCorruptFooter when magic is found but the bounds are inconsistent,
// and ErrCorruptIndex when the entry table cannot be parsed. An index
// digest mismatch alone does not fail Open; it is recorded in Warnings
// and listing continues.
func Open(path string, opts ...OpenOption) (*Archive, error) {
	cfg := openConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	a, err := newArchive(f, path, &cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

func newArchive(f *os.File, path string, cfg *openConfig) (*Archive, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	lay, footer, err := layout.Bootstrap(f, info.Size())
	if err != nil {
		return nil, err
	}

	indexBytes := make([]byte, footer.IndexSize)
	if _, err := f.ReadAt(indexBytes, int64(footer.IndexOffset)); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	a := &Archive{
		f:                 f,
		path:              path,
		size:              info.Size(),
		layout:            lay,
		footer:            footer,
		indexDigestOK:     true,
		ignoreNullDigests: cfg.ignoreNullDigests,
		logger:            cfg.logger,
		inflaters:         zlibkit.NewInflatePool(),
	}

	if lay.HasIndexDigest() {
		h := sha1sum.New()
		h.Write(indexBytes)
		if got := sha1sum.Sum(h); !got.Equal(footer.IndexDigest) {
			a.indexDigestOK = false
			a.warnings = append(a.warnings, fmt.Errorf(
				"index digest mismatch: got %s, want %s: %w", got, footer.IndexDigest, ErrCorruptIndex))
		}
	}

	idx, err := lay.DecodeIndex(indexBytes, &footer)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrCorruptIndex)
	}
	a.index = idx

	a.byPath = make(map[string]int, len(idx.Entries))
	for i := range idx.Entries {
		e := &idx.Entries[i]
		a.byPath[e.Path] = i
		if e.Offset+e.CompressedSize > footer.IndexOffset {
			a.warnings = append(a.warnings, fmt.Errorf(
				"entry %s payload bleeds into index: %w", e.Path, ErrCorruptIndex))
		}
	}

	a.log().Debug("archive opened",
		"path", path,
		"version", uint32(lay.Version()),
		"entries", len(idx.Entries),
		"mount_point", idx.MountPoint)
	return a, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.logger
}

// Close releases the underlying file.
func (a *Archive) Close() error {
	return a.f.Close()
}

// Version returns the archive's format revision.
func (a *Archive) Version() Version {
	return a.layout.Version()
}

// MountPoint returns the archive's mount point prefix. It is metadata
// carried in the index and is never resolved against the filesystem.
func (a *Archive) MountPoint() string {
	return a.index.MountPoint
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	return len(a.index.Entries)
}

// Entries returns the entry table in index order, which is also the order
// payloads were written into the body.
func (a *Archive) Entries() []Entry {
	out := make([]Entry, len(a.index.Entries))
	copy(out, a.index.Entries)
	return out
}

// Entry returns the entry for an archive-relative path.
func (a *Archive) Entry(path string) (Entry, bool) {
	i, ok := a.byPath[path]
	if !ok {
		return Entry{}, false
	}
	return a.index.Entries[i], true
}

// Warnings returns non-fatal problems found at open time, such as an index
// digest mismatch or payloads that bleed into the index region.
func (a *Archive) Warnings() []error {
	return a.warnings
}

// Summary returns aggregate information about the archive.
func (a *Archive) Summary() Summary {
	s := Summary{
		Version:    a.layout.Version(),
		MountPoint: a.index.MountPoint,
		EntryCount: len(a.index.Entries),
	}
	for i := range a.index.Entries {
		s.TotalUncompressedSize += a.index.Entries[i].UncompressedSize
		s.TotalCompressedSize += a.index.Entries[i].CompressedSize
	}
	return s
}
