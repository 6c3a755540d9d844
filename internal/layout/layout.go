// Package layout models the version-dependent binary layout of the archive
// footer and file index.
//
// Each supported revision is described by a Layout strategy selected once,
// at open or pack time. The strategy owns everything that shifts between
// revisions: footer size and field order, record shape, digest semantics,
// and the base used by compression-block offsets. Reader and writer share
// the same strategy so the two sides cannot drift apart.
package layout

import (
	"errors"
	"fmt"

	"github.com/ueforge/pak/internal/sha1sum"
)

// Magic marks a valid footer.
const Magic uint32 = 0x5A6F12E1

// Sentinel errors for structural failures.
var (
	// ErrUnsupportedVersion is returned when no known footer matches, or a
	// caller targets a version outside the supported range.
	ErrUnsupportedVersion = errors.New("pak: unsupported version")

	// ErrCorruptFooter is returned when a footer's magic matches but its
	// index offset and size do not agree with the file length.
	ErrCorruptFooter = errors.New("pak: corrupt footer")

	// ErrCorruptIndex is returned when the index cannot be parsed or its
	// digest does not match the footer.
	ErrCorruptIndex = errors.New("pak: corrupt index")

	// ErrUnsupportedFeature is returned for encrypted archives or entries,
	// unknown compression registry names, and compression at revisions
	// that predate it.
	ErrUnsupportedFeature = errors.New("pak: unsupported feature")
)

// Version is the archive format revision ordinal.
type Version uint32

// Supported revision bounds.
const (
	MinVersion Version = 1
	MaxVersion Version = 8
)

// Supported reports whether v is a known revision.
func (v Version) Supported() bool {
	return v >= MinVersion && v <= MaxVersion
}

// Compression identifies how an entry's payload is stored.
type Compression uint32

const (
	CompressionNone Compression = 0x00
	CompressionZlib Compression = 0x01
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint32(c))
	}
}

// DigestKind selects which bytes an entry digest covers.
//
// Early revisions hashed the payload exactly as stored; later ones hash the
// uncompressed content. The format's history is murky about whether legacy
// digests also covered block-table overhead; this layout keeps block tables
// in the index, never in the payload region, so DigestStored covers the
// concatenated stored blocks and nothing else. A revision that disagrees
// only needs its table row changed.
type DigestKind uint8

const (
	// DigestStored hashes the payload bytes as stored on disk.
	DigestStored DigestKind = iota

	// DigestContent hashes the uncompressed content.
	DigestContent
)

// Block describes one independently inflatable chunk of an entry's payload.
// In memory Start and End are always absolute file offsets; serialization
// converts to the revision's base.
type Block struct {
	Start uint64
	End   uint64
}

// Size returns the stored (compressed) length of the block.
func (b Block) Size() uint64 { return b.End - b.Start }

// Entry is one file in the archive index.
type Entry struct {
	// Path is archive-relative, forward-slash separated, case-sensitive.
	Path string

	// Offset is the absolute byte offset of the payload region.
	Offset uint64

	CompressedSize   uint64
	UncompressedSize uint64
	Method           Compression
	Digest           sha1sum.Digest

	// Timestamp is a unix timestamp; only revision 1 stores it.
	Timestamp uint64

	// Encrypted entries cannot be extracted; the flag exists so listing
	// still works on archives that carry them.
	Encrypted bool

	// BlockSize is the uncompressed chunk size hint stored with the entry.
	BlockSize uint32

	// Blocks is non-empty exactly when Method != CompressionNone.
	Blocks []Block
}

// Index is the parsed entry table.
type Index struct {
	MountPoint string
	Entries    []Entry
}

// Layout is the per-revision serialization strategy.
type Layout struct {
	version        Version
	footerSize     int64
	hasIndexDigest bool
	digestKind     DigestKind
	hasMethod      bool // false only for revision 1
	hasTimestamp   bool // revision 1 only
	hasBlockTable  bool // revisions 3+
	hasEncrypted   bool // per-entry flag, revisions 7+
	hasFooterGUID  bool // key GUID + encrypted-index flag, revisions 7+
	hasRegistry    bool // method name registry in footer, revision 8
	relativeBlocks bool // block offsets relative to the entry payload, 7+
}

var revisions = [...]Layout{
	{version: 1, footerSize: 24, digestKind: DigestStored, hasTimestamp: true},
	{version: 2, footerSize: 44, hasIndexDigest: true, digestKind: DigestStored, hasMethod: true},
	{version: 3, footerSize: 44, hasIndexDigest: true, digestKind: DigestStored, hasMethod: true, hasBlockTable: true},
	{version: 4, footerSize: 44, hasIndexDigest: true, digestKind: DigestStored, hasMethod: true, hasBlockTable: true},
	{version: 5, footerSize: 44, hasIndexDigest: true, digestKind: DigestContent, hasMethod: true, hasBlockTable: true},
	{version: 6, footerSize: 44, hasIndexDigest: true, digestKind: DigestContent, hasMethod: true, hasBlockTable: true},
	{version: 7, footerSize: 61, hasIndexDigest: true, digestKind: DigestContent, hasMethod: true, hasBlockTable: true, hasEncrypted: true, hasFooterGUID: true, relativeBlocks: true},
	{version: 8, footerSize: 189, hasIndexDigest: true, digestKind: DigestContent, hasMethod: true, hasBlockTable: true, hasEncrypted: true, hasFooterGUID: true, hasRegistry: true, relativeBlocks: true},
}

// ForVersion returns the strategy for a revision.
func ForVersion(v Version) (*Layout, error) {
	if !v.Supported() {
		return nil, fmt.Errorf("version %d: %w", v, ErrUnsupportedVersion)
	}
	return &revisions[v-1], nil
}

// Version returns the revision this layout serializes.
func (l *Layout) Version() Version { return l.version }

// FooterSize returns the trailing footer length in bytes.
func (l *Layout) FooterSize() int64 { return l.footerSize }

// HasIndexDigest reports whether the footer stores an index checksum.
func (l *Layout) HasIndexDigest() bool { return l.hasIndexDigest }

// DigestKind returns which bytes entry digests cover at this revision.
func (l *Layout) DigestKind() DigestKind { return l.digestKind }

// SupportsCompression reports whether records can mark compressed payloads.
func (l *Layout) SupportsCompression() bool { return l.hasMethod }

// SupportsBlockTable reports whether records carry explicit block tables.
// Revision 2 compresses an entry as one whole-payload stream instead.
func (l *Layout) SupportsBlockTable() bool { return l.hasBlockTable }

// HasTimestamp reports whether records store a timestamp.
func (l *Layout) HasTimestamp() bool { return l.hasTimestamp }
