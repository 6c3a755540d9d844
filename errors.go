package pak

import (
	"errors"

	"github.com/ueforge/pak/internal/layout"
	"github.com/ueforge/pak/internal/wire"
)

// Errors re-exported from internal packages.
var (
	// ErrTruncated is returned when a read runs past the end of the input.
	ErrTruncated = wire.ErrTruncated

	// ErrUnsupportedVersion is returned when no known footer layout matches
	// the archive, or a caller targets an unknown revision.
	ErrUnsupportedVersion = layout.ErrUnsupportedVersion

	// ErrCorruptFooter is returned when the footer magic is found but its
	// index offset/size disagree with the file length.
	ErrCorruptFooter = layout.ErrCorruptFooter

	// ErrCorruptIndex is returned when the index cannot be parsed. An index
	// digest mismatch is non-fatal and surfaces through Archive.Warnings.
	ErrCorruptIndex = layout.ErrCorruptIndex

	// ErrUnsupportedFeature is returned for encrypted archives or entries,
	// unknown compression registry names, and compression at revisions
	// that predate it.
	ErrUnsupportedFeature = layout.ErrUnsupportedFeature
)

// Errors specific to extraction and verification.
var (
	// ErrCorruptData is returned when an entry's payload fails to inflate
	// or its inflated length does not match the index.
	ErrCorruptData = errors.New("pak: corrupt data")

	// ErrChecksumMismatch is returned when an entry's recomputed digest
	// differs from the one stored in the index.
	ErrChecksumMismatch = errors.New("pak: checksum mismatch")

	// ErrCancelled is returned when an operation stops at an entry
	// boundary because the context was cancelled. It wraps the context
	// error, so errors.Is also matches context.Canceled.
	ErrCancelled = errors.New("pak: cancelled")
)
