package pak

import "github.com/ueforge/pak/internal/layout"

// Types re-exported from internal/layout for the public API.
type (
	// Version is the archive format revision ordinal.
	Version = layout.Version

	// Compression identifies how an entry's payload is stored.
	Compression = layout.Compression

	// Entry is one file in the archive index.
	Entry = layout.Entry

	// Block describes one independently inflatable payload chunk.
	Block = layout.Block
)

// Compression constants.
const (
	CompressionNone = layout.CompressionNone
	CompressionZlib = layout.CompressionZlib
)

// Supported revision bounds.
const (
	MinVersion = layout.MinVersion
	MaxVersion = layout.MaxVersion
)

// DefaultBlockSize is the uncompressed compression-block size used by Pack
// when none is configured.
const DefaultBlockSize = 64 << 10
