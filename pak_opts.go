package pak

import "log/slog"

// DefaultPackVersion is the revision Pack targets when none is configured.
const DefaultPackVersion Version = 3

// DefaultMountPoint is written when no mount point is configured.
const DefaultMountPoint = "/"

// packConfig holds configuration for Pack and PackDir.
type packConfig struct {
	version    Version
	method     Compression
	blockSize  uint32
	mountPoint string
	workers    int
	logger     *slog.Logger
}

// PackOption configures archive creation.
type PackOption func(*packConfig)

// PackWithVersion targets a specific format revision (1 through 8).
func PackWithVersion(v Version) PackOption {
	return func(cfg *packConfig) {
		cfg.version = v
	}
}

// PackWithCompression sets how entry payloads are stored. Use
// CompressionNone for verbatim copies, CompressionZlib for deflated
// blocks. Revision 1 cannot store compressed entries.
func PackWithCompression(c Compression) PackOption {
	return func(cfg *packConfig) {
		cfg.method = c
	}
}

// PackWithBlockSize sets the uncompressed compression-block size.
// Zero uses DefaultBlockSize.
func PackWithBlockSize(n uint32) PackOption {
	return func(cfg *packConfig) {
		cfg.blockSize = n
	}
}

// PackWithMountPoint sets the mount point string stored in the index.
// It is metadata only and is never resolved against the filesystem.
func PackWithMountPoint(mount string) PackOption {
	return func(cfg *packConfig) {
		cfg.mountPoint = mount
	}
}

// PackWithWorkers enables parallel entry compression with up to n
// concurrent tasks. Payloads are still written in input order and the
// resulting archive is byte-identical to a serial build. Values below 2
// keep the serial path.
func PackWithWorkers(n int) PackOption {
	return func(cfg *packConfig) {
		cfg.workers = n
	}
}

// PackWithLogger sets the logger for build operations.
// If not set, logging is disabled.
func PackWithLogger(logger *slog.Logger) PackOption {
	return func(cfg *packConfig) {
		cfg.logger = logger
	}
}
