package pak

import "log/slog"

// openConfig holds configuration for Open.
type openConfig struct {
	ignoreNullDigests bool
	logger            *slog.Logger
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

// OpenWithIgnoreNullDigests treats an all-zero stored digest as
// unverifiable rather than as a mismatch. Some archives in the wild were
// written without hashing.
func OpenWithIgnoreNullDigests() OpenOption {
	return func(cfg *openConfig) {
		cfg.ignoreNullDigests = true
	}
}

// OpenWithLogger sets the logger for archive operations.
// If not set, logging is disabled.
func OpenWithLogger(logger *slog.Logger) OpenOption {
	return func(cfg *openConfig) {
		cfg.logger = logger
	}
}
