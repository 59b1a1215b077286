// Package logging builds the slog loggers used across the daemon and CLI.
//
// It centralizes level parsing, console/json handler selection, log file
// mirroring under the configured log directory, and the attribute helpers
// components use for consistent field names.
package logging
