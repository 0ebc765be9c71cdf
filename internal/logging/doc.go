// Package logging builds the slog loggers used throughout Newsreel.
//
// Two handler formats are supported: a compact console format for interactive
// use and JSON for file or service consumption. Attr helpers and standardized
// field keys keep run/source/stage identifiers consistent across components,
// and CleanupOldLogs applies the configured retention to the log directory.
package logging
