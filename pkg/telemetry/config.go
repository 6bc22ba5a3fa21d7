// Package telemetry provides structured logging for the region watcher.
//
// The watcher writes its report to stdout and everything else to stderr, so
// the logger here is stderr-first: progress, retry warnings and state-store
// diagnostics all flow through it. Components receive child loggers tagged
// with a component field, and each invocation is tagged with a run_id.
package telemetry

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error, fatal).
	Level string

	// Format specifies the log format (console, json).
	Format string

	// Output specifies where logs are written (stderr, stdout, file path).
	// Defaults to stderr.
	Output string

	// NoColor disables ANSI colors for console output.
	NoColor bool
}

// DefaultLoggingConfig returns the logging configuration used when no
// overrides are given: human-readable console output on stderr at info level.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "console",
		Output: "stderr",
	}
}
