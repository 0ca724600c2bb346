// Package logging assembles the structured slog loggers used across dubctl.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so submission and stream code can tag
// log lines with the job identifier and the attempt's correlation id. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
//
// CLI logs go to stderr by default so stdout stays free for the live job view.
package logging
