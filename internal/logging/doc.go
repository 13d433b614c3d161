// Package logging provides module-scoped structured logging on top of
// log/slog.
//
// Each subsystem obtains its logger with GetLogger("pool"),
// GetLogger("api"), etc. Levels are configured globally and can be
// overridden per module, both in the configuration file and at runtime via
// SetModuleLevel. Records are fanned out to stdout (text or JSON), to the
// systemd journal when one is available, and to an in-memory ring buffer
// that the HTTP API serves for recent-log inspection.
package logging
