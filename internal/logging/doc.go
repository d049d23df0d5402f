// Package logging assembles structured slog loggers and formatting helpers used
// across routekeeper.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes helpers so components tag log lines with a component
// name, event type, and operator hint. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
