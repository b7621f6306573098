// Package logging configures the process-wide structured logger. All
// components log through log/slog with a "component" attribute; this
// package decides the format, level, and secret masking once at startup.
package logging
