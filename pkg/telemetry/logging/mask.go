package logging

import (
	"context"
	"log/slog"
	"strings"
)

// maskedValue replaces secret attribute values in log output.
const maskedValue = "***"

// secretAttrs are attribute names whose values never reach the log.
// Plaintext override keys in particular must not leak through logging;
// the audit chain records key usage by key ID only.
var secretAttrs = []string{"key", "secret", "plaintext", "token", "password"}

// maskingHandler wraps a slog.Handler and masks secret-bearing attrs.
type maskingHandler struct {
	inner slog.Handler
}

func newMaskingHandler(inner slog.Handler) slog.Handler {
	return &maskingHandler{inner: inner}
}

func (h *maskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *maskingHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(maskAttr(attr))
		return true
	})
	return h.inner.Handle(ctx, masked)
}

func (h *maskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		out[i] = maskAttr(attr)
	}
	return &maskingHandler{inner: h.inner.WithAttrs(out)}
}

func (h *maskingHandler) WithGroup(name string) slog.Handler {
	return &maskingHandler{inner: h.inner.WithGroup(name)}
}

func maskAttr(attr slog.Attr) slog.Attr {
	if isSecretAttr(attr.Key) {
		return slog.String(attr.Key, maskedValue)
	}
	return attr
}

func isSecretAttr(key string) bool {
	lower := strings.ToLower(key)
	for _, name := range secretAttrs {
		if lower == name || strings.HasSuffix(lower, "_"+name) {
			return true
		}
	}
	return false
}
