package logging

import (
	"context"
	"log/slog"

	context_ "github.com/mkrupp/homecase-auth/internal/infra/context"
)

// RedactedValue replaces the value of redacted attributes.
const RedactedValue = "[REDACTED]"

// ContextHandler wraps another slog.Handler. It adds the trace ID and the
// current user ID from the context to every record and masks attributes whose
// key is in the redaction list, at any group depth.
type ContextHandler struct {
	h      slog.Handler
	redact map[string]struct{}
}

var _ slog.Handler = (*ContextHandler)(nil)

// NewContextHandler creates a new ContextHandler wrapping the given handler.
func NewContextHandler(h slog.Handler, redactKeys ...string) *ContextHandler {
	redact := make(map[string]struct{}, len(redactKeys))
	for _, key := range redactKeys {
		redact[key] = struct{}{}
	}

	return &ContextHandler{h: h, redact: redact}
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))

		return true
	})

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		out.AddAttrs(slog.Group("trace", slog.String("id", traceID)))
	}

	if user, ok := context_.UserFromContext(ctx); ok {
		out.AddAttrs(slog.Group("session", slog.Int64("user_id", user.ID)))
	}

	//nolint:wrapcheck
	return h.h.Handle(ctx, out)
}

func (h *ContextHandler) redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if _, ok := h.redact[a.Key]; ok {
		return slog.String(a.Key, RedactedValue)
	}

	if a.Value.Kind() != slog.KindGroup {
		return a
	}

	group := a.Value.Group()
	attrs := make([]slog.Attr, len(group))

	for i, ga := range group {
		attrs[i] = h.redactAttr(ga)
	}

	return slog.Attr{Key: a.Key, Value: slog.GroupValue(attrs...)}
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}

	return &ContextHandler{h: h.h.WithAttrs(redacted), redact: h.redact}
}

// WithGroup implements slog.Handler.WithGroup.
func (h *ContextHandler) WithGroup(name string) Handler {
	return &ContextHandler{h: h.h.WithGroup(name), redact: h.redact}
}

// Enabled implements slog.Handler.Enabled.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}
