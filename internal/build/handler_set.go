// Package build holds logging plumbing shared by the inkwell binaries.
package build

import (
	"context"
	"log/slog"
)

// HandlerSet is an implementation of slog.Handler that fans out log
// records to multiple underlying handlers. This enables dual-stream
// logging where messages go to both the console and a rotating log
// file.
type HandlerSet struct {
	set []slog.Handler
}

// NewHandlerSet constructs a new HandlerSet from the given handlers.
func NewHandlerSet(handlers ...slog.Handler) *HandlerSet {
	return &HandlerSet{set: handlers}
}

// Enabled reports whether any handler handles records at the given
// level.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Enabled(ctx context.Context,
	level slog.Level) bool {

	for _, handler := range h.set {
		if handler.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

// Handle handles the Record by dispatching to all underlying handlers.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Handle(ctx context.Context,
	record slog.Record) error {

	for _, handler := range h.set {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs returns a new Handler whose attributes consist of both the
// receiver's attributes and the arguments.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	newSet := &HandlerSet{set: make([]slog.Handler, len(h.set))}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithAttrs(attrs)
	}

	return newSet
}

// WithGroup returns a new Handler with the given group appended to the
// receiver's existing groups.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithGroup(name string) slog.Handler {
	newSet := &HandlerSet{set: make([]slog.Handler, len(h.set))}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithGroup(name)
	}

	return newSet
}

// Ensure HandlerSet implements slog.Handler at compile time.
var _ slog.Handler = (*HandlerSet)(nil)
