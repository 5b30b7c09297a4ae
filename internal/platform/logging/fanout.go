package logging

import (
	"context"
	"errors"
	"log/slog"
)

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, 0, len(f))
	for _, h := range f {
		out = append(out, h.WithAttrs(attrs))
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, 0, len(f))
	for _, h := range f {
		out = append(out, h.WithGroup(name))
	}
	return out
}
