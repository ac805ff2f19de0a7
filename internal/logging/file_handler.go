package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// newJSONHandler writes one JSON object per record with a UTC "ts" field,
// a lowercase level, and file:line sources.
func newJSONHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: jsonAttr,
	})
}

func jsonAttr(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() == slog.KindTime {
			return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339Nano))
		}
		attr.Key = "ts"
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}

// fileMirror sends each record to the terminal handler and a copy to the
// JSON log file.
type fileMirror struct {
	primary slog.Handler
	file    slog.Handler
}

func (m fileMirror) Enabled(ctx context.Context, level slog.Level) bool {
	return m.primary.Enabled(ctx, level) || m.file.Enabled(ctx, level)
}

func (m fileMirror) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	if m.primary.Enabled(ctx, record.Level) {
		errs = append(errs, m.primary.Handle(ctx, record.Clone()))
	}
	if m.file.Enabled(ctx, record.Level) {
		errs = append(errs, m.file.Handle(ctx, record))
	}
	return errors.Join(errs...)
}

func (m fileMirror) WithAttrs(attrs []slog.Attr) slog.Handler {
	return fileMirror{primary: m.primary.WithAttrs(attrs), file: m.file.WithAttrs(attrs)}
}

func (m fileMirror) WithGroup(name string) slog.Handler {
	return fileMirror{primary: m.primary.WithGroup(name), file: m.file.WithGroup(name)}
}
