// SPDX-License-Identifier: MPL-2.0

// Package logging builds the structured loggers used across pkgchan and carries
// them through context.Context.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// FormatText is the human-oriented, optionally colored format.
	FormatText Format = "text"
	// FormatLogfmt emits key=value lines.
	FormatLogfmt Format = "logfmt"
	// FormatJSON emits one JSON object per line.
	FormatJSON Format = "json"
)

// ErrInvalidFormat is returned when a log format name is not recognized.
var ErrInvalidFormat = errors.New("invalid log format")

type (
	// Format selects the log line encoding.
	Format string

	// Options configures New.
	Options struct {
		Level     string
		Format    Format
		Prefix    string
		Timestamp bool
	}

	ctxKey struct{}
)

// IsValid returns whether the Format is one of the defined formats.
// The zero value is accepted and means text.
func (f Format) IsValid() (bool, []error) {
	switch f {
	case "", FormatText, FormatLogfmt, FormatJSON:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w %q (valid: text, logfmt, json)", ErrInvalidFormat, f)}
	}
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if ok, errs := opts.Format.IsValid(); !ok {
		return nil, errs[0]
	}

	formatter := log.TextFormatter
	switch opts.Format {
	case FormatLogfmt:
		formatter = log.LogfmtFormatter
	case FormatJSON:
		formatter = log.JSONFormatter
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          opts.Prefix,
		Formatter:       formatter,
		ReportTimestamp: opts.Timestamp,
		TimeFormat:      time.RFC3339,
	}), nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// OrDiscard returns l, or a discard logger if l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// WithLogger returns a copy of ctx carrying l.
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a discard logger.
func FromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*log.Logger); ok && l != nil {
		return l
	}
	return Discard()
}
