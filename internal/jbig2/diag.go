package jbig2

import (
	"context"
	"fmt"
	"log/slog"
)

// Severity classifies a diagnostic. Only SeverityFatal changes control flow.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

func (s Severity) level() slog.Level {
	switch s {
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Reporter is the diagnostic sink shared by the decoders of one document.
type Reporter struct {
	logger *slog.Logger
}

// NewReporter wraps logger. A nil logger discards everything.
func NewReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reporter{logger: logger}
}

// Logger returns the underlying structured logger.
func (r *Reporter) Logger() *slog.Logger {
	if r == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Report emits msg at the given severity for segment.
func (r *Reporter) Report(sev Severity, segment uint32, msg string, args ...any) {
	if r == nil {
		return
	}
	r.logger.Log(context.Background(), sev.level(), fmt.Sprintf(msg, args...), slog.Uint64("segment", uint64(segment)))
}

func (r *Reporter) Debugf(segment uint32, msg string, args ...any) {
	r.Report(SeverityDebug, segment, msg, args...)
}

func (r *Reporter) Infof(segment uint32, msg string, args ...any) {
	r.Report(SeverityInfo, segment, msg, args...)
}

func (r *Reporter) Warnf(segment uint32, msg string, args ...any) {
	r.Report(SeverityWarning, segment, msg, args...)
}

// Fatal logs msg and returns a *RegionError wrapping cause. The caller must
// abort the current decode with the returned error.
func (r *Reporter) Fatal(segment uint32, cause error, msg string, args ...any) error {
	text := fmt.Sprintf(msg, args...)
	r.Report(SeverityFatal, segment, "%s", text)
	return &RegionError{Op: text, Segment: segment, Err: cause}
}
