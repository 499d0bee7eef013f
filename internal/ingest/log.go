package ingest

import (
	"context"
	"fmt"
	"log/slog"
)

// logTrail collects the log entries returned in a report. When logger is
// set every entry is also written to slog as it is appended.
type logTrail struct {
	entries []LogEntry
	logger  *slog.Logger
}

func (l *logTrail) add(level LogLevel, format string, args ...any) {
	l.append(LogEntry{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *logTrail) infof(format string, args ...any)  { l.add(LevelInfo, format, args...) }
func (l *logTrail) warnf(format string, args ...any)  { l.add(LevelWarn, format, args...) }
func (l *logTrail) errorf(format string, args ...any) { l.add(LevelError, format, args...) }

func (l *logTrail) append(entries ...LogEntry) {
	for _, e := range entries {
		l.entries = append(l.entries, e)
		if l.logger != nil {
			l.logger.Log(context.Background(), e.Level.slogLevel(), e.Message)
		}
	}
}

func (lv LogLevel) slogLevel() slog.Level {
	switch lv {
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
