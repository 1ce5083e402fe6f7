// Package log mirrors the teacher's first-party log package: a thin,
// structured logger built on log/slog with go-ethereum-style key/value
// call sites (log.Info("message", "key", value, ...)) and a Crit level
// that terminates the process after logging, matching the API surface
// exercised throughout the teacher repo (e.g. cmd/maliciousvote-submit).
package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level mirrors slog.Level with the extra Trace/Crit rungs go-ethereum adds
// below Debug and above Error.
type Level int

const (
	LevelTrace Level = -8
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
	LevelCrit  Level = 12
)

func (l Level) slog() slog.Level { return slog.Level(l) }

// Logger wraps an *slog.Logger with the Crit level and the free-function
// call sites used everywhere else in this module.
type Logger struct {
	inner *slog.Logger
}

// NewLogger builds a Logger around the given slog.Handler.
func NewLogger(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// NewTerminalHandlerWithLevel builds a handler writing human-readable,
// level-filtered lines to w. When useColor is set and w is backed by a real
// terminal, output is wrapped through go-colorable so ANSI sequences render
// correctly on Windows consoles too, matching the teacher's terminal
// handler setup.
func NewTerminalHandlerWithLevel(w io.Writer, lvl Level, useColor bool) slog.Handler {
	if useColor {
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			w = colorable.NewColorable(f)
		}
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl.slog()})
}

// NewRotatingFileHandler builds a handler that writes JSON-structured log
// lines to a size-rotated file at path, backed by
// gopkg.in/natefinch/lumberjack.v2, for long-running node deployments where
// a terminal handler would grow the log file unbounded.
func NewRotatingFileHandler(path string, lvl Level) slog.Handler {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 10,
		MaxAge:     28, // days
		Compress:   true,
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl.slog()})
}

func (l *Logger) with(lvl slog.Level, msg string, ctx []any) {
	l.inner.Log(context.Background(), lvl, msg, ctx...)
}

func (l *Logger) Trace(msg string, ctx ...any) { l.with(LevelTrace.slog(), msg, ctx) }
func (l *Logger) Debug(msg string, ctx ...any) { l.with(LevelDebug.slog(), msg, ctx) }
func (l *Logger) Info(msg string, ctx ...any)  { l.with(LevelInfo.slog(), msg, ctx) }
func (l *Logger) Warn(msg string, ctx ...any)  { l.with(LevelWarn.slog(), msg, ctx) }
func (l *Logger) Error(msg string, ctx ...any) { l.with(LevelError.slog(), msg, ctx) }

// Crit logs at the critical level and then terminates the process, matching
// the teacher's log.Crit semantics (used for "this can never recover" call
// sites in CLI tools).
func (l *Logger) Crit(msg string, ctx ...any) {
	l.with(LevelCrit.slog(), msg, ctx)
	os.Exit(1)
}

var defaultLogger = NewLogger(NewTerminalHandlerWithLevel(os.Stderr, LevelInfo, false))

// SetDefault installs l as the package-level default logger used by the
// free functions below.
func SetDefault(l *Logger) { defaultLogger = l }

func Trace(msg string, ctx ...any) { defaultLogger.Trace(msg, ctx...) }
func Debug(msg string, ctx ...any) { defaultLogger.Debug(msg, ctx...) }
func Info(msg string, ctx ...any)  { defaultLogger.Info(msg, ctx...) }
func Warn(msg string, ctx ...any)  { defaultLogger.Warn(msg, ctx...) }
func Error(msg string, ctx ...any) { defaultLogger.Error(msg, ctx...) }
func Crit(msg string, ctx ...any)  { defaultLogger.Crit(msg, ctx...) }
