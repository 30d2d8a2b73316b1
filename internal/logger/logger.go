// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the engine's structured logging surface: leveled
// printf-style helpers (Tracef/Debugf/Infof/Warnf/Errorf) writing either
// text or JSON lines, with an optional rotated log file in place of
// stderr.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gcsfuse-ext2/go-ext2fs/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Custom severity levels. TRACE sits below slog's built-in Debug; OFF sits
// above Error so that nothing at all is logged.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

// timeFormat produces a fixed-width 26-character timestamp.
const timeFormat = "2006/01/02 15:04:05.000000"

const asyncLoggerBufferSize = 1000

type loggerFactory struct {
	mu sync.Mutex

	file      *os.File  // non-nil when logging to a rotated file
	sysWriter io.Writer // non-nil when logging to stderr

	asyncWriter *AsyncLogger

	format          string
	level           cfg.LogSeverity
	logRotateConfig cfg.LogRotateLoggingConfig

	programLevel *slog.LevelVar
}

var (
	defaultLoggerFactory = &loggerFactory{
		sysWriter:    os.Stderr,
		format:       "text",
		level:        cfg.InfoLogSeverity,
		programLevel: new(slog.LevelVar),
	}
	defaultLogger *slog.Logger
)

func init() {
	defaultLoggerFactory.rebuildLocked()
}

// rebuildLocked reconstructs defaultLogger from the factory's current
// settings. Callers must hold defaultLoggerFactory.mu, or call it only
// before any concurrent use (as init does).
func (f *loggerFactory) rebuildLocked() {
	setLoggingLevel(string(f.level), f.programLevel)

	var w io.Writer = f.sysWriter
	if f.asyncWriter != nil {
		w = f.asyncWriter
	}
	defaultLogger = slog.New(f.createJsonOrTextHandler(w, f.programLevel, ""))
}

// createJsonOrTextHandler builds a slog.Handler that writes one line per
// record, in text or JSON shape depending on f.format, prefixing every
// message with prefix.
func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	return &lineHandler{
		w:      w,
		level:  level,
		prefix: prefix,
		json:   f.format == "json",
	}
}

// setLoggingLevel maps a cfg.LogSeverity string onto the corresponding
// slog.Level and applies it to programLevel.
func setLoggingLevel(level string, programLevel *slog.LevelVar) {
	switch cfg.LogSeverity(strings.ToUpper(level)) {
	case cfg.TraceLogSeverity:
		programLevel.Set(LevelTrace)
	case cfg.DebugLogSeverity:
		programLevel.Set(LevelDebug)
	case cfg.WarningLogSeverity:
		programLevel.Set(LevelWarn)
	case cfg.ErrorLogSeverity:
		programLevel.Set(LevelError)
	case cfg.OffLogSeverity:
		programLevel.Set(LevelOff)
	default:
		programLevel.Set(LevelInfo)
	}
}

func severityForLevel(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return "TRACE"
	case l < LevelInfo:
		return "DEBUG"
	case l < LevelWarn:
		return "INFO"
	case l < LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// lineHandler is a minimal slog.Handler emitting exactly one line per
// record in one of two fixed shapes (text or JSON), independent of
// whatever attrs a caller might attach — this engine only ever logs plain
// messages.
type lineHandler struct {
	w      io.Writer
	level  *slog.LevelVar
	prefix string
	json   bool
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	msg := h.prefix + r.Message
	sev := severityForLevel(r.Level)

	var line string
	if h.json {
		line = fmt.Sprintf("{\"timestamp\":{\"seconds\":%d,\"nanos\":%d},\"severity\":%q,\"message\":%q}\n",
			r.Time.Unix(), r.Time.Nanosecond(), sev, msg)
	} else {
		line = fmt.Sprintf("time=%q severity=%s message=%q\n", r.Time.Format(timeFormat), sev, msg)
	}
	_, err := io.WriteString(h.w, line)
	return err
}

func (h *lineHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *lineHandler) WithGroup(_ string) slog.Handler       { return h }

func logf(level slog.Level, format string, v ...interface{}) {
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func Tracef(format string, v ...interface{}) { logf(LevelTrace, format, v...) }
func Debugf(format string, v ...interface{}) { logf(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { logf(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { logf(LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { logf(LevelError, format, v...) }

// SetLogFormat switches the default logger between "text" and "json"
// output (empty defaults to "json").
func SetLogFormat(format string) {
	defaultLoggerFactory.mu.Lock()
	defer defaultLoggerFactory.mu.Unlock()

	if format == "" {
		format = "json"
	}
	defaultLoggerFactory.format = format
	defaultLoggerFactory.rebuildLocked()
}

// InitLogFile points the default logger at logConfig's destination: stderr
// when FilePath is empty, or a lumberjack-rotated file otherwise, buffered
// through an AsyncLogger so rotation I/O never blocks a caller holding the
// engine's mutex.
func InitLogFile(logConfig cfg.LoggingConfig) error {
	defaultLoggerFactory.mu.Lock()
	defer defaultLoggerFactory.mu.Unlock()

	defaultLoggerFactory.format = logConfig.Format
	defaultLoggerFactory.level = logConfig.Severity
	defaultLoggerFactory.logRotateConfig = logConfig.LogRotate

	if string(logConfig.FilePath) == "" {
		defaultLoggerFactory.file = nil
		defaultLoggerFactory.sysWriter = os.Stderr
		defaultLoggerFactory.asyncWriter = nil
		defaultLoggerFactory.rebuildLocked()
		return nil
	}

	f, err := os.OpenFile(string(logConfig.FilePath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("logger.InitLogFile: opening %q: %w", logConfig.FilePath, err)
	}

	defaultLoggerFactory.file = f
	defaultLoggerFactory.sysWriter = nil
	defaultLoggerFactory.asyncWriter = NewAsyncLogger(&lumberjack.Logger{
		Filename:   string(logConfig.FilePath),
		MaxSize:    logConfig.LogRotate.MaxFileSizeMb,
		MaxBackups: logConfig.LogRotate.BackupFileCount,
		Compress:   logConfig.LogRotate.Compress,
	}, asyncLoggerBufferSize)
	defaultLoggerFactory.rebuildLocked()
	return nil
}

// Close flushes and closes any open log file, restoring stderr output.
func Close() error {
	defaultLoggerFactory.mu.Lock()
	defer defaultLoggerFactory.mu.Unlock()

	var err error
	if defaultLoggerFactory.asyncWriter != nil {
		err = defaultLoggerFactory.asyncWriter.Close()
		defaultLoggerFactory.asyncWriter = nil
	}
	if defaultLoggerFactory.file != nil {
		if cerr := defaultLoggerFactory.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	defaultLoggerFactory.file = nil
	defaultLoggerFactory.sysWriter = os.Stderr
	defaultLoggerFactory.rebuildLocked()
	return err
}
