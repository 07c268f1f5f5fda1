package log

import (
	"fmt"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	logger     *stdlog.Logger
	loggerOnce sync.Once
	mu         sync.Mutex
	minLevel   = LevelInfo
)

// initLogger initializes the global logger to write to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		logger = stdlog.New(os.Stderr, "", 0)
	})
}

// SetLevel sets the minimum level emitted. Unknown values keep the current level.
func SetLevel(l Level) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	switch l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		minLevel = l
	}
}

// ParseLevel maps a config/env string ("debug", "info", ...) to a Level.
// Unrecognized input falls back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(LevelError, msg, extended...)
}

func logWithLevel(level Level, msg string, kv ...any) {
	initLogger()
	if !enabled(level) {
		return
	}

	ts := time.Now().Format(time.RFC3339Nano)

	// Line format:
	// 2025-01-01T00:00:00Z [LEVEL] msg key=value ...
	line := ts + " [" + string(level) + "] " + msg
	if len(kv) > 0 {
		line += formatKVs(kv...)
	}

	logger.Println(line)
}

func enabled(level Level) bool {
	mu.Lock()
	min := minLevel
	mu.Unlock()

	return rank(level) >= rank(min)
}

func rank(l Level) int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

func formatKVs(kv ...any) string {
	var b strings.Builder
	// Expect kv as pairs: key, value, key, value, ...
	// An odd trailing argument is ignored.
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(formatValue(kv[i+1]))
	}
	return b.String()
}

func formatValue(v any) string {
	s := fmt.Sprint(v)
	if strings.ContainsAny(s, " \t\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
