// Package logger is a small structured JSON logger with levels and
// pre-bound fields. Standard library only.
package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int8

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// String returns the level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", l)
}

// ParseLevel maps a config string to a Level. Unknown values fall back
// to info so a typo in LOG_LEVEL never silences the service.
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

// Field is a single key-value attribute attached to a log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field      { return Field{key, value} }
func Int(key string, value int) Field     { return Field{key, value} }
func Int64(key string, value int64) Field { return Field{key, value} }
func Bool(key string, value bool) Field   { return Field{key, value} }
func Any(key string, value any) Field     { return Field{key, value} }

// Duration renders the value in its human form ("1.5s"), not nanoseconds.
func Duration(key string, value time.Duration) Field {
	return Field{key, value.String()}
}

// Err is the conventional error attribute. A nil error logs as null.
func Err(err error) Field {
	if err == nil {
		return Field{"error", nil}
	}
	return Field{"error", err.Error()}
}

// Options configures a Logger. The zero value logs info and above to stdout.
type Options struct {
	Output     io.Writer
	Level      Level
	AddCaller  bool
	CallerSkip int
}

// Logger writes one JSON object per line. Safe for concurrent use.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	min    Level
	bound  []Field
	caller bool
	skip   int
}

// New creates a Logger from Options.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		out:    out,
		min:    opts.Level,
		caller: opts.AddCaller,
		skip:   opts.CallerSkip,
	}
}

// Default returns an info-level stdout logger with caller annotation.
func Default() *Logger {
	return New(Options{AddCaller: true})
}

// With returns a child logger that attaches the given fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	child := &Logger{
		out:    l.out,
		min:    l.min,
		caller: l.caller,
		skip:   l.skip,
	}
	child.bound = append(append(child.bound, l.bound...), fields...)
	return child
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

func (l *Logger) write(level Level, msg string, fields []Field) {
	if level < l.min {
		return
	}

	attrs := make(map[string]any, len(l.bound)+len(fields))
	for _, f := range l.bound {
		attrs[f.Key] = f.Value
	}
	for _, f := range fields {
		attrs[f.Key] = f.Value
	}

	line := struct {
		TS     string         `json:"ts"`
		Level  string         `json:"level"`
		Msg    string         `json:"msg"`
		Caller string         `json:"caller,omitempty"`
		Attrs  map[string]any `json:"attrs,omitempty"`
	}{
		TS:    time.Now().UTC().Format(time.RFC3339Nano),
		Level: level.String(),
		Msg:   msg,
	}
	if len(attrs) > 0 {
		line.Attrs = attrs
	}
	if l.caller {
		if _, file, n, ok := runtime.Caller(2 + l.skip); ok {
			if i := strings.LastIndexByte(file, '/'); i >= 0 {
				file = file[i+1:]
			}
			line.Caller = fmt.Sprintf("%s:%d", file, n)
		}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(line); err != nil {
		// An unencodable attribute value must not lose the entry itself.
		fmt.Fprintf(&buf, "{\"ts\":%q,\"level\":%q,\"msg\":%q}\n", line.TS, line.Level, msg)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(buf.Bytes())
}
