package logger

import (
	"sync"
)

// TestLogger captures log entries in memory for assertions in tests.
type TestLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

// Named implements Logger.
func (l *TestLogger) Named(name string) Logger {
	return l
}

// Sync implements Logger.
func (l *TestLogger) Sync() error {
	return nil
}

type LogEntry struct {
	Level   string
	Message string
	Fields  []Field
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	return &TestLogger{
		entries: make([]LogEntry, 0),
	}
}

func (l *TestLogger) Debug(msg string, fields ...Field) {
	l.log("DEBUG", msg, fields...)
}

func (l *TestLogger) Info(msg string, fields ...Field) {
	l.log("INFO", msg, fields...)
}

func (l *TestLogger) Warn(msg string, fields ...Field) {
	l.log("WARN", msg, fields...)
}

func (l *TestLogger) Error(msg string, fields ...Field) {
	l.log("ERROR", msg, fields...)
}

func (l *TestLogger) Fatal(msg string, fields ...Field) {
	l.log("FATAL", msg, fields...)
}

// With returns a child that records into the same entry list with the
// bound fields prepended.
func (l *TestLogger) With(fields ...Field) Logger {
	return &boundTestLogger{base: l, fields: fields}
}

type boundTestLogger struct {
	base   *TestLogger
	fields []Field
}

func (b *boundTestLogger) log(level, msg string, fields ...Field) {
	b.base.log(level, msg, append(append([]Field{}, b.fields...), fields...)...)
}

func (b *boundTestLogger) Debug(msg string, fields ...Field) { b.log("DEBUG", msg, fields...) }
func (b *boundTestLogger) Info(msg string, fields ...Field)  { b.log("INFO", msg, fields...) }
func (b *boundTestLogger) Warn(msg string, fields ...Field)  { b.log("WARN", msg, fields...) }
func (b *boundTestLogger) Error(msg string, fields ...Field) { b.log("ERROR", msg, fields...) }
func (b *boundTestLogger) Fatal(msg string, fields ...Field) { b.log("FATAL", msg, fields...) }

func (b *boundTestLogger) With(fields ...Field) Logger {
	return &boundTestLogger{base: b.base, fields: append(append([]Field{}, b.fields...), fields...)}
}

func (b *boundTestLogger) Named(name string) Logger { return b }
func (b *boundTestLogger) Sync() error              { return nil }

func (l *TestLogger) log(level, msg string, fields ...Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  fields,
	})
}

// GetEntries returns a copy of all captured entries
func (l *TestLogger) GetEntries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]LogEntry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// Clear drops all captured entries
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}
