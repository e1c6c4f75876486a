package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
	LogLevelFatal: 4,
}

// ParseLevel converts a configuration value such as "debug" or "WARN" to a level
func ParseLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToUpper(strings.TrimSpace(s)))
	if level == "WARNING" {
		level = LogLevelWarn
	}
	if _, ok := levelRank[level]; !ok {
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Package defaults applied to loggers created by NewLogger
var (
	defaultsMu    sync.RWMutex
	defaultLevel  = LogLevelInfo
	defaultOutput io.Writer = os.Stdout
)

// SetDefaults changes the level and output for loggers created afterwards
func SetDefaults(level LogLevel, w io.Writer) {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	defaultLevel = level
	if w != nil {
		defaultOutput = w
	}
}

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Component string                 `json:"component"`
	Message   string                 `json:"message"`
	Error     error                  `json:"error,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Logger provides structured logging for one component
type Logger struct {
	component string
	minLevel  LogLevel
	outputs   []io.Writer
	mu        sync.Mutex
	formatter LogFormatter
}

// LogFormatter formats log entries for output
type LogFormatter interface {
	Format(entry *LogEntry) string
}

// TextFormatter formats logs as human-readable text. Context keys are sorted.
type TextFormatter struct{}

func (f *TextFormatter) Format(entry *LogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s [%s] %s",
		entry.Timestamp.Format("2006-01-02 15:04:05.000"), entry.Level, entry.Component, entry.Message)

	if entry.Error != nil {
		fmt.Fprintf(&b, " | error=%v", entry.Error)
	}

	if len(entry.Context) > 0 {
		keys := make([]string, 0, len(entry.Context))
		for k := range entry.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, entry.Context[k])
		}
	}

	b.WriteByte('\n')
	return b.String()
}

// NewLogger creates a logger for a component using the package defaults
func NewLogger(component string) *Logger {
	defaultsMu.RLock()
	defer defaultsMu.RUnlock()

	return &Logger{
		component: component,
		minLevel:  defaultLevel,
		outputs:   []io.Writer{defaultOutput},
		formatter: &TextFormatter{},
	}
}

// Component returns the component name
func (l *Logger) Component() string {
	return l.component
}

// SetMinLevel sets the minimum log level to output
func (l *Logger) SetMinLevel(level LogLevel) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
	return l
}

// SetOutput replaces all outputs with w
func (l *Logger) SetOutput(w io.Writer) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outputs = []io.Writer{w}
	return l
}

// AddOutput adds an output writer for logs
func (l *Logger) AddOutput(w io.Writer) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outputs = append(l.outputs, w)
	return l
}

// SetFormatter sets the log formatter
func (l *Logger) SetFormatter(formatter LogFormatter) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.formatter = formatter
	return l
}

func (l *Logger) log(level LogLevel, message string, err error, context map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if levelRank[level] < levelRank[l.minLevel] {
		return
	}

	formatted := l.formatter.Format(&LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Component: l.component,
		Message:   message,
		Error:     err,
		Context:   context,
	})

	for _, output := range l.outputs {
		io.WriteString(output, formatted)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string) {
	l.log(LogLevelDebug, message, nil, nil)
}

// DebugWithContext logs a debug message with context
func (l *Logger) DebugWithContext(message string, context map[string]interface{}) {
	l.log(LogLevelDebug, message, nil, context)
}

// Info logs an info message
func (l *Logger) Info(message string) {
	l.log(LogLevelInfo, message, nil, nil)
}

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(message string, context map[string]interface{}) {
	l.log(LogLevelInfo, message, nil, context)
}

// Warn logs a warning message
func (l *Logger) Warn(message string) {
	l.log(LogLevelWarn, message, nil, nil)
}

// WarnWithContext logs a warning message with context
func (l *Logger) WarnWithContext(message string, context map[string]interface{}) {
	l.log(LogLevelWarn, message, nil, context)
}

// Error logs an error message
func (l *Logger) Error(message string, err error) {
	l.log(LogLevelError, message, err, nil)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(message string, err error, context map[string]interface{}) {
	l.log(LogLevelError, message, err, context)
}

// Fatal logs a fatal error message. It does not exit.
func (l *Logger) Fatal(message string, err error) {
	l.log(LogLevelFatal, message, err, nil)
}

// WithContext returns a logger that attaches context to every message
func (l *Logger) WithContext(context map[string]interface{}) *ContextLogger {
	return &ContextLogger{
		logger:  l,
		context: context,
	}
}

// ContextLogger is a logger with pre-set context
type ContextLogger struct {
	logger  *Logger
	context map[string]interface{}
}

// Debug logs a debug message with pre-set context
func (cl *ContextLogger) Debug(message string) {
	cl.logger.log(LogLevelDebug, message, nil, cl.context)
}

// Info logs an info message with pre-set context
func (cl *ContextLogger) Info(message string) {
	cl.logger.log(LogLevelInfo, message, nil, cl.context)
}

// Warn logs a warning message with pre-set context
func (cl *ContextLogger) Warn(message string) {
	cl.logger.log(LogLevelWarn, message, nil, cl.context)
}

// Error logs an error message with pre-set context
func (cl *ContextLogger) Error(message string, err error) {
	cl.logger.log(LogLevelError, message, err, cl.context)
}
