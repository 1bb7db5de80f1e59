// Package logging provides the structured diagnostic channel used by the
// wizard controller and the servers that host it.
package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// Field represents a log field.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Config describes where and how log records are written.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is "text" or "json".
	Format string
	// File, when set, receives logs through a rotating writer instead of stderr.
	File string
	// MaxSizeMB is the rotation threshold for File.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept.
	MaxBackups int
}

// ParseLevel maps a config string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %q", s)
	}
}

// New builds a logger from cfg. The returned closer releases the log file,
// if any.
func New(cfg Config) (*SlogLogger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	opts := []LoggerOption{WithLevel(level)}
	if strings.EqualFold(cfg.Format, "json") {
		opts = append(opts, WithJSON())
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
		}
		opts = append(opts, WithOutput(rotating))
		closer = rotating
	}

	return NewSlogLogger(opts...), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SlogLogger implements Logger using slog.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

// NewSlogLogger creates a new slog-based logger writing to stderr by default.
func NewSlogLogger(opts ...LoggerOption) *SlogLogger {
	config := &loggerConfig{
		level:  slog.LevelInfo,
		output: os.Stderr,
	}
	for _, opt := range opts {
		opt(config)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     config.level,
		AddSource: config.addSource,
	}

	var handler slog.Handler
	if config.json {
		handler = slog.NewJSONHandler(config.output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(config.output, handlerOpts)
	}

	return &SlogLogger{
		logger: slog.New(handler),
		ctx:    context.Background(),
	}
}

type loggerConfig struct {
	level     slog.Level
	output    io.Writer
	json      bool
	addSource bool
}

// LoggerOption configures the logger.
type LoggerOption func(*loggerConfig)

// WithLevel sets the log level.
func WithLevel(level slog.Level) LoggerOption {
	return func(c *loggerConfig) {
		c.level = level
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) LoggerOption {
	return func(c *loggerConfig) {
		c.output = w
	}
}

// WithJSON enables JSON output.
func WithJSON() LoggerOption {
	return func(c *loggerConfig) {
		c.json = true
	}
}

// WithSource adds source location to logs.
func WithSource() LoggerOption {
	return func(c *loggerConfig) {
		c.addSource = true
	}
}

func toAttrs(fields []Field) []any {
	attrs := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		attrs = append(attrs, f.Key, f.Value)
	}
	return attrs
}

func (l *SlogLogger) Debug(msg string, fields ...Field) {
	l.logger.DebugContext(l.ctx, msg, toAttrs(fields)...)
}

func (l *SlogLogger) Info(msg string, fields ...Field) {
	l.logger.InfoContext(l.ctx, msg, toAttrs(fields)...)
}

func (l *SlogLogger) Warn(msg string, fields ...Field) {
	l.logger.WarnContext(l.ctx, msg, toAttrs(fields)...)
}

func (l *SlogLogger) Error(msg string, fields ...Field) {
	l.logger.ErrorContext(l.ctx, msg, toAttrs(fields)...)
}

// With returns a logger with additional fields.
func (l *SlogLogger) With(fields ...Field) Logger {
	return &SlogLogger{
		logger: l.logger.With(toAttrs(fields)...),
		ctx:    l.ctx,
	}
}

// WithContext returns a logger bound to ctx.
func (l *SlogLogger) WithContext(ctx context.Context) Logger {
	return &SlogLogger{
		logger: l.logger,
		ctx:    ctx,
	}
}

// DefaultLogger is used by components that were not given a logger.
var DefaultLogger Logger = NewSlogLogger()

// SetDefault sets the default logger.
func SetDefault(logger Logger) {
	DefaultLogger = logger
}

// NopLogger is a logger that does nothing.
type NopLogger struct{}

func (NopLogger) Debug(msg string, fields ...Field)        {}
func (NopLogger) Info(msg string, fields ...Field)         {}
func (NopLogger) Warn(msg string, fields ...Field)         {}
func (NopLogger) Error(msg string, fields ...Field)        {}
func (l NopLogger) With(fields ...Field) Logger            { return l }
func (l NopLogger) WithContext(ctx context.Context) Logger { return l }

// RequestLogger logs HTTP requests served by the wizard server.
func RequestLogger(logger Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			logger.Info("request",
				String("method", r.Method),
				String("path", r.URL.Path),
				Int("status", rw.status),
				Duration("duration", time.Since(start)),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the request logger.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}
