// Package logging wraps logrus with the structured, fields-first logging
// style used across the mediator: a ContextLogger builder that accumulates
// fields before emitting, plus helpers for timing operations and recording
// panics.
package logging

import (
	"context"
	"os"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

type Config struct {
	Level      LogLevel
	JSONFormat bool
	ReportCaller bool
}

func DefaultConfig() Config {
	return Config{Level: LevelInfo, JSONFormat: true, ReportCaller: false}
}

// New builds a *logrus.Logger from Config, defaulting to JSON output on
// stdout the way long-running services in production expect.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetReportCaller(cfg.ReportCaller)

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.JSONFormat {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// ServiceLogger returns a logger pre-populated with service identity fields,
// used as the root logger handed to every component at wiring time.
func ServiceLogger(logger *logrus.Logger, serviceName, serviceVersion string) *ContextLogger {
	return &ContextLogger{entry: logger.WithFields(logrus.Fields{
		"service":         serviceName,
		"service_version": serviceVersion,
	})}
}

// ContextLogger accumulates fields via chained With* calls before emitting,
// so call sites read as a short pipeline rather than a flat field map.
type ContextLogger struct {
	entry *logrus.Entry
}

func FromEntry(e *logrus.Entry) *ContextLogger {
	return &ContextLogger{entry: e}
}

func (c *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	return &ContextLogger{entry: c.entry.WithField(key, value)}
}

func (c *ContextLogger) WithFields(fields map[string]interface{}) *ContextLogger {
	return &ContextLogger{entry: c.entry.WithFields(logrus.Fields(fields))}
}

func (c *ContextLogger) WithError(err error) *ContextLogger {
	return &ContextLogger{entry: c.entry.WithError(err)}
}

// WithContext pulls a request id (if present) out of ctx and attaches it.
func (c *ContextLogger) WithContext(ctx context.Context) *ContextLogger {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok && rid != "" {
		return c.WithField("request_id", rid)
	}
	return c
}

func (c *ContextLogger) Debug(args ...interface{}) { c.entry.Debug(args...) }
func (c *ContextLogger) Info(args ...interface{})  { c.entry.Info(args...) }
func (c *ContextLogger) Warn(args ...interface{})  { c.entry.Warn(args...) }
func (c *ContextLogger) Error(args ...interface{}) { c.entry.Error(args...) }

func (c *ContextLogger) Debugf(format string, args ...interface{}) { c.entry.Debugf(format, args...) }
func (c *ContextLogger) Infof(format string, args ...interface{})  { c.entry.Infof(format, args...) }
func (c *ContextLogger) Warnf(format string, args ...interface{})  { c.entry.Warnf(format, args...) }
func (c *ContextLogger) Errorf(format string, args ...interface{}) { c.entry.Errorf(format, args...) }

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// LogOperation runs fn, logging its start, completion and duration. Errors
// returned by fn are logged at Error level and passed through unchanged.
func LogOperation(logger *ContextLogger, operation string, fn func() error) error {
	start := time.Now()
	logger.WithField("operation", operation).Debug("operation starting")
	err := fn()
	duration := time.Since(start)
	l := logger.WithFields(map[string]interface{}{
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		l.WithError(err).Error("operation failed")
		return err
	}
	l.Debug("operation completed")
	return nil
}

// LogPanic recovers a panic (if any), logs it with a stack trace, and
// re-panics so the caller's own recover/supervisor still sees it.
func LogPanic(logger *ContextLogger) {
	if r := recover(); r != nil {
		logger.WithFields(map[string]interface{}{
			"panic": r,
			"stack": string(debug.Stack()),
		}).Error("recovered panic")
		panic(r)
	}
}
