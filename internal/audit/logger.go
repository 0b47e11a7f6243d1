package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// Analysis run lifecycle
	LogAnalysisStarted(ctx context.Context, runID, trigger, sourceIP string) error
	LogAnalysisCompleted(ctx context.Context, runID string, duration time.Duration, metadata map[string]interface{}) error
	LogAnalysisFailed(ctx context.Context, runID string, err error) error

	// LogConfigChanged records a hot reload of the configuration file.
	LogConfigChanged(ctx context.Context, path string) error

	// LogSeedCompleted records a synthetic dataset load.
	LogSeedCompleted(ctx context.Context, counts map[string]int, duration time.Duration) error

	// App returns the structured application logger.
	App() *zap.Logger

	// Sync flushes buffered log entries
	Sync() error

	// Close closes the audit logger
	Close() error
}

// Config represents audit logger configuration
type Config struct {
	// AuditLogPath is the path to the audit log file
	AuditLogPath string

	// AppLogPath is the path to the application log file
	AppLogPath string

	// MaxSize is the maximum size in megabytes before rotation
	MaxSize int

	// MaxBackups is the maximum number of old log files to retain
	MaxBackups int

	// MaxAge is the maximum number of days to retain old log files
	MaxAge int

	// Compress determines if rotated files should be compressed
	Compress bool

	// LogLevel is the minimum log level (debug, info, warn, error)
	LogLevel string

	// Console mirrors application logs to stderr.
	Console bool
}

// DefaultConfig returns default audit logger configuration
func DefaultConfig() *Config {
	return &Config{
		AuditLogPath: "logs/audit.log",
		AppLogPath:   "logs/app.log",
		MaxSize:      100, // megabytes
		MaxBackups:   10,
		MaxAge:       30, // days
		Compress:     true,
		LogLevel:     "info",
	}
}

const (
	bufferSize    = 100
	flushInterval = time.Second
)

// auditLogger implements the Logger interface
type auditLogger struct {
	appLogger   *zap.Logger
	auditLogger *zap.Logger
	config      *Config
	mu          sync.Mutex
	buffer      []*Event
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
}

// NewLogger creates a new audit logger
func NewLogger(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := zapcore.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", config.LogLevel, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	// Application logger with rotation
	appCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		sink(config, config.AppLogPath),
		level,
	)
	if config.Console && config.AppLogPath != "" {
		consoleCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.Lock(os.Stderr),
			level,
		)
		appCore = zapcore.NewTee(appCore, consoleCore)
	}
	appLogger := zap.New(appCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	// Audit logger with rotation (always INFO level, append-only)
	auditCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		sink(config, config.AuditLogPath),
		zapcore.InfoLevel,
	)

	logger := &auditLogger{
		appLogger:   appLogger,
		auditLogger: zap.New(auditCore),
		config:      config,
		buffer:      make([]*Event, 0, bufferSize),
		flushTicker: time.NewTicker(flushInterval),
		stopCh:      make(chan struct{}),
	}

	go logger.autoFlush()

	return logger, nil
}

// sink returns a rotating file writer, or stderr when path is empty.
func sink(config *Config, path string) zapcore.WriteSyncer {
	if path == "" {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	})
}

// Log logs an audit event
func (l *auditLogger) Log(ctx context.Context, event *Event) error {
	if event.CorrelationID == "" {
		event.CorrelationID = GetCorrelationID(ctx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer = append(l.buffer, event)

	if len(l.buffer) >= bufferSize {
		return l.flushLocked()
	}

	return nil
}

// flushLocked flushes the buffer (caller must hold lock)
func (l *auditLogger) flushLocked() error {
	if len(l.buffer) == 0 {
		return nil
	}

	for _, event := range l.buffer {
		eventJSON, err := json.Marshal(event)
		if err != nil {
			l.appLogger.Error("failed to marshal audit event",
				zap.Error(err),
				zap.String("event_type", string(event.EventType)),
			)
			continue
		}

		l.auditLogger.Info(string(eventJSON),
			zap.String("correlation_id", event.CorrelationID),
			zap.String("event_type", string(event.EventType)),
			zap.String("result", string(event.Result)),
		)
	}

	l.buffer = l.buffer[:0]

	return nil
}

// autoFlush periodically flushes the buffer
func (l *auditLogger) autoFlush() {
	for {
		select {
		case <-l.flushTicker.C:
			l.mu.Lock()
			_ = l.flushLocked()
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// LogAnalysisStarted logs when an analysis run starts
func (l *auditLogger) LogAnalysisStarted(ctx context.Context, runID, trigger, sourceIP string) error {
	event := NewEvent(EventAnalysisStarted).
		WithCorrelationID(runID).
		WithResource(runID, "analysis_run").
		WithTrigger(trigger).
		WithSourceIP(sourceIP).
		WithResult(ResultSuccess).
		WithDescription(fmt.Sprintf("Analysis %s started", runID))

	return l.Log(ctx, event)
}

// LogAnalysisCompleted logs when an analysis run completes
func (l *auditLogger) LogAnalysisCompleted(ctx context.Context, runID string, duration time.Duration, metadata map[string]interface{}) error {
	event := NewEvent(EventAnalysisCompleted).
		WithCorrelationID(runID).
		WithResource(runID, "analysis_run").
		WithResult(ResultSuccess).
		WithDuration(duration).
		WithDescription(fmt.Sprintf("Analysis %s completed", runID))
	for k, v := range metadata {
		event.WithMetadata(k, v)
	}

	return l.Log(ctx, event)
}

// LogAnalysisFailed logs when an analysis run fails
func (l *auditLogger) LogAnalysisFailed(ctx context.Context, runID string, err error) error {
	event := NewEvent(EventAnalysisFailed).
		WithCorrelationID(runID).
		WithResource(runID, "analysis_run").
		WithError(err, "analysis_error").
		WithDescription(fmt.Sprintf("Analysis %s failed", runID))

	return l.Log(ctx, event)
}

// LogConfigChanged logs a configuration hot reload
func (l *auditLogger) LogConfigChanged(ctx context.Context, path string) error {
	event := NewEvent(EventConfigChanged).
		WithResource(path, "config_file").
		WithResult(ResultSuccess).
		WithDescription(fmt.Sprintf("Configuration reloaded from %s", path))

	return l.Log(ctx, event)
}

// LogSeedCompleted logs a synthetic data load
func (l *auditLogger) LogSeedCompleted(ctx context.Context, counts map[string]int, duration time.Duration) error {
	event := NewEvent(EventSeedCompleted).
		WithResult(ResultSuccess).
		WithDuration(duration).
		WithDescription("Synthetic dataset loaded")
	for k, v := range counts {
		event.WithMetadata(k, v)
	}

	return l.Log(ctx, event)
}

func (l *auditLogger) App() *zap.Logger {
	return l.appLogger
}

// Sync flushes buffered log entries
func (l *auditLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.flushLocked(); err != nil {
		return err
	}

	if err := l.auditLogger.Sync(); err != nil {
		return err
	}

	// Syncing stderr fails on some terminals; only the files matter.
	_ = l.appLogger.Sync()
	return nil
}

// Close closes the audit logger
func (l *auditLogger) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopCh)
		l.flushTicker.Stop()
	})
	return l.Sync()
}

// ─── Nop ─────────────────────────────────────────────────────────────────────

type nopLogger struct {
	app *zap.Logger
}

// NewNopLogger returns a Logger that discards audit events and logs
// application messages to app (or nowhere when app is nil).
func NewNopLogger(app *zap.Logger) Logger {
	if app == nil {
		app = zap.NewNop()
	}
	return nopLogger{app: app}
}

func (nopLogger) Log(context.Context, *Event) error                                { return nil }
func (nopLogger) LogAnalysisStarted(context.Context, string, string, string) error { return nil }
func (nopLogger) LogAnalysisCompleted(context.Context, string, time.Duration, map[string]interface{}) error {
	return nil
}
func (nopLogger) LogAnalysisFailed(context.Context, string, error) error                { return nil }
func (nopLogger) LogConfigChanged(context.Context, string) error                        { return nil }
func (nopLogger) LogSeedCompleted(context.Context, map[string]int, time.Duration) error { return nil }
func (n nopLogger) App() *zap.Logger                                                    { return n.app }
func (nopLogger) Sync() error                                                           { return nil }
func (nopLogger) Close() error                                                          { return nil }

// ─── Correlation IDs ─────────────────────────────────────────────────────────

type correlationKey struct{}

// GetCorrelationID extracts correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID adds correlation ID to context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GenerateCorrelationID generates a new correlation ID
func GenerateCorrelationID() string {
	return uuid.NewString()
}
