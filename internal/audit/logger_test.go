package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	tmpDir := t.TempDir()
	return &Config{
		AuditLogPath: filepath.Join(tmpDir, "audit.log"),
		AppLogPath:   filepath.Join(tmpDir, "app.log"),
		MaxSize:      10,
		MaxBackups:   3,
		MaxAge:       7,
		LogLevel:     "info",
	}
}

func readAudit(t *testing.T, config *Config) string {
	t.Helper()
	content, err := os.ReadFile(config.AuditLogPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	return string(content)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(testConfig(t))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	if logger.App() == nil {
		t.Fatal("Expected application logger to be non-nil")
	}
}

func TestNewLoggerWithInvalidLevel(t *testing.T) {
	config := testConfig(t)
	config.LogLevel = "invalid"

	_, err := NewLogger(config)
	if err == nil {
		t.Fatal("Expected error for invalid log level")
	}

	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("Expected 'invalid log level' error, got: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.AuditLogPath != "logs/audit.log" {
		t.Errorf("Expected audit log path 'logs/audit.log', got %s", config.AuditLogPath)
	}
	if config.MaxSize != 100 {
		t.Errorf("Expected max size 100, got %d", config.MaxSize)
	}
	if config.LogLevel != "info" {
		t.Errorf("Expected log level 'info', got %s", config.LogLevel)
	}
}

func TestLogEvent(t *testing.T) {
	config := testConfig(t)
	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	event := NewEvent(EventDatasetLoaded).
		WithCorrelationID("test-123").
		WithTrigger("cli").
		WithResource("sqlite", "store").
		WithResult(ResultSuccess)

	if err := logger.Log(context.Background(), event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	logContent := readAudit(t, config)
	for _, want := range []string{"test-123", "data.dataset_loaded", "cli"} {
		if !strings.Contains(logContent, want) {
			t.Errorf("Log does not contain %q", want)
		}
	}
}

func TestLogEventTakesCorrelationIDFromContext(t *testing.T) {
	config := testConfig(t)
	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	ctx := WithCorrelationID(context.Background(), "req-789")
	if err := logger.Log(ctx, NewEvent(EventConfigLoaded)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if !strings.Contains(readAudit(t, config), "req-789") {
		t.Error("Log does not contain correlation ID from context")
	}
}

func TestLogAnalysisLifecycle(t *testing.T) {
	config := testConfig(t)
	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	runID := "run-456"

	if err := logger.LogAnalysisStarted(ctx, runID, "api", "203.0.113.7"); err != nil {
		t.Fatalf("LogAnalysisStarted failed: %v", err)
	}
	if err := logger.LogAnalysisCompleted(ctx, runID, 5*time.Second, map[string]interface{}{"anomalies": 3}); err != nil {
		t.Fatalf("LogAnalysisCompleted failed: %v", err)
	}
	if err := logger.LogAnalysisFailed(ctx, "run-999", errors.New("store unavailable")); err != nil {
		t.Fatalf("LogAnalysisFailed failed: %v", err)
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	logContent := readAudit(t, config)
	for _, want := range []string{
		runID,
		"analysis.started",
		"203.0.113.7",
		"analysis.completed",
		"analysis.failed",
		"store unavailable",
		"anomalies",
	} {
		if !strings.Contains(logContent, want) {
			t.Errorf("Log does not contain %q", want)
		}
	}
}

func TestLogConfigAndSeed(t *testing.T) {
	config := testConfig(t)
	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	if err := logger.LogConfigChanged(ctx, "/etc/restrack/config.yaml"); err != nil {
		t.Fatalf("LogConfigChanged failed: %v", err)
	}
	if err := logger.LogSeedCompleted(ctx, map[string]int{"consumption": 1200}, time.Second); err != nil {
		t.Fatalf("LogSeedCompleted failed: %v", err)
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	logContent := readAudit(t, config)
	for _, want := range []string{"config.changed", "/etc/restrack/config.yaml", "data.seed_completed", "1200"} {
		if !strings.Contains(logContent, want) {
			t.Errorf("Log does not contain %q", want)
		}
	}
}

func TestBufferAutoFlush(t *testing.T) {
	config := testConfig(t)
	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	for i := 0; i < 5; i++ {
		event := NewEvent(EventServerStarted).
			WithCorrelationID("test").
			WithResult(ResultSuccess)
		if err := logger.Log(context.Background(), event); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	// Wait for auto-flush (1 second ticker)
	time.Sleep(1500 * time.Millisecond)

	if len(readAudit(t, config)) == 0 {
		t.Error("Audit log is empty after auto-flush")
	}
}

func TestBufferFullFlush(t *testing.T) {
	config := testConfig(t)
	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	for i := 0; i < 105; i++ {
		event := NewEvent(EventServerStarted).
			WithCorrelationID("test").
			WithResult(ResultSuccess)
		if err := logger.Log(context.Background(), event); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	eventCount := 0
	for _, line := range strings.Split(readAudit(t, config), "\n") {
		if strings.TrimSpace(line) != "" {
			eventCount++
		}
	}
	if eventCount < 105 {
		t.Errorf("Expected at least 105 events, got %d", eventCount)
	}
}

func TestCloseTwice(t *testing.T) {
	logger, err := NewLogger(testConfig(t))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger(nil)
	if err := logger.LogAnalysisStarted(context.Background(), "run", "api", ""); err != nil {
		t.Fatalf("nop logger returned error: %v", err)
	}
	if logger.App() == nil {
		t.Fatal("nop logger must expose a usable app logger")
	}
}

func TestCorrelationID(t *testing.T) {
	id1 := GenerateCorrelationID()
	id2 := GenerateCorrelationID()
	if id1 == id2 {
		t.Error("Generated correlation IDs should be unique")
	}

	ctx := WithCorrelationID(context.Background(), id1)
	if got := GetCorrelationID(ctx); got != id1 {
		t.Errorf("Expected %s, got %s", id1, got)
	}
	if got := GetCorrelationID(context.Background()); got != "" {
		t.Errorf("Expected empty correlation ID, got %s", got)
	}
}
