package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restrack/restrack-ai/internal/analytics"
	"github.com/restrack/restrack-ai/internal/db"
)

type env struct {
	dir    string
	dbPath string
}

func newEnv(t *testing.T) *env {
	dir := t.TempDir()
	return &env{dir: dir, dbPath: filepath.Join(dir, "restrack.db")}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommandWithIO(&out, &errOut)
	cmd.SetArgs(append(args,
		"--config", filepath.Join(e.dir, "missing.yaml"),
		"--sqlite-path", e.dbPath,
		"--app-log", filepath.Join(e.dir, "logs", "app.log"),
		"--audit-log", filepath.Join(e.dir, "logs", "audit.log"),
		"--log-level", "warn",
	))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type summaryOutput struct {
	ID      string            `json:"id"`
	Summary analytics.Summary `json:"summary"`
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommandWithIO(&out, &out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "restrack-ai dev")
}

func TestSeedToFileThenAnalyzeInput(t *testing.T) {
	e := newEnv(t)
	dsPath := filepath.Join(e.dir, "dataset.json")

	out, err := e.run(t, "seed", "--output", dsPath, "--now", "2024-06-30", "--items", "5", "--kitchens", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "supplies       5")
	assert.Contains(t, out, "consumption    120")

	out, err = e.run(t, "analyze", "--input", dsPath, "--now", "2024-06-30", "--summary")
	require.NoError(t, err)
	var got summaryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, 5, got.Summary.ItemsAnalyzed)
}

func TestSeedStoreThenAnalyze(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "seed", "--quiet", "--now", "2024-06-30", "--items", "4")
	require.NoError(t, err)

	out, err := e.run(t, "analyze", "--now", "2024-06-30")
	require.NoError(t, err)
	var a analytics.Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &a), out)
	assert.Equal(t, 4, a.Summary.ItemsAnalyzed)
	assert.NotEmpty(t, a.BudgetPredictions)

	_, err = e.run(t, "analyze", "--now", "2024-06-30", "--dry-run", "--summary")
	require.NoError(t, err)

	store, err := db.NewSQLiteStore(e.dbPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListAnalyses(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1, "dry run must not be stored")
	assert.Equal(t, a.ID, runs[0].ID)
	assert.Equal(t, analytics.TriggerCLI, runs[0].Trigger)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "analyze", "--now", "June 15")
	assert.ErrorContains(t, err, "invalid --now")

	_, err = e.run(t, "analyze", "--input", filepath.Join(e.dir, "nope.json"))
	assert.ErrorContains(t, err, "open dataset")
}

func TestInvalidConfigFails(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "analyze", "--db-type", "mysql")
	assert.ErrorContains(t, err, "invalid database type")
}

func TestParseNow(t *testing.T) {
	got, err := parseNow("2024-06-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15T00:00:00Z", got.Format("2006-01-02T15:04:05Z07:00"))

	got, err = parseNow("2024-06-15T10:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, 8, got.Hour())

	now, err := parseNow("")
	require.NoError(t, err)
	assert.False(t, now.IsZero())
}
