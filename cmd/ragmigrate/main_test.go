package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/ragmigrate/core"
	"github.com/poiesic/ragmigrate/source"
	"github.com/poiesic/ragmigrate/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lightRAG is a minimal stand-in for the index service.
type lightRAG struct {
	mu      sync.Mutex
	texts   []string
	queries []string
}

func (l *lightRAG) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var body map[string]string
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	switch r.URL.Path {
	case "/":
		_, _ = w.Write([]byte(`{"message":"running"}`))
	case "/index":
		l.texts = append(l.texts, body["text"])
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	case "/query":
		l.queries = append(l.queries, body["query"]+"|"+body["mode"])
		_, _ = w.Write([]byte(`{"response":"Mükellef, vergi borcunu ödemekle yükümlü kişidir."}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func startLightRAG(t *testing.T) (*lightRAG, string) {
	t.Helper()
	svc := &lightRAG{}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	return svc, srv.URL
}

func sourceFixture(t *testing.T, rows int) string {
	t.Helper()
	records := make([]core.Record, rows)
	for i := range rows {
		records[i] = core.Record{"Soru": fmt.Sprintf("Soru %d?", i), "Cevap": "Cevap.", "IlgiliKanun": "VUK"}
	}
	dsn, err := source.NewSQLiteFixture(filepath.Join(t.TempDir(), "src.db"), "sorucevap",
		[]string{"Soru", "Cevap", "IlgiliKanun", "Donemi"}, records)
	require.NoError(t, err)
	return dsn
}

func runApp(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err = app.Run(append([]string{"ragmigrate"}, args...))
	return out.String(), errOut.String(), err
}

func TestSetupLogger(t *testing.T) {
	_, _, err := runApp(t, "--log-level", "verbose", "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")

	_, _, err = runApp(t, "--log-level", "DEBUG", "config")
	assert.NoError(t, err)
}

func TestConfigCommand(t *testing.T) {
	stdout, _, err := runApp(t, "config",
		"--source-dsn", "postgres://ragmigrate:hunter2@db:5432/vergi",
		"--batch-size", "25",
		"--table", "makaleler",
		"--skip-smoke-test",
	)
	require.NoError(t, err)

	assert.Contains(t, stdout, "batch_size: 25")
	assert.Contains(t, stdout, "name: makaleler")
	assert.NotContains(t, stdout, "name: sorucevap")
	assert.NotContains(t, stdout, "hunter2")
	assert.Contains(t, stdout, "enabled: false")
}

func TestConfigCommand_Invalid(t *testing.T) {
	_, _, err := runApp(t, "config", "--batch-size", "0")
	assert.Error(t, err)

	_, _, err = runApp(t, "config", "--table", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestRunCommand(t *testing.T) {
	svc, url := startLightRAG(t)
	dsn := sourceFixture(t, 23)
	stateDir := filepath.Join(t.TempDir(), "state")

	_, stderr, err := runApp(t, "run",
		"--source-dsn", dsn,
		"--index-url", url,
		"--table", "sorucevap",
		"--batch-delay", "0s",
		"--state-dir", stateDir,
	)
	require.NoError(t, err)

	assert.Len(t, svc.texts, 3)
	assert.Contains(t, stderr, "📊 Migrating sorucevap...")
	assert.Contains(t, stderr, "✅ Indexed 23/23 records")
	assert.Contains(t, stderr, "Total records indexed: 23")
	assert.Contains(t, stderr, "Response: Mükellef")
	require.Len(t, svc.queries, 1)
	assert.Equal(t, "vergi mükellefi kimdir|hybrid", svc.queries[0])

	stdout, _, err := runApp(t, "status", "--state-dir", stateDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "sorucevap")
	assert.Contains(t, stdout, "done")
	assert.Contains(t, stdout, "23/23")

	// The finished table is skipped on the next run.
	_, _, err = runApp(t, "run",
		"--source-dsn", dsn,
		"--index-url", url,
		"--table", "sorucevap",
		"--batch-delay", "0s",
		"--state-dir", stateDir,
		"--skip-smoke-test",
	)
	require.NoError(t, err)
	assert.Len(t, svc.texts, 3)
	assert.Len(t, svc.queries, 1)
}

func TestRunCommand_IndexUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, stderr, err := runApp(t, "run",
		"--source-dsn", sourceFixture(t, 1),
		"--index-url", url,
		"--table", "sorucevap",
	)
	require.Error(t, err)
	assert.Contains(t, stderr, "❌ LightRAG service is not running!")
}

func TestRunCommand_MissingSource(t *testing.T) {
	t.Setenv("SOURCE_DB", "")
	t.Setenv("RAGMIGRATE_SOURCE_DSN", "")

	_, url := startLightRAG(t)
	_, _, err := runApp(t, "run", "--index-url", url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source")
}

func TestPlanCommand(t *testing.T) {
	stdout, _, err := runApp(t, "plan",
		"--source-dsn", sourceFixture(t, 1500),
		"--table", "sorucevap",
		"--table", "makaleler",
		"--workers", "2",
	)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "EXPECTED")
	assert.Regexp(t, `sorucevap\s+1500\s+1000\s+1000`, lines[1])
	assert.Contains(t, lines[2], "makaleler")
	assert.Contains(t, lines[2], "error:")
	assert.Contains(t, stdout, "Total records to index: 1000")
}

func TestStatusAndReset(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), "state")

	stdout, _, err := runApp(t, "status", "--state-dir", stateDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No checkpoints")

	repo, err := badger.OpenCheckpointRepository(stateDir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, repo.SaveCheckpoint(ctx, &core.Checkpoint{Table: "makaleler", RunID: "run-1", Consumed: 40, Total: 200, Indexed: 40}))
	require.NoError(t, repo.SaveCheckpoint(ctx, &core.Checkpoint{Table: "ozelgeler", RunID: "run-1", Consumed: 200, Total: 200, Indexed: 200, Done: true}))
	require.NoError(t, repo.Close())

	stdout, _, err = runApp(t, "status", "--state-dir", stateDir)
	require.NoError(t, err)
	assert.Regexp(t, `makaleler\s+partial\s+40/200`, stdout)
	assert.Regexp(t, `ozelgeler\s+done\s+200/200`, stdout)

	stdout, _, err = runApp(t, "reset", "--state-dir", stateDir, "--table", "makaleler", "--table", "sorucevap")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Reset makaleler")
	assert.Contains(t, stdout, "No checkpoint for sorucevap")

	stdout, _, err = runApp(t, "reset", "--state-dir", stateDir, "--all")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Reset ozelgeler")

	stdout, _, err = runApp(t, "status", "--state-dir", stateDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No checkpoints")
}

func TestResetCommand_Validation(t *testing.T) {
	stateDir := t.TempDir()

	_, _, err := runApp(t, "reset", "--state-dir", stateDir)
	assert.Error(t, err)

	_, _, err = runApp(t, "reset", "--state-dir", stateDir, "--all", "--table", "makaleler")
	assert.Error(t, err)

	_, _, err = runApp(t, "reset", "--all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state directory")
}

func TestQueryCommand(t *testing.T) {
	svc, url := startLightRAG(t)

	stdout, _, err := runApp(t, "query", "--index-url", url, "--mode", "local", "vergi", "mükellefi", "kimdir")
	require.NoError(t, err)
	assert.Contains(t, stdout, "📝 Query: vergi mükellefi kimdir")
	assert.Contains(t, stdout, "Mükellef, vergi borcunu")
	assert.Equal(t, []string{"vergi mükellefi kimdir|local"}, svc.queries)

	_, _, err = runApp(t, "query", "--index-url", url)
	assert.Error(t, err)
}

func TestMetricsRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "ragmigrate_test_gauge"})
	reg.MustRegister(gauge)
	gauge.Set(7)

	srv := httptest.NewServer(newMetricsRouter(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ragmigrate_test_gauge 7")

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
