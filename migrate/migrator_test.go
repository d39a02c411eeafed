package migrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/ragmigrate/assemble"
	"github.com/poiesic/ragmigrate/core"
	"github.com/poiesic/ragmigrate/index/mock"
	"github.com/poiesic/ragmigrate/source"
	badgerstore "github.com/poiesic/ragmigrate/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var qaFields = []string{"Soru", "Cevap", "IlgiliKanun", "Donemi"}

// memSource serves tables from memory.
type memSource struct {
	tables map[string][]core.Record

	// pageErr, when set, is returned by FetchPage after failAfter pages.
	pageErr   error
	failAfter int

	mu      sync.Mutex
	cursors []*memCursor
}

func newMemSource() *memSource {
	return &memSource{tables: map[string][]core.Record{}}
}

func (s *memSource) Count(ctx context.Context, table string) (int, error) {
	rows, ok := s.tables[table]
	if !ok {
		return 0, fmt.Errorf("%w: no such table: %s", core.ErrSourceQuery, table)
	}
	return len(rows), nil
}

func (s *memSource) OpenCursor(ctx context.Context, spec core.TableSpec) (Cursor, error) {
	rows, ok := s.tables[spec.Name]
	if !ok {
		return nil, fmt.Errorf("%w: no such table: %s", core.ErrSourceQuery, spec.Name)
	}
	if spec.Limit > 0 && spec.Limit < len(rows) {
		rows = rows[:spec.Limit]
	}
	c := &memCursor{rows: rows, pageErr: s.pageErr, failAfter: s.failAfter}
	s.mu.Lock()
	s.cursors = append(s.cursors, c)
	s.mu.Unlock()
	return c, nil
}

func (s *memSource) allClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cursors {
		if !c.closed {
			return false
		}
	}
	return true
}

type memCursor struct {
	rows      []core.Record
	pos       int
	pages     int
	pageErr   error
	failAfter int
	closed    bool
}

func (c *memCursor) FetchPage(ctx context.Context, pageSize int) ([]core.Record, error) {
	if c.pageErr != nil && c.pages >= c.failAfter {
		return nil, c.pageErr
	}
	c.pages++
	end := min(c.pos+pageSize, len(c.rows))
	page := c.rows[c.pos:end]
	c.pos = end
	return page, nil
}

func (c *memCursor) Skip(ctx context.Context, n int) (int, error) {
	end := min(c.pos+n, len(c.rows))
	skipped := end - c.pos
	c.pos = end
	return skipped, nil
}

func (c *memCursor) Close() error {
	c.closed = true
	return nil
}

// countingPacer never sleeps and counts waits. It cancels the run after
// cancelAfter waits when cancel is set.
type countingPacer struct {
	waits       int
	cancelAfter int
	cancel      context.CancelFunc
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	if p.cancel != nil && p.waits >= p.cancelAfter {
		p.cancel()
		return ctx.Err()
	}
	return nil
}

func qaRows(n int) []core.Record {
	rows := make([]core.Record, n)
	for i := range n {
		rows[i] = core.Record{
			"Soru":        fmt.Sprintf("Soru %d?", i),
			"Cevap":       fmt.Sprintf("Cevap %d.", i),
			"IlgiliKanun": "VUK Madde 8",
			"Donemi":      nil,
		}
	}
	return rows
}

func newTestMigrator(t *testing.T, src Source, ix *mock.Indexer, cfg *Config, opts ...Option) (*Migrator, *bytes.Buffer, *countingPacer) {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var out bytes.Buffer
	pacer := &countingPacer{}
	m, err := NewMigrator(src, ix, assemble.New(nil), cfg, &out, append([]Option{WithPacer(pacer)}, opts...)...)
	require.NoError(t, err)
	return m, &out, pacer
}

func TestMigrator_BatchesAndRemainder(t *testing.T) {
	src := newMemSource()
	src.tables["sorucevap"] = qaRows(25)
	ix := mock.New()
	m, out, pacer := newTestMigrator(t, src, ix, nil)

	summary, err := m.Run(context.Background(), []core.TableSpec{{Name: "sorucevap", Fields: qaFields, Limit: 1000}})
	require.NoError(t, err)

	payloads := ix.Payloads()
	require.Len(t, payloads, 3, "two full batches and one remainder")
	assert.Equal(t, 9, strings.Count(payloads[0], BatchSeparator))
	assert.Equal(t, 9, strings.Count(payloads[1], BatchSeparator))
	assert.Equal(t, 4, strings.Count(payloads[2], BatchSeparator), "remainder holds total mod batch size documents")
	assert.True(t, strings.HasPrefix(payloads[0], "Soru: Soru 0?\n\nSoru 0?\n\nCevap: Cevap 0.\n\nVUK Madde 8\n\nİlgili Kanun: VUK Madde 8"))
	assert.True(t, strings.HasPrefix(payloads[2], "Soru: Soru 20?"))

	assert.Equal(t, 2, pacer.waits, "pacing follows full batches only")

	require.Len(t, summary.Tables, 1)
	res := summary.Tables[0]
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, core.ProgressCounters{Table: "sorucevap", Total: 25, Indexed: 25}, res.Counters)
	assert.Equal(t, 25, summary.Indexed)
	assert.True(t, src.allClosed())

	assert.Contains(t, out.String(), "✅ Indexed 10/25 records")
	assert.Contains(t, out.String(), "✅ Indexed 25/25 records")
	assert.Contains(t, out.String(), "Total records indexed: 25")
}

func TestMigrator_ExactMultipleHasNoRemainder(t *testing.T) {
	src := newMemSource()
	src.tables["sorucevap"] = qaRows(20)
	ix := mock.New()
	m, _, pacer := newTestMigrator(t, src, ix, nil)

	_, err := m.Run(context.Background(), []core.TableSpec{{Name: "sorucevap", Fields: qaFields}})
	require.NoError(t, err)

	assert.Len(t, ix.Payloads(), 2)
	assert.Equal(t, 2, pacer.waits)
}

func TestMigrator_EmptyDocumentsNeverSubmitted(t *testing.T) {
	src := newMemSource()
	src.tables["makaleler"] = []core.Record{
		{"Baslik": "Vergi", "Icerik": "Metin"},
		{"Baslik": "  ", "Icerik": nil, "Yazar": ""},
		{"Baslik": nil},
		{"Baslik": "KDV", "Yazar": "Ali"},
	}
	ix := mock.New()
	m, out, _ := newTestMigrator(t, src, ix, nil)

	summary, err := m.Run(context.Background(), []core.TableSpec{{Name: "makaleler", Fields: []string{"Baslik", "Icerik", "Yazar", "IlgiliKanun"}}})
	require.NoError(t, err)

	payloads := ix.Payloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, "Başlık: Vergi\n\nVergi\n\nİçerik: Metin"+BatchSeparator+"Başlık: KDV\n\nKDV\n\nAli", payloads[0])

	res := summary.Tables[0]
	assert.Equal(t, 2, res.Counters.Indexed)
	assert.Equal(t, 2, res.Counters.Dropped)
	assert.LessOrEqual(t, res.Counters.Indexed, res.Counters.Total)
	assert.NotContains(t, out.String(), "❌", "dropped records are not reported as failures")
}

func TestMigrator_ConsecutiveFailuresContinue(t *testing.T) {
	src := newMemSource()
	src.tables["sorucevap"] = qaRows(50)
	ix := mock.New()
	ix.FailNext(3, http.StatusInternalServerError)
	m, out, pacer := newTestMigrator(t, src, ix, &Config{
		BatchSize: 10, PageSize: 7, Pacing: PacingFixed, MaxRetries: 1,
	})

	summary, err := m.Run(context.Background(), []core.TableSpec{{Name: "sorucevap", Fields: qaFields}})
	require.NoError(t, err)

	assert.Equal(t, 5, ix.CallCount(), "later pages are still processed")
	assert.Len(t, ix.Accepted(), 2)
	assert.Equal(t, 5, pacer.waits, "pacing also follows failed batches")

	res := summary.Tables[0]
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 20, res.Counters.Indexed)
	assert.Equal(t, 30, res.Counters.Failed)
	assert.Equal(t, 3, strings.Count(out.String(), "❌ Failed to index batch"))
	assert.Contains(t, out.String(), "✅ Indexed 10/50 records")
}

func TestMigrator_RecordLimit(t *testing.T) {
	src := newMemSource()
	src.tables["sorucevap"] = qaRows(1000)
	ix := mock.New()
	m, out, _ := newTestMigrator(t, src, ix, nil)

	summary, err := m.Run(context.Background(), []core.TableSpec{{Name: "sorucevap", Fields: qaFields, Limit: 200}})
	require.NoError(t, err)

	res := summary.Tables[0]
	assert.Equal(t, 200, res.Counters.Total)
	assert.Equal(t, 200, res.Counters.Indexed)
	assert.Len(t, ix.Payloads(), 20)
	assert.Contains(t, out.String(), "Total records: 1000 (limit 200)")
	assert.Contains(t, out.String(), "✅ Indexed 200/200 records")
}

func TestMigrator_IndexUnavailable(t *testing.T) {
	src := newMemSource()
	src.tables["sorucevap"] = qaRows(5)
	src.tables["makaleler"] = qaRows(5)
	ix := &mock.Indexer{}
	m, out, _ := newTestMigrator(t, src, ix, nil)

	summary, err := m.Run(context.Background(), []core.TableSpec{
		{Name: "sorucevap", Fields: qaFields},
		{Name: "makaleler", Fields: qaFields},
	})
	require.NoError(t, err, "an unavailable index aborts tables, not the run")

	require.Len(t, summary.Tables, 2)
	for _, res := range summary.Tables {
		assert.Equal(t, StateAborted, res.State)
		assert.ErrorIs(t, res.Err, ErrIndexUnavailable)
		assert.ErrorIs(t, res.Err, core.ErrConnection)
	}
	assert.Len(t, summary.Aborted(), 2)
	assert.Zero(t, ix.CallCount())
	assert.Empty(t, src.cursors, "no cursor is opened for an aborted table")
	assert.ErrorIs(t, summary.SmokeErr, ErrIndexUnavailable)
	assert.Contains(t, out.String(), "Index service is not running")
}

func TestMigrator_UnknownTableAbortsOnlyThatTable(t *testing.T) {
	src := newMemSource()
	src.tables["makaleler"] = qaRows(3)
	ix := mock.New()
	m, _, _ := newTestMigrator(t, src, ix, nil)

	summary, err := m.Run(context.Background(), []core.TableSpec{
		{Name: "yok", Fields: qaFields},
		{Name: "bad name; DROP", Fields: qaFields},
		{Name: "makaleler", Fields: qaFields},
	})
	require.NoError(t, err)

	require.Len(t, summary.Tables, 3)
	assert.Equal(t, StateAborted, summary.Tables[0].State)
	assert.ErrorIs(t, summary.Tables[0].Err, core.ErrSourceQuery)
	assert.Equal(t, StateAborted, summary.Tables[1].State)
	assert.ErrorIs(t, summary.Tables[1].Err, core.ErrInvalidTableSpec)
	assert.Equal(t, StateDone, summary.Tables[2].State)
	assert.Equal(t, 3, summary.Indexed)
}

func TestMigrator_PagingErrorStopsRun(t *testing.T) {
	storeErr := errors.New("driver: bad connection")
	src := newMemSource()
	src.tables["sorucevap"] = qaRows(30)
	src.tables["makaleler"] = qaRows(5)
	src.pageErr = storeErr
	src.failAfter = 1
	ix := mock.New()
	m, _, _ := newTestMigrator(t, src, ix, &Config{
		BatchSize: 10, PageSize: 15, Pacing: PacingFixed, MaxRetries: 1,
	})

	summary, err := m.Run(context.Background(), []core.TableSpec{
		{Name: "sorucevap", Fields: qaFields},
		{Name: "makaleler", Fields: qaFields},
	})
	require.ErrorIs(t, err, storeErr)

	require.Len(t, summary.Tables, 1, "the run stops at the failing table")
	assert.Equal(t, StateAborted, summary.Tables[0].State)
	assert.Equal(t, 10, summary.Tables[0].Counters.Indexed)
	assert.Len(t, ix.Payloads(), 1, "the partial batch is lost")
	assert.True(t, src.allClosed())
}

func TestMigrator_RerunSubmitsDuplicates(t *testing.T) {
	src := newMemSource()
	src.tables["sorucevap"] = qaRows(12)
	ix := mock.New()
	tables := []core.TableSpec{{Name: "sorucevap", Fields: qaFields}}

	m, _, _ := newTestMigrator(t, src, ix, nil)
	first, err := m.Run(context.Background(), tables)
	require.NoError(t, err)
	second, err := m.Run(context.Background(), tables)
	require.NoError(t, err)

	payloads := ix.Payloads()
	require.Len(t, payloads, 4)
	assert.Equal(t, payloads[:2], payloads[2:])
	assert.Equal(t, first.Indexed, second.Indexed)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestMigrator_Retries(t *testing.T) {
	src := newMemSource()
	src.tables["sorucevap"] = qaRows(10)
	ix := mock.New()
	ix.FailNext(2, http.StatusServiceUnavailable)
	m, _, _ := newTestMigrator(t, src, ix, &Config{
		BatchSize: 10, PageSize: 100, Pacing: PacingFixed, MaxRetries: 3,
	})

	summary, err := m.Run(context.Background(), []core.TableSpec{{Name: "sorucevap", Fields: qaFields}})
	require.NoError(t, err)

	assert.Equal(t, 3, ix.CallCount())
	assert.Equal(t, 10, summary.Indexed)
	assert.Zero(t, summary.Failed)
}

func TestMigrator_RejectedBatchNotRetried(t *testing.T) {
	src := newMemSource()
	src.tables["sorucevap"] = qaRows(10)
	ix := mock.New()
	ix.FailNext(1, http.StatusUnprocessableEntity)
	m, _, _ := newTestMigrator(t, src, ix, &Config{
		BatchSize: 10, PageSize: 100, Pacing: PacingFixed, MaxRetries: 3,
	})

	summary, err := m.Run(context.Background(), []core.TableSpec{{Name: "sorucevap", Fields: qaFields}})
	require.NoError(t, err)

	assert.Equal(t, 1, ix.CallCount())
	assert.Equal(t, 10, summary.Failed)
}

func TestMigrator_SmokeQuery(t *testing.T) {
	src := newMemSource()
	src.tables["sorucevap"] = qaRows(1)
	ix := mock.New()
	ix.SetAnswer(strings.Repeat("ş", 600), nil)
	m, out, _ := newTestMigrator(t, src, ix, nil)

	summary, err := m.Run(context.Background(), []core.TableSpec{{Name: "sorucevap", Fields: qaFields}})
	require.NoError(t, err)

	assert.Equal(t, []string{"hybrid:vergi mükellefi kimdir"}, ix.Queries())
	assert.Len(t, summary.SmokeAnswer, 1200, "summary keeps the full answer")
	assert.Contains(t, out.String(), "📝 Query: vergi mükellefi kimdir")
	assert.Contains(t, out.String(), "Response: "+strings.Repeat("ş", 500)+"...\n")
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short answer", "Mükellef", 500, "Mükellef..."},
		{"exact length", "şşş", 3, "şşş..."},
		{"cut on runes", "şşşş", 2, "şş..."},
		{"no limit", "Mükellef", 0, "Mükellef..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preview(tt.in, tt.n))
		})
	}
}

func TestMigrator_SmokeQueryFailure(t *testing.T) {
	src := newMemSource()
	ix := mock.New()
	ix.SetAnswer("", errors.New("query failed: status 500"))
	m, out, _ := newTestMigrator(t, src, ix, nil)

	summary, err := m.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Error(t, summary.SmokeErr)
	assert.Contains(t, out.String(), "❌ Query failed")
}

func TestMigrator_SmokeQueryDisabled(t *testing.T) {
	ix := mock.New()
	cfg := DefaultConfig()
	cfg.SmokeQuery = ""
	m, _, _ := newTestMigrator(t, newMemSource(), ix, cfg)

	_, err := m.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ix.Queries())
}

func TestMigrator_CheckpointResume(t *testing.T) {
	repo, err := badgerstore.NewMemoryCheckpointRepository()
	require.NoError(t, err)
	defer repo.Close()

	src := newMemSource()
	src.tables["sorucevap"] = qaRows(35)
	tables := []core.TableSpec{{Name: "sorucevap", Fields: qaFields}}

	// First run is interrupted after the second full batch.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ix := mock.New()
	var out bytes.Buffer
	pacer := &countingPacer{cancelAfter: 2, cancel: cancel}
	m, err := NewMigrator(src, ix, nil, nil, &out, WithPacer(pacer), WithCheckpoints(repo))
	require.NoError(t, err)

	_, err = m.Run(ctx, tables)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, ix.Payloads(), 2)

	checkpoint, err := repo.LoadCheckpoint(context.Background(), "sorucevap")
	require.NoError(t, err)
	require.NotNil(t, checkpoint)
	assert.Equal(t, int64(20), checkpoint.Consumed)
	assert.Equal(t, int64(20), checkpoint.Indexed)
	assert.False(t, checkpoint.Done)

	// Second run resumes after the 20 consumed rows.
	resumed := mock.New()
	m2, out2, _ := newTestMigrator(t, src, resumed, nil, WithCheckpoints(repo))
	summary, err := m2.Run(context.Background(), tables)
	require.NoError(t, err)

	payloads := resumed.Payloads()
	require.Len(t, payloads, 2)
	assert.True(t, strings.HasPrefix(payloads[0], "Soru: Soru 20?"))
	res := summary.Tables[0]
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 20, res.Resumed)
	assert.Equal(t, 35, res.Counters.Indexed)
	assert.Contains(t, out2.String(), "Resuming sorucevap after 20 records")

	checkpoint, err = repo.LoadCheckpoint(context.Background(), "sorucevap")
	require.NoError(t, err)
	assert.True(t, checkpoint.Done)
	assert.Equal(t, int64(35), checkpoint.Consumed)
	assert.Equal(t, core.IDFromContent(payloads[1]), checkpoint.LastBatch)

	// Third run skips the finished table.
	again := mock.New()
	m3, _, _ := newTestMigrator(t, src, again, nil, WithCheckpoints(repo))
	summary, err = m3.Run(context.Background(), tables)
	require.NoError(t, err)
	assert.Zero(t, again.CallCount())
	assert.Equal(t, StateSkipped, summary.Tables[0].State)
	assert.Equal(t, 35, summary.Indexed)
}

func TestMigrator_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	src := newMemSource()
	rows := qaRows(20)
	rows = append(rows, core.Record{"Soru": nil})
	src.tables["sorucevap"] = rows
	ix := mock.New()
	ix.FailNext(1, http.StatusTooManyRequests)
	m, _, _ := newTestMigrator(t, src, ix, nil, WithMetrics(metrics))

	_, err = m.Run(context.Background(), []core.TableSpec{{Name: "sorucevap", Fields: qaFields}})
	require.NoError(t, err)

	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.documents.WithLabelValues("sorucevap", "indexed")))
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.documents.WithLabelValues("sorucevap", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.documents.WithLabelValues("sorucevap", "dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("sorucevap", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.tables.WithLabelValues(string(StateDone))))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.pending.WithLabelValues("sorucevap")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "metrics register once per registry")
}

func TestMigrator_SQLiteSource(t *testing.T) {
	dsn, err := source.NewSQLiteFixture(filepath.Join(t.TempDir(), "fixture.db"), "sorucevap", qaFields, qaRows(23))
	require.NoError(t, err)
	reader, err := source.Open(dsn)
	require.NoError(t, err)
	defer reader.Close()

	ix := mock.New()
	m, _, _ := newTestMigrator(t, FromReader(reader), ix, nil)

	summary, err := m.Run(context.Background(), []core.TableSpec{
		{Name: "sorucevap", Fields: qaFields, Limit: 1000},
		{Name: "missing", Fields: qaFields},
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, summary.Tables[0].State)
	assert.Equal(t, 23, summary.Tables[0].Counters.Indexed)
	assert.Equal(t, 23, summary.Tables[0].Counters.Total)
	assert.Equal(t, StateAborted, summary.Tables[1].State)
	assert.ErrorIs(t, summary.Tables[1].Err, core.ErrSourceQuery)
	assert.Len(t, ix.Payloads(), 3)
}

func TestNewMigrator_InvalidConfig(t *testing.T) {
	_, err := NewMigrator(newMemSource(), mock.New(), nil, &Config{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
