package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/poiesic/ragmigrate/assemble"
	"github.com/poiesic/ragmigrate/core"
	"github.com/poiesic/ragmigrate/index"
	"github.com/poiesic/ragmigrate/storage"
)

// TableState is the lifecycle state of one table migration.
type TableState string

const (
	StateInit     TableState = "INIT"
	StateReading  TableState = "READING"
	StateDraining TableState = "DRAINING"
	StateDone     TableState = "DONE"
	StateAborted  TableState = "ABORTED"
	StateSkipped  TableState = "SKIPPED"
)

// TableResult is the outcome of one table migration.
type TableResult struct {
	Spec     core.TableSpec
	State    TableState
	Counters core.ProgressCounters
	Resumed  int // rows skipped because a checkpoint covered them
	Elapsed  time.Duration
	Err      error
}

// Summary is the outcome of a migration run.
type Summary struct {
	RunID   string
	Tables  []TableResult
	Indexed int
	Failed  int
	Dropped int
	Elapsed time.Duration

	// SmokeAnswer holds the smoke query response when it ran and succeeded.
	SmokeAnswer string
	SmokeErr    error
}

// Aborted returns the tables that could not be migrated.
func (s *Summary) Aborted() []TableResult {
	var out []TableResult
	for _, t := range s.Tables {
		if t.State == StateAborted {
			out = append(out, t)
		}
	}
	return out
}

func (s *Summary) add(res TableResult) {
	s.Tables = append(s.Tables, res)
	s.Indexed += res.Counters.Indexed
	s.Failed += res.Counters.Failed
	s.Dropped += res.Counters.Dropped
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithCheckpoints enables resumable progress backed by repo.
func WithCheckpoints(repo storage.CheckpointRepository) Option {
	return func(m *Migrator) {
		m.checkpoints = repo
	}
}

// WithMetrics exports counters through metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Migrator) {
		m.metrics = metrics
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) {
		m.logger = logger
	}
}

// WithPacer replaces the pacer built from the config.
func WithPacer(pacer Pacer) Option {
	return func(m *Migrator) {
		m.pacer = pacer
	}
}

// Migrator moves tables from a Source into an index.Indexer.
type Migrator struct {
	src         Source
	ix          index.Indexer
	asm         *assemble.Assembler
	config      *Config
	out         io.Writer
	pacer       Pacer
	checkpoints storage.CheckpointRepository
	metrics     *Metrics
	logger      *slog.Logger
}

// NewMigrator creates a new migrator.
// out: where to write progress output (typically os.Stderr)
func NewMigrator(src Source, ix index.Indexer, asm *assemble.Assembler, config *Config, out io.Writer, opts ...Option) (*Migrator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if asm == nil {
		asm = assemble.New(nil)
	}
	if out == nil {
		out = io.Discard
	}

	m := &Migrator{
		src:    src,
		ix:     ix,
		asm:    asm,
		config: config,
		out:    out,
		logger: slog.Default().With("component", "migrator"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pacer == nil {
		m.pacer = NewPacer(config.Pacing, config.BatchDelay)
	}
	return m, nil
}

// Run migrates tables sequentially, then issues the smoke query.
// Table-level failures are recorded in the Summary and do not stop the run.
// Errors from the source while paging, checkpoint storage failures and
// context cancellation end the run and are returned with the partial Summary.
func (m *Migrator) Run(ctx context.Context, tables []core.TableSpec) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	logger := m.logger.With("run", summary.RunID)

	fmt.Fprintf(m.out, "🚀 Migrating %d tables (run %s)\n", len(tables), summary.RunID)
	logger.Info("migration started", "tables", len(tables), "batchSize", m.config.BatchSize, "pacing", m.config.Pacing)

	for _, spec := range tables {
		res, err := m.migrateTable(ctx, summary.RunID, spec)
		summary.add(res)
		m.metrics.observeTable(res.State)
		if err != nil {
			summary.Elapsed = time.Since(start)
			logger.Error("migration stopped", "table", spec.Name, "error", err)
			return summary, err
		}
	}

	summary.Elapsed = time.Since(start)
	fmt.Fprintf(m.out, "\n✅ Migration complete!\n")
	fmt.Fprintf(m.out, "Total records indexed: %d\n", summary.Indexed)
	for _, t := range summary.Tables {
		line := fmt.Sprintf("  %-20s %-8s %d/%d indexed, %d failed, %d dropped",
			t.Spec.Name, t.State, t.Counters.Indexed, t.Counters.Total, t.Counters.Failed, t.Counters.Dropped)
		if t.Err != nil {
			line += fmt.Sprintf(" (%v)", t.Err)
		}
		fmt.Fprintln(m.out, line)
	}
	logger.Info("migration complete", "indexed", summary.Indexed, "failed", summary.Failed,
		"dropped", summary.Dropped, "aborted", len(summary.Aborted()), "elapsed", summary.Elapsed)

	m.smokeTest(ctx, summary)
	return summary, nil
}

func (m *Migrator) smokeTest(ctx context.Context, summary *Summary) {
	if m.config.SmokeQuery == "" {
		return
	}

	fmt.Fprintf(m.out, "\n🔍 Testing query...\n")
	if !m.ix.IsAvailable(ctx) {
		summary.SmokeErr = ErrIndexUnavailable
		fmt.Fprintf(m.out, "❌ Query skipped: %v\n", ErrIndexUnavailable)
		return
	}

	answer, err := m.ix.Query(ctx, m.config.SmokeQuery, m.config.SmokeMode)
	if err != nil {
		summary.SmokeErr = err
		m.logger.Warn("smoke query failed", "query", m.config.SmokeQuery, "error", err)
		fmt.Fprintf(m.out, "❌ Query failed: %v\n", err)
		return
	}

	summary.SmokeAnswer = answer
	fmt.Fprintf(m.out, "\n📝 Query: %s\n", m.config.SmokeQuery)
	fmt.Fprintf(m.out, "Response: %s\n", preview(answer, m.config.PreviewChars))
}

// migrateTable runs one table through INIT, READING, DRAINING and DONE.
// A returned error is fatal to the whole run; table-level failures are
// reported through the result only.
func (m *Migrator) migrateTable(ctx context.Context, runID string, spec core.TableSpec) (TableResult, error) {
	start := time.Now()
	logger := m.logger.With("run", runID, "table", spec.Name)
	res := TableResult{
		Spec:     spec,
		State:    StateInit,
		Counters: core.ProgressCounters{Table: spec.Name},
	}
	abort := func(err error) (TableResult, error) {
		res.State = StateAborted
		res.Err = err
		res.Elapsed = time.Since(start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res, err
	}

	fmt.Fprintf(m.out, "\n📊 Migrating %s...\n", spec.Name)

	if err := core.ValidateTableSpec(&spec); err != nil {
		logger.Warn("invalid table spec", "error", err)
		fmt.Fprintf(m.out, "❌ Skipping %s: %v\n", spec.Name, err)
		return abort(err)
	}

	checkpoint, err := m.loadCheckpoint(ctx, spec.Name)
	if err != nil {
		res.Err = err
		return res, err
	}
	if checkpoint != nil && checkpoint.Done {
		res.State = StateSkipped
		res.Counters = countersFromCheckpoint(checkpoint)
		fmt.Fprintf(m.out, "⏭️  %s already migrated (%d/%d indexed), skipping\n",
			spec.Name, checkpoint.Indexed, checkpoint.Total)
		logger.Info("table skipped", "reason", "checkpoint done", "indexed", checkpoint.Indexed)
		return res, nil
	}

	if !m.ix.IsAvailable(ctx) {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res, err
		}
		logger.Warn("index service unavailable, table aborted")
		fmt.Fprintf(m.out, "❌ Index service is not running, skipping %s\n", spec.Name)
		return abort(fmt.Errorf("%w: %w", core.ErrConnection, ErrIndexUnavailable))
	}

	count, err := m.src.Count(ctx, spec.Name)
	if err != nil {
		logger.Warn("count failed, table aborted", "error", err)
		fmt.Fprintf(m.out, "❌ Cannot read %s: %v\n", spec.Name, err)
		return abort(err)
	}
	total := spec.Expected(count)
	res.Counters.Total = total
	if spec.Limit > 0 {
		fmt.Fprintf(m.out, "Total records: %d (limit %d)\n", count, spec.Limit)
	} else {
		fmt.Fprintf(m.out, "Total records: %d\n", count)
	}

	cursor, err := m.src.OpenCursor(ctx, spec)
	if err != nil {
		logger.Warn("open cursor failed, table aborted", "error", err)
		fmt.Fprintf(m.out, "❌ Cannot read %s: %v\n", spec.Name, err)
		return abort(err)
	}
	defer cursor.Close()

	tracker := NewProgressTracker(m.out, spec.Name, total)
	consumed := 0
	var resumed core.ProgressCounters
	if checkpoint != nil && checkpoint.Consumed > 0 {
		skipped, err := cursor.Skip(ctx, int(checkpoint.Consumed))
		if err != nil {
			res.Err = err
			return res, fmt.Errorf("resume %s: %w", spec.Name, err)
		}
		consumed = skipped
		res.Resumed = skipped
		resumed = countersFromCheckpoint(checkpoint)
		fmt.Fprintf(m.out, "↪️  Resuming %s after %d records\n", spec.Name, skipped)
		logger.Info("resuming table", "skipped", skipped, "indexed", checkpoint.Indexed)
	}
	tracker.Start(resumed)

	res.State = StateReading
	logger.Debug("table state", "state", res.State, "total", total)

	acc := NewAccumulator(m.config.BatchSize)
	var last core.ID
	if checkpoint != nil {
		last = checkpoint.LastBatch
	}
	flush := func(payload core.Payload) error {
		if err := m.submit(ctx, logger, spec.Name, payload, tracker); err != nil {
			return err
		}
		last = payload.Fingerprint()
		return m.saveCheckpoint(ctx, runID, spec.Name, consumed, false, last, tracker)
	}

	iter := NewPageIterator(cursor, m.config.PageSize)
	err = iter.ForEach(ctx, func(page []core.Record) error {
		for _, record := range page {
			consumed++
			doc := m.asm.Assemble(record, spec.Fields)
			if doc == "" {
				tracker.Dropped()
				m.metrics.observeDropped(spec.Name)
				continue
			}
			if err := acc.Add(doc); err != nil {
				return err
			}
			if !acc.IsFull() {
				continue
			}
			payload, _ := acc.Flush()
			if err := flush(payload); err != nil {
				return err
			}
			if err := m.pacer.Wait(ctx); err != nil {
				return err
			}
		}
		tracker.Observe(consumed)
		m.metrics.observePending(spec.Name, total-consumed)
		return nil
	})
	if err != nil {
		res.State = StateAborted
		res.Counters = tracker.Counters()
		res.Err = err
		res.Elapsed = time.Since(start)
		return res, fmt.Errorf("migrate %s: %w", spec.Name, err)
	}

	res.State = StateDraining
	logger.Debug("table state", "state", res.State, "pending", acc.Len())
	if payload, ok := acc.Remainder(); ok {
		if err := m.submit(ctx, logger, spec.Name, payload, tracker); err != nil {
			res.Counters = tracker.Counters()
			res.Err = err
			return res, err
		}
		last = payload.Fingerprint()
	}
	if err := m.saveCheckpoint(ctx, runID, spec.Name, consumed, true, last, tracker); err != nil {
		res.Err = err
		return res, err
	}

	res.State = StateDone
	tracker.Finish()
	res.Counters = tracker.Counters()
	res.Elapsed = time.Since(start)
	logger.Info("table migrated", "indexed", res.Counters.Indexed, "total", res.Counters.Total,
		"failed", res.Counters.Failed, "dropped", res.Counters.Dropped, "elapsed", res.Elapsed)
	return res, nil
}

// submit sends one payload. Rejections are counted and swallowed; only
// context cancellation is returned.
func (m *Migrator) submit(ctx context.Context, logger *slog.Logger, table string, payload core.Payload, tracker *ProgressTracker) error {
	start := time.Now()
	backoff := Backoff{MaxAttempts: m.config.MaxRetries, BaseDelay: m.config.RetryDelay}
	err := RetryWithBackoff(ctx, backoff, isTransient, func(attempt int) error {
		return m.ix.Submit(ctx, payload.Text)
	})
	elapsed := time.Since(start)

	if err == nil {
		tracker.Indexed(payload.Documents)
		m.metrics.observeBatch(table, payload.Documents, elapsed, "")
		logger.Debug("batch indexed", "documents", payload.Documents, "fingerprint", payload.Fingerprint(), "elapsed", elapsed)
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	reason := "transport"
	status := 0
	var submitErr *index.SubmitError
	if errors.As(err, &submitErr) {
		reason = submitErr.Reason()
		status = submitErr.StatusCode
	}
	tracker.Failed(payload.Documents, err)
	m.metrics.observeBatch(table, payload.Documents, elapsed, reason)
	logger.Warn("batch submission failed",
		"documents", payload.Documents,
		"fingerprint", payload.Fingerprint(),
		"status", status,
		"reason", reason,
		"error", err)
	return nil
}

// isTransient reports whether a failed submission is worth retrying.
// Client errors other than rate limiting will not succeed on a retry.
func isTransient(err error) bool {
	var submitErr *index.SubmitError
	if errors.As(err, &submitErr) {
		return submitErr.Reason() != "rejected"
	}
	return true
}

func (m *Migrator) loadCheckpoint(ctx context.Context, table string) (*core.Checkpoint, error) {
	if m.checkpoints == nil {
		return nil, nil
	}
	checkpoint, err := m.checkpoints.LoadCheckpoint(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for %s: %w", table, err)
	}
	return checkpoint, nil
}

func (m *Migrator) saveCheckpoint(ctx context.Context, runID, table string, consumed int, done bool, last core.ID, tracker *ProgressTracker) error {
	if m.checkpoints == nil {
		return nil
	}
	counters := tracker.Counters()
	checkpoint := &core.Checkpoint{
		Table:     table,
		RunID:     runID,
		Consumed:  int64(consumed),
		Indexed:   int64(counters.Indexed),
		Failed:    int64(counters.Failed),
		Dropped:   int64(counters.Dropped),
		Total:     int64(counters.Total),
		Done:      done,
		LastBatch: last,
	}
	if err := m.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
		return fmt.Errorf("save checkpoint for %s: %w", table, err)
	}
	return nil
}

func countersFromCheckpoint(c *core.Checkpoint) core.ProgressCounters {
	return core.ProgressCounters{
		Table:   c.Table,
		Total:   int(c.Total),
		Indexed: int(c.Indexed),
		Failed:  int(c.Failed),
		Dropped: int(c.Dropped),
	}
}

// preview cuts s to at most n runes and appends "...". A non-positive n
// disables the cut.
func preview(s string, n int) string {
	if n > 0 && utf8.RuneCountInString(s) > n {
		s = string([]rune(s)[:n])
	}
	return s + "..."
}
