package migrate

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/ragmigrate/core"
)

// ProgressTracker tracks and reports the progress of one table migration.
type ProgressTracker struct {
	writer    io.Writer
	counters  core.ProgressCounters
	startTime time.Time
	started   bool
	mu        sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: number of records the table is expected to yield
func NewProgressTracker(writer io.Writer, table string, total int) *ProgressTracker {
	return &ProgressTracker{
		writer:   writer,
		counters: core.ProgressCounters{Table: table, Total: total},
	}
}

// Start begins tracking progress. Counters carried over from a previous run
// can be passed in resumed.
func (p *ProgressTracker) Start(resumed core.ProgressCounters) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.counters.Indexed = resumed.Indexed
	p.counters.Failed = resumed.Failed
	p.counters.Dropped = resumed.Dropped
}

// Indexed records an accepted batch of n documents.
func (p *ProgressTracker) Indexed(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.counters.Indexed += n
	fmt.Fprintf(p.writer, "✅ Indexed %d/%d records\n", p.counters.Indexed, p.counters.Total)
}

// Failed records a rejected batch of n documents.
func (p *ProgressTracker) Failed(n int, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.counters.Failed += n
	fmt.Fprintf(p.writer, "❌ Failed to index batch: %v\n", cause)
}

// Dropped records a record that assembled to an empty document. Nothing is printed.
func (p *ProgressTracker) Dropped() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		p.counters.Dropped++
	}
}

// Observe raises Total when the source yielded more rows than were counted up front.
func (p *ProgressTracker) Observe(consumed int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if consumed > p.counters.Total {
		p.counters.Total = consumed
	}
}

// Counters returns a snapshot of the current counters.
func (p *ProgressTracker) Counters() core.ProgressCounters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// Finish prints the table summary line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.counters.Indexed) / elapsed.Seconds()
	}
	fmt.Fprintf(p.writer, "Completed %s: %d/%d indexed, %d failed, %d dropped in %v (%.1f records/s)\n",
		p.counters.Table, p.counters.Indexed, p.counters.Total, p.counters.Failed, p.counters.Dropped,
		elapsed.Round(time.Millisecond), rate)
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}

	return time.Since(p.startTime)
}
