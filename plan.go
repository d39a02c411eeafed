package ragmigrate

import (
	"context"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragmigrate/core"
)

// TablePlan is the dry-run view of one table.
type TablePlan struct {
	Spec       core.TableSpec
	Count      int // rows in the table
	Expected   int // rows a migration would read
	Checkpoint *core.Checkpoint
	Err        error
}

// Plan counts every table without reading rows or contacting the index.
// Tables are counted concurrently on a pool of workers goroutines
// (<= 0 picks one per CPU). Per-table failures are reported in the result.
func (p *Pipeline) Plan(ctx context.Context, tables []core.TableSpec, workers int) ([]TablePlan, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = max(1, min(workers, len(tables)))

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	results := make([]TablePlan, len(tables))
	var wg sync.WaitGroup
	for i, spec := range tables {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i] = p.planTable(ctx, spec)
		})
		if err != nil {
			wg.Done()
			results[i] = TablePlan{Spec: spec, Err: err}
		}
	}
	wg.Wait()

	return results, ctx.Err()
}

func (p *Pipeline) planTable(ctx context.Context, spec core.TableSpec) TablePlan {
	plan := TablePlan{Spec: spec}
	if err := core.ValidateTableSpec(&spec); err != nil {
		plan.Err = err
		return plan
	}

	count, err := p.reader.Count(ctx, spec.Name)
	if err != nil {
		plan.Err = err
		return plan
	}
	plan.Count = count
	plan.Expected = spec.Expected(count)

	if p.checkpoints != nil {
		checkpoint, err := p.checkpoints.LoadCheckpoint(ctx, spec.Name)
		if err != nil {
			plan.Err = err
			return plan
		}
		plan.Checkpoint = checkpoint
	}
	return plan
}
