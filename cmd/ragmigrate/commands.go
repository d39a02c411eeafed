package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/ragmigrate"
	"github.com/poiesic/ragmigrate/config"
	"github.com/poiesic/ragmigrate/index/lightrag"
	"github.com/poiesic/ragmigrate/migrate"
	"github.com/poiesic/ragmigrate/source"
	"github.com/poiesic/ragmigrate/storage"
	"github.com/poiesic/ragmigrate/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func runCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := selectTables(c, cfg); err != nil {
		return err
	}

	pipeline, err := ragmigrate.NewPipeline(cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	out := c.App.ErrWriter
	if !pipeline.Indexer().IsAvailable(ctx) {
		fmt.Fprintln(out, "❌ LightRAG service is not running!")
		fmt.Fprintf(out, "Start the service at %s and try again.\n", cfg.Index.URL)
		return fmt.Errorf("index service unavailable at %s", cfg.Index.URL)
	}

	var opts []migrate.Option
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		metrics, err := migrate.NewMetrics(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		opts = append(opts, migrate.WithMetrics(metrics))

		srv := startMetricsServer(cfg.Metrics.Addr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	migrator, err := pipeline.NewMigrator(out, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Source: %s (%s)\n", source.Redact(cfg.Source.DSN), pipeline.Reader().Driver())
	fmt.Fprintf(out, "Index: %s\n", cfg.Index.URL)
	if cfg.State.Dir != "" {
		fmt.Fprintf(out, "State: %s\n", cfg.State.Dir)
	}
	fmt.Fprintln(out)

	summary, err := migrator.Run(ctx, cfg.Tables)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(out, "\n⏸  Migration interrupted after %d records\n", summary.Indexed)
			if cfg.State.Dir != "" {
				fmt.Fprintln(out, "Run again with the same --state-dir to resume.")
			}
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	for _, t := range summary.Aborted() {
		fmt.Fprintf(out, "⚠️  %s was not migrated: %v\n", t.Spec.Name, t.Err)
	}
	return nil
}

func planCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := selectTables(c, cfg); err != nil {
		return err
	}

	pipeline, err := ragmigrate.NewPipeline(cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	plans, err := pipeline.Plan(c.Context, cfg.Tables, c.Int("workers"))
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "%-24s %10s %8s %10s  %s\n", "TABLE", "ROWS", "LIMIT", "EXPECTED", "CHECKPOINT")
	total := 0
	for _, p := range plans {
		if p.Err != nil {
			fmt.Fprintf(out, "%-24s %10s %8s %10s  error: %v\n", p.Spec.Name, "-", limitString(p.Spec.Limit), "-", p.Err)
			continue
		}
		total += p.Expected
		fmt.Fprintf(out, "%-24s %10d %8s %10d  %s\n", p.Spec.Name, p.Count, limitString(p.Spec.Limit), p.Expected, checkpointString(p))
	}
	fmt.Fprintf(out, "\nTotal records to index: %d\n", total)
	return nil
}

func limitString(limit int) string {
	if limit <= 0 {
		return "-"
	}
	return fmt.Sprint(limit)
}

func checkpointString(p ragmigrate.TablePlan) string {
	switch {
	case p.Checkpoint == nil:
		return "-"
	case p.Checkpoint.Done:
		return "done"
	default:
		return fmt.Sprintf("resume at row %d", p.Checkpoint.Consumed)
	}
}

func openCheckpoints(c *cli.Context) (storage.CheckpointRepository, string, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, "", err
	}
	if cfg.State.Dir == "" {
		return nil, "", errors.New("state directory is required (--state-dir or state.dir)")
	}

	repo, err := badger.OpenCheckpointRepository(cfg.State.Dir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open state directory: %w", err)
	}
	return repo, cfg.State.Dir, nil
}

func statusCommand(c *cli.Context) error {
	repo, dir, err := openCheckpoints(c)
	if err != nil {
		return err
	}
	defer repo.Close()

	checkpoints, err := repo.ListCheckpoints(c.Context)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if len(checkpoints) == 0 {
		fmt.Fprintf(out, "No checkpoints in %s\n", dir)
		return nil
	}

	fmt.Fprintf(out, "%-24s %-8s %12s %8s %8s %8s  %-19s  %s\n",
		"TABLE", "STATE", "CONSUMED", "INDEXED", "FAILED", "DROPPED", "UPDATED", "RUN")
	for _, cp := range checkpoints {
		state := "partial"
		if cp.Done {
			state = "done"
		}
		fmt.Fprintf(out, "%-24s %-8s %12s %8d %8d %8d  %-19s  %s\n",
			cp.Table, state, fmt.Sprintf("%d/%d", cp.Consumed, cp.Total),
			cp.Indexed, cp.Failed, cp.Dropped, formatTime(cp.UpdatedAt), cp.RunID)
	}
	return nil
}

func resetCommand(c *cli.Context) error {
	tables := c.StringSlice("table")
	all := c.Bool("all")
	if all == (len(tables) > 0) {
		return errors.New("specify either --table or --all")
	}

	repo, _, err := openCheckpoints(c)
	if err != nil {
		return err
	}
	defer repo.Close()

	if all {
		checkpoints, err := repo.ListCheckpoints(c.Context)
		if err != nil {
			return err
		}
		for _, cp := range checkpoints {
			tables = append(tables, cp.Table)
		}
	}

	out := c.App.Writer
	for _, table := range tables {
		err := repo.DeleteCheckpoint(c.Context, table)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(out, "No checkpoint for %s\n", table)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
		fmt.Fprintf(out, "Reset %s\n", table)
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("query text is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	client, err := lightrag.NewClient(cfg.IndexConfig())
	if err != nil {
		return err
	}
	defer client.Close()

	if !client.IsAvailable(c.Context) {
		fmt.Fprintln(c.App.ErrWriter, "❌ LightRAG service is not running!")
		return fmt.Errorf("index service unavailable at %s", cfg.Index.URL)
	}

	answer, err := client.Query(c.Context, question, c.String("mode"))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "📝 Query: %s\n\n%s\n", question, answer)
	return nil
}

func configCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := selectTables(c, cfg); err != nil {
		return err
	}
	return config.Write(c.App.Writer, cfg)
}
