// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/ragmigrate/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ragmigrate",
		Usage: "Migrate relational records into a LightRAG index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Migrate the configured tables into the index",
				Action: runCommand,
				Flags:  append(sourceFlags(), migrationFlags()...),
			},
			{
				Name:   "plan",
				Usage:  "Show row counts and expected documents per table without indexing",
				Action: planCommand,
				Flags: append(sourceFlags(),
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of tables counted concurrently (0 = one per CPU)",
					},
				),
			},
			{
				Name:   "status",
				Usage:  "List saved table checkpoints",
				Action: statusCommand,
				Flags:  []cli.Flag{configFlag(), stateDirFlag()},
			},
			{
				Name:   "reset",
				Usage:  "Delete saved table checkpoints so the tables migrate from the start",
				Action: resetCommand,
				Flags: []cli.Flag{
					configFlag(),
					stateDirFlag(),
					&cli.StringSliceFlag{
						Name:  "table",
						Usage: "Table whose checkpoint is deleted (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Delete every checkpoint",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Send a query to the index service and print the answer",
				ArgsUsage: "<question>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					configFlag(),
					indexURLFlag(),
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Query mode (naive, local, global, hybrid); defaults to index.query_mode",
					},
				},
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration as YAML",
				Action: configCommand,
				Flags:  append(sourceFlags(), migrationFlags()...),
			},
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to a config file (yaml, json or toml); defaults to ./ragmigrate.*",
	}
}

func stateDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "state-dir",
		Usage: "Checkpoint directory; enables resumable runs",
	}
}

func indexURLFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "index-url",
		Usage: "LightRAG service base URL",
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		&cli.StringFlag{
			Name:    "source-dsn",
			Usage:   "Source database DSN (postgres://, mysql://, sqlite://)",
			EnvVars: []string{config.SourceEnv},
		},
		indexURLFlag(),
		stateDirFlag(),
		&cli.StringSliceFlag{
			Name:  "table",
			Usage: "Only process this table (repeatable)",
		},
	}
}

func migrationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Documents joined into one index submission",
		},
		&cli.IntFlag{
			Name:  "page-size",
			Usage: "Rows fetched from the source per page",
		},
		&cli.DurationFlag{
			Name:  "batch-delay",
			Usage: "Pause after every full batch",
		},
		&cli.StringFlag{
			Name:  "pacing",
			Usage: "Pacing strategy (fixed, token)",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Submission attempts per batch (1 = no retry)",
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
		},
		&cli.IntFlag{
			Name:  "max-document-chars",
			Usage: "Truncate documents longer than this (0 = no limit)",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address, e.g. :9090",
		},
		&cli.BoolFlag{
			Name:  "skip-smoke-test",
			Usage: "Do not run the test query after the migration",
		},
	}
}

// loadConfig reads the config file and environment, then applies the flags
// the user set explicitly. The --table filter is applied by selectTables.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("source-dsn") {
		cfg.Source.DSN = c.String("source-dsn")
	}
	if c.IsSet("index-url") {
		cfg.Index.URL = c.String("index-url")
	}
	if c.IsSet("state-dir") {
		cfg.State.Dir = c.String("state-dir")
	}
	if c.IsSet("batch-size") {
		cfg.Migration.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("page-size") {
		cfg.Migration.PageSize = c.Int("page-size")
	}
	if c.IsSet("batch-delay") {
		cfg.Migration.BatchDelay = c.Duration("batch-delay")
	}
	if c.IsSet("pacing") {
		cfg.Migration.Pacing = c.String("pacing")
	}
	if c.IsSet("max-retries") {
		cfg.Migration.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		cfg.Migration.RetryDelay = c.Duration("retry-delay")
	}
	if c.IsSet("max-document-chars") {
		cfg.Migration.MaxDocumentChars = c.Int("max-document-chars")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	if c.Bool("skip-smoke-test") {
		cfg.Smoke.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// selectTables narrows cfg.Tables to the --table flags, if any.
func selectTables(c *cli.Context, cfg *config.Config) error {
	if !c.IsSet("table") {
		return nil
	}
	tables, err := cfg.FilterTables(c.StringSlice("table"))
	if err != nil {
		return err
	}
	cfg.Tables = tables
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
