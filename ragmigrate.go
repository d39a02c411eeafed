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


package ragmigrate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/ragmigrate/assemble"
	"github.com/poiesic/ragmigrate/config"
	"github.com/poiesic/ragmigrate/index"
	"github.com/poiesic/ragmigrate/index/lightrag"
	"github.com/poiesic/ragmigrate/migrate"
	"github.com/poiesic/ragmigrate/source"
	"github.com/poiesic/ragmigrate/storage"
	"github.com/poiesic/ragmigrate/storage/badger"
)

// ErrMissingSource is returned when no source DSN is configured.
var ErrMissingSource = errors.New("no source DSN configured (set SOURCE_DB or source.dsn)")

// Pipeline owns the resources of a migration: the source reader, the index
// client and, when a state directory is configured, the checkpoint store.
type Pipeline struct {
	config      *config.Config
	reader      *source.Reader
	indexer     index.Indexer
	assembler   *assemble.Assembler
	checkpoints storage.CheckpointRepository
	logger      *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	indexer     index.Indexer
	checkpoints storage.CheckpointRepository
}

// WithIndexer uses ix instead of a LightRAG client built from the config.
// The pipeline takes ownership and closes it.
func WithIndexer(ix index.Indexer) PipelineOption {
	return func(o *pipelineOptions) {
		o.indexer = ix
	}
}

// WithCheckpointRepository uses repo instead of opening the configured state directory.
// The pipeline takes ownership and closes it.
func WithCheckpointRepository(repo storage.CheckpointRepository) PipelineOption {
	return func(o *pipelineOptions) {
		o.checkpoints = repo
	}
}

// NewPipeline validates cfg and opens everything a migration needs.
// Nothing touches the network until the migration runs.
func NewPipeline(cfg *config.Config, opts ...PipelineOption) (*Pipeline, error) {
	options := &pipelineOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Source.DSN == "" {
		return nil, ErrMissingSource
	}

	schema, err := cfg.Schema()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("component", "pipeline")

	reader, err := source.Open(cfg.Source.DSN)
	if err != nil {
		return nil, err
	}

	indexer := options.indexer
	if indexer == nil {
		indexer, err = lightrag.NewClient(cfg.IndexConfig())
		if err != nil {
			reader.Close()
			return nil, err
		}
	}

	checkpoints := options.checkpoints
	if checkpoints == nil && cfg.State.Dir != "" {
		checkpoints, err = badger.OpenCheckpointRepository(cfg.State.Dir)
		if err != nil {
			indexer.Close()
			reader.Close()
			return nil, fmt.Errorf("open state dir %s: %w", cfg.State.Dir, err)
		}
		logger.Info("checkpoints enabled", "dir", cfg.State.Dir)
	}

	assembler := assemble.New(schema,
		assemble.WithMaxChars(cfg.Migration.MaxDocumentChars),
		assemble.WithDedupe(cfg.Migration.DedupeFields),
	)

	return &Pipeline{
		config:      cfg,
		reader:      reader,
		indexer:     indexer,
		assembler:   assembler,
		checkpoints: checkpoints,
		logger:      logger,
	}, nil
}

// Close releases the checkpoint store, the index client and the source.
func (p *Pipeline) Close() error {
	var errs []error
	if p.checkpoints != nil {
		if err := p.checkpoints.Close(); err != nil {
			p.logger.Error("error closing checkpoint store", "err", err)
			errs = append(errs, err)
		}
	}
	if err := p.indexer.Close(); err != nil {
		p.logger.Error("error closing index client", "err", err)
		errs = append(errs, err)
	}
	if err := p.reader.Close(); err != nil {
		p.logger.Error("error closing source", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Reader returns the source reader.
func (p *Pipeline) Reader() *source.Reader {
	return p.reader
}

// Indexer returns the index client.
func (p *Pipeline) Indexer() index.Indexer {
	return p.indexer
}

// Checkpoints returns the checkpoint store, or nil when checkpoints are disabled.
func (p *Pipeline) Checkpoints() storage.CheckpointRepository {
	return p.checkpoints
}

// NewMigrator builds a migrator over the pipeline's resources.
// Progress lines are written to out.
func (p *Pipeline) NewMigrator(out io.Writer, opts ...migrate.Option) (*migrate.Migrator, error) {
	if p.checkpoints != nil {
		opts = append([]migrate.Option{migrate.WithCheckpoints(p.checkpoints)}, opts...)
	}
	return migrate.NewMigrator(migrate.FromReader(p.reader), p.indexer, p.assembler, p.config.MigrateConfig(), out, opts...)
}
