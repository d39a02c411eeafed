// Package config loads ragmigrate settings from a file, the environment and
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/poiesic/ragmigrate/assemble"
	"github.com/poiesic/ragmigrate/core"
	"github.com/poiesic/ragmigrate/index"
	"github.com/poiesic/ragmigrate/migrate"
	"github.com/poiesic/ragmigrate/source"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. RAGMIGRATE_INDEX_URL.
const EnvPrefix = "RAGMIGRATE"

// SourceEnv is the legacy environment variable holding the source DSN.
const SourceEnv = "SOURCE_DB"

// Config is the full ragmigrate configuration.
type Config struct {
	Source    SourceConfig     `mapstructure:"source" yaml:"source"`
	Index     IndexConfig      `mapstructure:"index" yaml:"index"`
	Migration MigrationConfig  `mapstructure:"migration" yaml:"migration"`
	Smoke     SmokeConfig      `mapstructure:"smoke" yaml:"smoke"`
	State     StateConfig      `mapstructure:"state" yaml:"state"`
	Metrics   MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Tables    []core.TableSpec `mapstructure:"tables" yaml:"tables"`
	Rules     []assemble.Rule  `mapstructure:"rules" yaml:"rules"`
}

// SourceConfig locates the relational source.
type SourceConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// IndexConfig points at the LightRAG service.
type IndexConfig struct {
	URL       string        `mapstructure:"url" yaml:"url"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	QueryMode string        `mapstructure:"query_mode" yaml:"query_mode"`
}

// MigrationConfig tunes batching, pacing, retries and document assembly.
type MigrationConfig struct {
	BatchSize        int           `mapstructure:"batch_size" yaml:"batch_size"`
	PageSize         int           `mapstructure:"page_size" yaml:"page_size"`
	BatchDelay       time.Duration `mapstructure:"batch_delay" yaml:"batch_delay"`
	Pacing           string        `mapstructure:"pacing" yaml:"pacing"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	MaxDocumentChars int           `mapstructure:"max_document_chars" yaml:"max_document_chars"`
	DedupeFields     bool          `mapstructure:"dedupe_fields" yaml:"dedupe_fields"`
}

// SmokeConfig controls the test query issued after a run.
type SmokeConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Query        string `mapstructure:"query" yaml:"query"`
	Mode         string `mapstructure:"mode" yaml:"mode"`
	PreviewChars int    `mapstructure:"preview_chars" yaml:"preview_chars"`
}

// StateConfig locates the checkpoint store. An empty Dir disables checkpoints.
type StateConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// MetricsConfig sets the listen address of the /metrics endpoint. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DefaultTables returns the tables of the tax-law corpus migration.
func DefaultTables() []core.TableSpec {
	decision := []string{"Konusu", "Ozeti", "Icerik", "IlgiliKanun", "Daire"}
	return []core.TableSpec{
		{Name: "sorucevap", Fields: []string{"Soru", "Cevap", "IlgiliKanun", "Donemi"}, Limit: 1000},
		{Name: "makaleler", Fields: []string{"Baslik", "Icerik", "Yazar", "IlgiliKanun"}, Limit: 200},
		{Name: "danistaykararlari", Fields: decision, Limit: 200},
		{Name: "ozelgeler", Fields: append([]string(nil), decision...), Limit: 200},
	}
}

func setDefaults(v *viper.Viper) {
	idx := index.DefaultConfig()
	mig := migrate.DefaultConfig()

	v.SetDefault("source.dsn", "")
	v.SetDefault("index.url", idx.BaseURL)
	v.SetDefault("index.timeout", idx.Timeout)
	v.SetDefault("index.query_mode", idx.QueryMode)
	v.SetDefault("migration.batch_size", mig.BatchSize)
	v.SetDefault("migration.page_size", mig.PageSize)
	v.SetDefault("migration.batch_delay", mig.BatchDelay)
	v.SetDefault("migration.pacing", string(mig.Pacing))
	v.SetDefault("migration.max_retries", mig.MaxRetries)
	v.SetDefault("migration.retry_delay", mig.RetryDelay)
	v.SetDefault("migration.max_document_chars", 0)
	v.SetDefault("migration.dedupe_fields", false)
	v.SetDefault("smoke.enabled", true)
	v.SetDefault("smoke.query", mig.SmokeQuery)
	v.SetDefault("smoke.mode", mig.SmokeMode)
	v.SetDefault("smoke.preview_chars", mig.PreviewChars)
	v.SetDefault("state.dir", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("tables", DefaultTables())
	v.SetDefault("rules", assemble.DefaultRules())
}

// Load reads the configuration. An empty path looks for an optional
// ragmigrate.{yaml,json,toml} in the working directory; a missing file then
// falls back to defaults. Environment variables (RAGMIGRATE_*, SOURCE_DB)
// override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("source.dsn", EnvPrefix+"_SOURCE_DSN", SourceEnv); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("ragmigrate")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	idx := index.DefaultConfig()
	mig := migrate.DefaultConfig()
	return &Config{
		Index: IndexConfig{URL: idx.BaseURL, Timeout: idx.Timeout, QueryMode: idx.QueryMode},
		Migration: MigrationConfig{
			BatchSize:  mig.BatchSize,
			PageSize:   mig.PageSize,
			BatchDelay: mig.BatchDelay,
			Pacing:     string(mig.Pacing),
			MaxRetries: mig.MaxRetries,
			RetryDelay: mig.RetryDelay,
		},
		Smoke:  SmokeConfig{Enabled: true, Query: mig.SmokeQuery, Mode: mig.SmokeMode, PreviewChars: mig.PreviewChars},
		Tables: DefaultTables(),
		Rules:  assemble.DefaultRules(),
	}
}

// Validate checks everything a migration run needs except the source DSN,
// which only commands touching the source require.
func (c *Config) Validate() error {
	if err := c.IndexConfig().Validate(); err != nil {
		return err
	}
	if err := c.MigrateConfig().Validate(); err != nil {
		return err
	}
	if c.Migration.MaxDocumentChars < 0 {
		return fmt.Errorf("config: max_document_chars must not be negative")
	}
	if len(c.Tables) == 0 {
		return fmt.Errorf("config: no tables configured")
	}
	seen := make(map[string]bool, len(c.Tables))
	for i := range c.Tables {
		if err := core.ValidateTableSpec(&c.Tables[i]); err != nil {
			return fmt.Errorf("config: table %d: %w", i, err)
		}
		if seen[c.Tables[i].Name] {
			return fmt.Errorf("config: table %q listed twice", c.Tables[i].Name)
		}
		seen[c.Tables[i].Name] = true
	}
	if _, err := c.Schema(); err != nil {
		return err
	}
	return nil
}

// IndexConfig returns the index client configuration.
func (c *Config) IndexConfig() *index.Config {
	return index.NewConfig(
		index.WithBaseURL(c.Index.URL),
		index.WithTimeout(c.Index.Timeout),
		index.WithQueryMode(c.Index.QueryMode),
	)
}

// MigrateConfig returns the migrator configuration.
func (c *Config) MigrateConfig() *migrate.Config {
	mc := &migrate.Config{
		BatchSize:    c.Migration.BatchSize,
		PageSize:     c.Migration.PageSize,
		BatchDelay:   c.Migration.BatchDelay,
		Pacing:       migrate.Pacing(strings.ToLower(c.Migration.Pacing)),
		MaxRetries:   c.Migration.MaxRetries,
		RetryDelay:   c.Migration.RetryDelay,
		SmokeQuery:   c.Smoke.Query,
		SmokeMode:    c.Smoke.Mode,
		PreviewChars: c.Smoke.PreviewChars,
	}
	if !c.Smoke.Enabled {
		mc.SmokeQuery = ""
	}
	return mc
}

// Schema builds the field labeling schema from the configured rules.
func (c *Config) Schema() (*assemble.Schema, error) {
	return assemble.NewSchema(c.Rules)
}

// FilterTables returns the configured tables named in names, in configured
// order. An empty names keeps every table.
func (c *Config) FilterTables(names []string) ([]core.TableSpec, error) {
	if len(names) == 0 {
		return c.Tables, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []core.TableSpec
	for _, t := range c.Tables {
		if wanted[t.Name] {
			out = append(out, t)
			delete(wanted, t.Name)
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for _, n := range names {
			if wanted[n] {
				missing = append(missing, n)
			}
		}
		return nil, fmt.Errorf("config: unknown tables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Write dumps the configuration as YAML with the source DSN redacted.
func Write(w io.Writer, c *Config) error {
	out := *c
	if out.Source.DSN != "" {
		out.Source.DSN = source.Redact(out.Source.DSN)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return err
	}
	return enc.Close()
}
