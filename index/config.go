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


package index

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config holds configuration for the index service client.
type Config struct {
	// BaseURL is the root URL of the index service.
	// Example: "http://localhost:8001"
	BaseURL string

	// Timeout bounds each HTTP request. Indexing a payload builds graph
	// entries server side and can take minutes.
	// Default: 5m
	Timeout time.Duration

	// QueryMode is the retrieval mode used when a query does not name one.
	// Example: "local", "global", "hybrid"
	QueryMode string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBaseURL sets the index service base URL.
func WithBaseURL(baseURL string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = baseURL
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithQueryMode sets the default retrieval mode for queries.
func WithQueryMode(mode string) ConfigOption {
	return func(c *Config) {
		c.QueryMode = mode
	}
}

// DefaultConfig returns a Config pointing at a local LightRAG service.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "http://localhost:8001",
		Timeout:   5 * time.Minute,
		QueryMode: "hybrid",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithBaseURL("http://rag.internal:8001"),
//	    WithTimeout(time.Minute),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// Trailing slashes are removed from BaseURL so endpoint paths join cleanly.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.QueryMode = strings.ToLower(strings.TrimSpace(c.QueryMode))
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.BaseURL == "" {
		return errors.New("index config: BaseURL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("index config: BaseURL must be an absolute http(s) URL")
	}
	if c.Timeout <= 0 {
		return errors.New("index config: Timeout must be positive")
	}
	if c.QueryMode == "" {
		return errors.New("index config: QueryMode is required")
	}
	return nil
}
