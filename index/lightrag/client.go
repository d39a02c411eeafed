package lightrag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/poiesic/ragmigrate/core"
	"github.com/poiesic/ragmigrate/index"
)

const (
	healthPath = "/"
	indexPath  = "/index"
	queryPath  = "/query"

	// maxErrorBody bounds how much of an error response is kept for logs.
	maxErrorBody = 512
)

// Client implements index.Indexer against a LightRAG HTTP service.
type Client struct {
	config *index.Config
	http   *http.Client
	logger *slog.Logger
}

var _ index.Indexer = (*Client)(nil)

type indexRequest struct {
	Text string `json:"text"`
}

type queryRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

type queryResponse struct {
	Response string `json:"response"`
}

// NewClient creates a LightRAG client.
// The config is validated and normalized before use.
//
// Returns index.Indexer interface (not *Client) so callers depend on the
// contract rather than the transport.
func NewClient(config *index.Config) (index.Indexer, error) {
	return newClient(config, nil)
}

// NewClientWithHTTP is like NewClient but uses the given HTTP client,
// whose Timeout is left untouched.
func NewClientWithHTTP(config *index.Config, httpClient *http.Client) (index.Indexer, error) {
	return newClient(config, httpClient)
}

func newClient(config *index.Config, httpClient *http.Client) (*Client, error) {
	if config == nil {
		config = index.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config: config,
		http:   httpClient,
		logger: slog.Default().With("component", "lightrag-client", "url", config.BaseURL),
	}, nil
}

// IsAvailable reports whether GET / answers 200.
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+healthPath, nil)
	if err != nil {
		c.logger.Debug("health request build failed", "error", err)
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("health check failed", "error", err)
		return false
	}
	defer drainAndClose(resp.Body)

	return resp.StatusCode == http.StatusOK
}

// Submit posts text to /index. Any 2xx response counts as accepted.
func (c *Client) Submit(ctx context.Context, text string) error {
	resp, err := c.postJSON(ctx, indexPath, indexRequest{Text: text})
	if err != nil {
		return &index.SubmitError{Err: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode/100 != 2 {
		return &index.SubmitError{
			StatusCode: resp.StatusCode,
			Body:       readExcerpt(resp.Body),
		}
	}
	return nil
}

// Query posts to /query and returns the "response" field of the answer.
// An empty mode uses the configured default.
func (c *Client) Query(ctx context.Context, query, mode string) (string, error) {
	if mode == "" {
		mode = c.config.QueryMode
	}

	resp, err := c.postJSON(ctx, queryPath, queryRequest{Query: query, Mode: mode})
	if err != nil {
		return "", fmt.Errorf("%w: query: %w", core.ErrConnection, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrQueryFailed, resp.StatusCode, readExcerpt(resp.Body))
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrQueryFailed, err)
	}
	return out.Response, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.logger.Debug("closing lightrag client")
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.http.Do(req)
}

func readExcerpt(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	body.Close()
}
