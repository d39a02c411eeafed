package index

import (
	"errors"
	"testing"
	"time"

	"github.com/poiesic/ragmigrate/core"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:8001", cfg.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Equal(t, "hybrid", cfg.QueryMode)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(
		WithBaseURL("https://rag.example.com/api/"),
		WithTimeout(30*time.Second),
		WithQueryMode(" Local "),
	)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "https://rag.example.com/api", cfg.BaseURL, "trailing slash removed")
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "local", cfg.QueryMode)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts []ConfigOption
	}{
		{"empty url", []ConfigOption{WithBaseURL("")}},
		{"relative url", []ConfigOption{WithBaseURL("localhost:8001")}},
		{"unsupported scheme", []ConfigOption{WithBaseURL("ftp://host")}},
		{"zero timeout", []ConfigOption{WithTimeout(0)}},
		{"empty mode", []ConfigOption{WithQueryMode("  ")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, NewConfig(tt.opts...).Validate())
		})
	}
}

func TestSubmitError(t *testing.T) {
	cause := errors.New("connection refused")

	transport := &SubmitError{Err: cause}
	assert.ErrorIs(t, transport, core.ErrSubmission)
	assert.ErrorIs(t, transport, cause)
	assert.Equal(t, "transport", transport.Reason())
	assert.Contains(t, transport.Error(), "connection refused")

	rejected := &SubmitError{StatusCode: 400, Body: "bad text"}
	assert.ErrorIs(t, rejected, core.ErrSubmission)
	assert.Equal(t, "rejected", rejected.Reason())
	assert.Equal(t, "submit: status 400: bad text", rejected.Error())

	assert.Equal(t, "rate_limited", (&SubmitError{StatusCode: 429}).Reason())
	assert.Equal(t, "server_error", (&SubmitError{StatusCode: 503}).Reason())
}
