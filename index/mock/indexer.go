package mock

import (
	"context"
	"net/http"
	"sync"

	"github.com/poiesic/ragmigrate/index"
)

// Indexer records every payload it receives and answers according to a
// script. The zero value is unavailable; use New for an available indexer
// that accepts everything.
type Indexer struct {
	mu sync.Mutex

	available bool
	statuses  []int // status for upcoming submissions, consumed in order
	payloads  []string
	accepted  []string
	calls     int
	queries   []string
	answer    string
	queryErr  error
	closed    bool

	// SubmitFunc, when set, decides the outcome of each submission instead
	// of the status script.
	SubmitFunc func(text string) error
}

var _ index.Indexer = (*Indexer)(nil)

// New returns an available indexer that accepts every submission.
func New() *Indexer {
	return &Indexer{available: true}
}

// SetAvailable sets the health check result.
func (m *Indexer) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// FailNext makes the next n submissions answer with the given status code.
func (m *Indexer) FailNext(n, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for range n {
		m.statuses = append(m.statuses, status)
	}
}

// ScriptStatuses queues explicit status codes for upcoming submissions.
// Zero or 200 means accepted.
func (m *Indexer) ScriptStatuses(statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, statuses...)
}

// SetAnswer sets the query response and error.
func (m *Indexer) SetAnswer(answer string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answer = answer
	m.queryErr = err
}

func (m *Indexer) IsAvailable(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available && ctx.Err() == nil
}

func (m *Indexer) Submit(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.payloads = append(m.payloads, text)

	if err := ctx.Err(); err != nil {
		return &index.SubmitError{Err: err}
	}
	if m.SubmitFunc != nil {
		if err := m.SubmitFunc(text); err != nil {
			return err
		}
		m.accepted = append(m.accepted, text)
		return nil
	}

	status := http.StatusOK
	if len(m.statuses) > 0 {
		status = m.statuses[0]
		m.statuses = m.statuses[1:]
	}
	if status != 0 && status/100 != 2 {
		return &index.SubmitError{StatusCode: status, Body: http.StatusText(status)}
	}
	m.accepted = append(m.accepted, text)
	return nil
}

func (m *Indexer) Query(ctx context.Context, query, mode string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, mode+":"+query)
	if m.queryErr != nil {
		return "", m.queryErr
	}
	return m.answer, nil
}

func (m *Indexer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Payloads returns every submitted text, accepted or not, in order.
func (m *Indexer) Payloads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.payloads...)
}

// Accepted returns the texts that were accepted, in order.
func (m *Indexer) Accepted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.accepted...)
}

// CallCount returns the number of Submit calls.
func (m *Indexer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Queries returns the queries received, formatted as "mode:query".
func (m *Indexer) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Closed reports whether Close was called.
func (m *Indexer) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
