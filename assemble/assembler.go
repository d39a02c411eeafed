package assemble

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/ragmigrate/core"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// LineSeparator joins the lines of one document.
	LineSeparator = "\n\n"

	// rule is a stand-alone horizontal rule, reserved as the batch boundary marker.
	rule = "---"
)

// Assembler turns records into labeled text documents.
type Assembler struct {
	schema   *Schema
	maxChars int
	dedupe   bool
	splitter textsplitter.TextSplitter
	logger   *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithMaxChars caps document length in runes. Longer documents are cut at
// the last paragraph, line or word boundary that fits. Zero disables the cap.
func WithMaxChars(n int) Option {
	return func(a *Assembler) {
		if n < 0 {
			n = 0
		}
		a.maxChars = n
	}
}

// WithDedupe renders each field at most once: a field already used as the
// title or listed twice is skipped, and metadata already in the body is not
// appended again.
func WithDedupe(dedupe bool) Option {
	return func(a *Assembler) {
		a.dedupe = dedupe
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Assembler over schema. A nil schema uses DefaultRules.
func New(schema *Schema, opts ...Option) *Assembler {
	if schema == nil {
		schema = MustSchema(DefaultRules())
	}
	a := &Assembler{
		schema: schema,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "assembler")

	if a.maxChars > 0 {
		a.splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(a.maxChars),
			textsplitter.WithChunkOverlap(0),
			textsplitter.WithSeparators([]string{LineSeparator, "\n", " ", ""}),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		)
	}
	return a
}

// Schema returns the rule schema in use.
func (a *Assembler) Schema() *Schema {
	return a.schema
}

// Assemble renders record as a document using fields as the table's body
// field list. It returns "" when no relevant field is present.
//
// Layout:
//  1. the first present primary field, as "<Label>: <value>"
//  2. each present field of fields, in order, labeled when it has a body rule
//  3. each present metadata field, labeled
//
// A field may appear in several sections, e.g. a question both as the title
// and as a bare body line. WithDedupe collapses those repeats.
func (a *Assembler) Assemble(record core.Record, fields []string) core.Document {
	var lines []string
	emitted := make(map[string]bool)
	emit := func(field, line string) {
		if a.dedupe && emitted[field] {
			return
		}
		lines = append(lines, line)
		emitted[field] = true
	}

	for _, r := range a.schema.primary {
		if value, ok := present(record, r.Field); ok {
			emit(r.Field, labeled(r.Label, value))
			break
		}
	}

	for _, field := range fields {
		value, ok := present(record, field)
		if !ok {
			continue
		}
		if label := a.schema.BodyLabel(field); label != "" {
			emit(field, labeled(label, value))
		} else {
			emit(field, value)
		}
	}

	for _, r := range a.schema.metadata {
		if value, ok := present(record, r.Field); ok {
			emit(r.Field, labeled(r.Label, value))
		}
	}

	if len(lines) == 0 {
		return ""
	}
	return core.Document(a.truncate(strings.Join(lines, LineSeparator)))
}

func (a *Assembler) truncate(text string) string {
	if a.splitter == nil || utf8.RuneCountInString(text) <= a.maxChars {
		return text
	}
	chunks, err := a.splitter.SplitText(text)
	if err != nil || len(chunks) == 0 {
		a.logger.Warn("falling back to hard cut", "error", err)
		return string([]rune(text)[:a.maxChars])
	}
	return chunks[0]
}

// present reports whether field holds a non-blank value and returns it normalized.
func present(record core.Record, field string) (string, bool) {
	raw, ok := record[field]
	if !ok || raw == nil {
		return "", false
	}

	var value string
	switch v := raw.(type) {
	case string:
		value = v
	case []byte:
		value = string(v)
	default:
		value = fmt.Sprint(v)
	}

	value = normalize(value)
	return value, value != ""
}

// normalize trims the value and drops stand-alone horizontal rules so a
// document never contains the batch boundary marker.
func normalize(value string) string {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, rule) {
		return value
	}
	lines := strings.Split(value, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == rule {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func labeled(label, value string) string {
	return label + ": " + value
}
