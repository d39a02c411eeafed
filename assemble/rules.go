package assemble

import (
	"fmt"
	"sort"
	"strings"
)

// Group places a field in one section of the assembled document.
type Group string

const (
	// GroupPrimary fields compete for the single title line; the first present wins.
	GroupPrimary Group = "primary"

	// GroupBody fields only carry a label; their position comes from the table's field list.
	// Fields of other groups listed there render as bare values.
	GroupBody Group = "body"

	// GroupMetadata fields are appended after the body, each independently.
	GroupMetadata Group = "metadata"
)

// Rule describes how one source field is rendered.
type Rule struct {
	Field string `mapstructure:"field" yaml:"field"`
	Label string `mapstructure:"label" yaml:"label,omitempty"`
	Group Group  `mapstructure:"group" yaml:"group"`
	Order int    `mapstructure:"order" yaml:"order,omitempty"`
}

// Schema is the lookup form of a rule list: field name to rule, plus the
// ordered primary and metadata candidates.
type Schema struct {
	rules    map[string]Rule
	primary  []Rule
	metadata []Rule
}

// DefaultRules returns the labeling rules for the Turkish tax-law corpus:
// articles, council decisions, rulings and Q&A records.
func DefaultRules() []Rule {
	return []Rule{
		{Field: "Baslik", Label: "Başlık", Group: GroupPrimary, Order: 1},
		{Field: "Konusu", Label: "Konu", Group: GroupPrimary, Order: 2},
		{Field: "Soru", Label: "Soru", Group: GroupPrimary, Order: 3},
		{Field: "Cevap", Label: "Cevap", Group: GroupBody},
		{Field: "Icerik", Label: "İçerik", Group: GroupBody},
		{Field: "Ozeti", Label: "Özet", Group: GroupBody},
		{Field: "IlgiliKanun", Label: "İlgili Kanun", Group: GroupMetadata, Order: 1},
		{Field: "Kaynak", Label: "Kaynak", Group: GroupMetadata, Order: 2},
	}
}

// NewSchema validates rules and builds a Schema.
// Primary and metadata rules require a label; body rules may omit it, which
// renders the field as a bare value.
func NewSchema(rules []Rule) (*Schema, error) {
	s := &Schema{rules: make(map[string]Rule, len(rules))}

	for i, rule := range rules {
		rule.Field = strings.TrimSpace(rule.Field)
		if rule.Field == "" {
			return nil, fmt.Errorf("%w: rule %d has no field", ErrInvalidRule, i)
		}
		if _, dup := s.rules[rule.Field]; dup {
			return nil, fmt.Errorf("%w: duplicate rule for %q", ErrInvalidRule, rule.Field)
		}
		if rule.Group == "" {
			rule.Group = GroupBody
		}

		switch rule.Group {
		case GroupPrimary:
			s.primary = append(s.primary, rule)
		case GroupMetadata:
			s.metadata = append(s.metadata, rule)
		case GroupBody:
		default:
			return nil, fmt.Errorf("%w: %q has unknown group %q", ErrInvalidRule, rule.Field, rule.Group)
		}
		if rule.Group != GroupBody && rule.Label == "" {
			return nil, fmt.Errorf("%w: %s field %q needs a label", ErrInvalidRule, rule.Group, rule.Field)
		}

		s.rules[rule.Field] = rule
	}

	sort.SliceStable(s.primary, func(i, j int) bool { return s.primary[i].Order < s.primary[j].Order })
	sort.SliceStable(s.metadata, func(i, j int) bool { return s.metadata[i].Order < s.metadata[j].Order })
	return s, nil
}

// MustSchema is like NewSchema but panics on invalid rules.
func MustSchema(rules []Rule) *Schema {
	s, err := NewSchema(rules)
	if err != nil {
		panic(err)
	}
	return s
}

// Label returns the label for field, or "" when the field renders bare.
func (s *Schema) Label(field string) string {
	return s.rules[field].Label
}

// BodyLabel returns the label used when field appears in a table's field
// list. Only body rules label list entries; other fields render bare there.
func (s *Schema) BodyLabel(field string) string {
	r, ok := s.rules[field]
	if !ok || r.Group != GroupBody {
		return ""
	}
	return r.Label
}

// Rules returns the schema's rules sorted by group, then order, then field.
func (s *Schema) Rules() []Rule {
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	rank := map[Group]int{GroupPrimary: 0, GroupBody: 1, GroupMetadata: 2}
	sort.Slice(out, func(i, j int) bool {
		if rank[out[i].Group] != rank[out[j].Group] {
			return rank[out[i].Group] < rank[out[j].Group]
		}
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Field < out[j].Field
	})
	return out
}
