// Package assemble renders source records as labeled plain-text documents.
//
// Rendering is driven by a rule table rather than per-table code: each Rule
// maps a field to a label, a group (primary, body or metadata) and an order.
// New tables are onboarded by listing their fields and, when needed, adding
// rules.
package assemble
