// Package index defines the client side of the retrieval-indexing service.
//
// The Indexer interface is the only contract the migration depends on:
// a health check, payload submission and a query used for smoke tests.
//
// # Implementation Packages
//
//   - index/lightrag: HTTP client for a LightRAG-style service
//     (GET /, POST /index, POST /query)
//   - index/mock: scripted test double that records submitted payloads
//
// Submission failures carry detail through *SubmitError (HTTP status and a
// response excerpt) while still matching core.ErrSubmission, so callers can
// treat the outcome as a simple accepted/rejected decision.
package index
