// Package mock provides a scripted in-memory index.Indexer for tests.
package mock
