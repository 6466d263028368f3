// Package kv provides the small string key-value persistence layer the host
// keeps its session tokens, one-shot migration flags and connection records
// in. Three backends implement [Store]:
//
//   - [Memory]: process-local map, the zero value is ready to use
//   - [File]: a single JSON document rewritten atomically on every change
//   - [SQLite]: a WAL-mode SQLite database behind a connection pool
//
// Every backend offers last-writer-wins semantics and makes deletions
// immediately visible to subsequent reads.
package kv
