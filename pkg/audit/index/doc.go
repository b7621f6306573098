// Package index maintains a SQLite mirror of the audit chain log for fast
// filtered queries. The JSONL log file remains the sole source of truth
// for the hash chain; the index is a rebuildable convenience and is never
// consulted by integrity verification.
package index
