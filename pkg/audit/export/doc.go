// Package export provides read-only derived views of the audit log in
// portable formats. Exporters operate on query results; they never touch
// the chain log itself.
package export
