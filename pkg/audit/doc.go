// Package audit implements the tamper-evident audit log.
//
// Every sensitive operation in Warden is mirrored into the log: queries and
// responses, key usage, override sessions, mode changes, and pipeline
// decisions. The log is append-only, one self-describing JSON record per
// line, with each record carrying a checksum chained to its predecessor.
// Altering any written record breaks the chain for that record and every
// record after it, which VerifyIntegrity reports with line-level precision.
//
// The Log owns exclusive write access to its backing file. All writers,
// including the key registry and policy-change paths, funnel through
// Append, which is a single serialized critical section: read the chain
// head, compute the new checksum, write the line, advance the head.
//
// On construction the Log recovers the chain head from the last record of
// an existing file so that appends after a process restart continue the
// same chain.
package audit
