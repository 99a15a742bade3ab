// Package history provides an optional SQLite log of successful conversions.
//
// Each record captures what was converted and what was produced: the model
// digest, the registration identifiers, and the digest and path of the
// generated header. Records are ordered by a logical sequence number, never
// by wall-clock time, so two databases built from the same conversions in
// the same order hold identical rows apart from run tokens.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - PRAGMA user_version tracks the schema version
//
// Digests are SHA-256 with domain separation (see digest.go).
package history
