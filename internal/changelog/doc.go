// Package changelog provides SQLite-backed durable storage for property
// store mutations.
//
// The log is append-only. Each entry records one store update: the table,
// the record, the operation (set or remove) and, for sets, the record's
// full properties as RFC 8785 canonical JSON.
//
// # Critical Patterns
//
// Update-Level Idempotency
//   - UNIQUE(seq, table_id, record) constraint
//   - Appending the same update twice writes one row
//
// Logical Time
//   - All ordering uses seq INTEGER (store logical clock), NEVER timestamps
//   - Queries order by seq ASC, id ASC
//   - Replay is deterministic regardless of wall time
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Recorder mirrors a live store into a log; Replay applies a log to a store
// through the ordinary mutation primitives.
package changelog
