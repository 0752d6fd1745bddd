// Package store provides the SQLite-backed operation journal.
//
// Every request the engine processes is appended to the operations table,
// successful or not, in the order it was applied. Successful claims are
// also recorded in the claims table, keyed by bid hash, in the same
// transaction as their operation row.
//
// # Ordering
//
// seq is the engine's logical clock. Reads order by seq; timestamps are
// recorded for replay but never used for ordering.
//
// # Idempotency
//
// Operation IDs are content-addressed (see internal/journal), so rewriting
// an operation is a no-op. A second claim row for the same bid hash is a
// constraint violation and reported as ErrClaimExists.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
