// Package engine runs an auction behind a single-writer request loop.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// The auction state machine is not safe for concurrent use. The engine
// owns it and processes every request in one goroutine, so concurrent
// bidders are serialized in arrival order and no request can observe
// another half-applied. A ledger callback that re-enters the auction runs
// on that same goroutine and sees the committed state.
//
// Request Processing Flow:
//  1. Do enqueues the request on a FIFO queue and waits for its Response.
//  2. Run dequeues one event at a time.
//  3. The request is stamped with a monotonic wall time (never earlier
//     than any previous stamp) and a UUIDv7 request ID, then applied.
//  4. The outcome takes the next journal seq and is written to the store:
//     settled claims together with their claims row in one transaction.
//  5. Settled receipts are published. Publish failures are logged only.
//
// Replay:
// Replay rebuilds the auction from the journal by re-applying every
// operation that took effect at its recorded time. Rejected operations are
// skipped; they changed nothing when first processed. Any difference in
// outcome, receipt or content-addressed ID is a *ReplayError.
//
// CP-2: Logical Clock
// Journal order is the seq from Clock.Next(). Wall time decides only which
// round is open.
package engine
