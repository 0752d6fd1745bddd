// Package auction implements a two-round sealed-bid share auction.
//
// ROUNDS:
//
// Round one (commit): certified bidders submit the digest of a hidden
// (shares, price, nonce) triple. Commitments may be withdrawn and re-added
// while the round is open; every (re)activation draws a fresh sequence number.
//
// Round two (reveal): the owner of an active commitment discloses the triple,
// pays at least shares × price, and the order is inserted into a
// price-ordered book. The caller supplies a hint (any hash already in the
// book); the insertion walk from the hint is always correct, the hint only
// changes how far it walks.
//
// Settlement (claim): once round two closes, the book is walked from the tail
// (best bid) toward the head accumulating shares until the supply cap is
// reached. That order is the cutoff. Orders at or above it win; the rest are
// refunded in full. Each order is claimed exactly once.
//
// ORDERING:
//
// An order A outranks B when A.Price > B.Price, or the prices are equal and
// A.Sequence < B.Sequence (the earlier commitment wins the tie). The book is
// kept sorted ascending from head to tail after every insertion.
//
// CONCURRENCY:
//
// Auction is a single-threaded state machine. It takes no locks so that a
// ledger calling back into Claim observes the already-committed claimed flag
// instead of deadlocking. Callers serialize access; see internal/engine.
//
// Every operation either completes or returns an error and leaves the state
// exactly as it found it.
package auction
