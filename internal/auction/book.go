package auction

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/sealbid/internal/bidhash"
)

// book is the round-two order book: an arena of orders keyed by hash and
// linked through their Prior/Next hash fields. Head is the lowest-ranked
// order, tail the highest. The zero hash terminates the chain.
type book struct {
	orders map[common.Hash]*Order
	head   common.Hash
	tail   common.Hash
}

func newBook() *book {
	return &book{orders: make(map[common.Hash]*Order)}
}

func (b *book) len() int {
	return len(b.orders)
}

func (b *book) get(hash common.Hash) (*Order, bool) {
	o, ok := b.orders[hash]
	return o, ok
}

// outranks reports whether x ranks strictly above y: a higher price, or the
// same price committed earlier.
func outranks(x, y *Order) bool {
	if x.Price != y.Price {
		return x.Price > y.Price
	}
	return x.Sequence < y.Sequence
}

// locate finds the neighbours between which o belongs, walking from the
// hint. steps counts the links followed and is reported for diagnostics.
func (b *book) locate(o *Order, hint common.Hash) (prior, next common.Hash, steps int, err error) {
	if b.len() == 0 {
		return common.Hash{}, common.Hash{}, 0, nil
	}

	cur, ok := b.orders[hint]
	if !ok {
		return common.Hash{}, common.Hash{}, 0, newError(ErrCodeInvalidHint, o.Hash, "hint %s is not in the book", hint.Hex())
	}

	if outranks(o, cur) {
		// Move toward the tail while o still outranks the next order.
		for cur.Next != (common.Hash{}) {
			nxt := b.orders[cur.Next]
			if !outranks(o, nxt) {
				break
			}
			cur = nxt
			steps++
		}
		return cur.Hash, cur.Next, steps, nil
	}

	// Move toward the head while the prior order still outranks o.
	for cur.Prior != (common.Hash{}) {
		prv := b.orders[cur.Prior]
		if outranks(o, prv) {
			break
		}
		cur = prv
		steps++
	}
	return cur.Prior, cur.Hash, steps, nil
}

// link inserts o between prior and next, which must be adjacent (or zero
// at either end).
func (b *book) link(o *Order, prior, next common.Hash) {
	o.Prior, o.Next = prior, next
	if prior == (common.Hash{}) {
		b.head = o.Hash
	} else {
		b.orders[prior].Next = o.Hash
	}
	if next == (common.Hash{}) {
		b.tail = o.Hash
	} else {
		b.orders[next].Prior = o.Hash
	}
	b.orders[o.Hash] = o
}

// unlink removes o. Orders are never deleted once a reveal succeeds; this
// exists only to roll back a reveal whose payment capture failed.
func (b *book) unlink(hash common.Hash) {
	o, ok := b.orders[hash]
	if !ok {
		return
	}
	if o.Prior == (common.Hash{}) {
		b.head = o.Next
	} else {
		b.orders[o.Prior].Next = o.Next
	}
	if o.Next == (common.Hash{}) {
		b.tail = o.Prior
	} else {
		b.orders[o.Next].Prior = o.Prior
	}
	delete(b.orders, hash)
}

// check walks head to tail verifying links, termination and sort order.
func (b *book) check() error {
	if b.len() == 0 {
		if b.head != (common.Hash{}) || b.tail != (common.Hash{}) {
			return fmt.Errorf("empty book has head %s / tail %s", b.head.Hex(), b.tail.Hex())
		}
		return nil
	}

	head, ok := b.orders[b.head]
	if !ok {
		return fmt.Errorf("head %s is not in the book", b.head.Hex())
	}
	if head.Prior != (common.Hash{}) {
		return fmt.Errorf("head %s has a prior", b.head.Hex())
	}

	visited := 0
	var prev *Order
	for h := b.head; h != (common.Hash{}); {
		o, ok := b.orders[h]
		if !ok {
			return fmt.Errorf("dangling link to %s", h.Hex())
		}
		visited++
		if visited > b.len() {
			return fmt.Errorf("cycle detected after %d orders", b.len())
		}
		if prev != nil {
			if o.Prior != prev.Hash {
				return fmt.Errorf("order %s prior is %s, want %s", h.Hex(), o.Prior.Hex(), prev.Hash.Hex())
			}
			if outranks(prev, o) {
				return fmt.Errorf("order %s (price %d, seq %d) sits below %s (price %d, seq %d)",
					prev.Hash.Hex(), prev.Price, prev.Sequence, o.Hash.Hex(), o.Price, o.Sequence)
			}
		}
		prev = o
		h = o.Next
	}
	if prev.Hash != b.tail {
		return fmt.Errorf("walk ended at %s, tail is %s", prev.Hash.Hex(), b.tail.Hex())
	}
	if visited != b.len() {
		return fmt.Errorf("walk reached %d of %d orders", visited, b.len())
	}
	return nil
}

// Reveal discloses the committed (shares, price, nonce) for d.Hash and
// inserts the order into the book. call.Payment must cover shares × price
// and is captured in full; nothing is refunded or minted until settlement.
func (a *Auction) Reveal(call Call, d Disclosure) error {
	if err := a.requirePhase(call.Now, PhaseReveal, d.Hash); err != nil {
		return err
	}

	c, ok := a.commitments[d.Hash]
	if !ok || !c.Active || c.Owner != call.Caller {
		return newError(ErrCodeUnknownCommitment, d.Hash, "no active commitment owned by %s", call.Caller.Hex())
	}
	if _, revealed := a.book.get(d.Hash); revealed {
		return newError(ErrCodeAlreadyRevealed, d.Hash, "order is already in the book")
	}
	if d.Shares == 0 || d.Price == 0 {
		return newError(ErrCodeInvalidBid, d.Hash, "shares (%d) and price (%d) must be positive", d.Shares, d.Price)
	}
	if digest := bidhash.DigestUint(d.Shares, d.Price, d.Nonce); digest != d.Hash {
		return newError(ErrCodeCommitMismatch, d.Hash, "disclosed bid hashes to %s", digest.Hex())
	}
	cost := a.cfg.Cost(d.Shares, d.Price)
	if call.Payment.LessThan(cost) {
		return newError(ErrCodeInsufficientPayment, d.Hash, "paid %s, cost is %s", call.Payment, cost)
	}

	o := &Order{
		Hash:     d.Hash,
		Owner:    call.Caller,
		Price:    d.Price,
		Shares:   d.Shares,
		Sequence: c.Sequence,
		Paid:     call.Payment,
	}
	prior, next, steps, err := a.book.locate(o, d.Hint)
	if err != nil {
		return err
	}
	a.book.link(o, prior, next)

	if err := a.deps.Values.Capture(call.Caller, call.Payment); err != nil {
		a.book.unlink(o.Hash)
		return &Error{Code: ErrCodeLedgerFailure, Hash: d.Hash, Message: "payment capture failed", Err: err}
	}

	slog.Debug("order revealed",
		"hash", d.Hash.Hex(),
		"owner", call.Caller.Hex(),
		"price", d.Price,
		"shares", d.Shares,
		"seq", c.Sequence,
		"hint_steps", steps,
	)
	return nil
}
