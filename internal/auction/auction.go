package auction

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Auction is the state object for one sealed-bid share auction.
//
// It is mutated only by Submit, Reveal and Claim. It is NOT safe for
// concurrent use; serialize callers (internal/engine runs it on a single
// goroutine).
type Auction struct {
	cfg  Config
	deps Deps
	seq  *Sequencer

	commitments map[common.Hash]*Commitment
	book        *book
	settlement  settlement
}

// New creates an auction in its initial state.
func New(cfg Config, deps Deps) (*Auction, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("auction deps: %w", err)
	}
	return &Auction{
		cfg:         cfg,
		deps:        deps,
		seq:         NewSequencer(),
		commitments: make(map[common.Hash]*Commitment),
		book:        newBook(),
	}, nil
}

// Config returns the configuration the auction was created with.
func (a *Auction) Config() Config {
	return a.cfg
}

// Phase returns the round in effect at now.
func (a *Auction) Phase(now time.Time) Phase {
	return a.cfg.PhaseAt(now)
}

func (a *Auction) requirePhase(now time.Time, want Phase, hash common.Hash) error {
	if got := a.cfg.PhaseAt(now); got != want {
		return newError(ErrCodePhaseViolation, hash, "operation requires %s phase, auction is in %s phase", want, got)
	}
	return nil
}

// Commitment returns a copy of the commitment for hash.
func (a *Auction) Commitment(hash common.Hash) (Commitment, bool) {
	c, ok := a.commitments[hash]
	if !ok {
		return Commitment{}, false
	}
	return *c, true
}

// Order returns a copy of the revealed order for hash.
func (a *Auction) Order(hash common.Hash) (Order, bool) {
	o, ok := a.book.get(hash)
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Orders returns copies of every order from head (lowest) to tail (highest).
func (a *Auction) Orders() []Order {
	out := make([]Order, 0, a.book.len())
	for h := a.book.head; h != (common.Hash{}); {
		o := a.book.orders[h]
		out = append(out, *o)
		h = o.Next
	}
	return out
}

// Head returns the lowest-ranked order's hash (zero if the book is empty).
func (a *Auction) Head() common.Hash {
	return a.book.head
}

// Tail returns the highest-ranked order's hash (zero if the book is empty).
func (a *Auction) Tail() common.Hash {
	return a.book.tail
}

// Len returns the number of revealed orders.
func (a *Auction) Len() int {
	return a.book.len()
}

// LastSequence returns the most recently issued commitment sequence number.
func (a *Auction) LastSequence() uint64 {
	return a.seq.Current()
}

// CheckInvariants verifies the book is an acyclic, fully linked chain sorted
// by rank from head to tail. It walks the whole book.
func (a *Auction) CheckInvariants() error {
	return a.book.check()
}
