package auction

import (
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
)

// settlement caches the cutoff once it has been computed. The book cannot
// change after round two closes, so it never needs recomputing.
type settlement struct {
	computed bool

	// cutoff is the lowest-ranked winning order; zero when the book is empty.
	cutoff common.Hash

	// allotted is the number of shares the cutoff order receives. It is
	// less than the order's shares when the order straddles the cap.
	allotted uint64
}

// ensureCutoff walks the book from the tail, accumulating shares, and
// records the order at which the running total first reaches the cap. If
// the book never reaches the cap every order wins and the head is the cutoff.
func (a *Auction) ensureCutoff() {
	if a.settlement.computed {
		return
	}
	a.settlement.computed = true

	remaining := a.cfg.SupplyCap
	for h := a.book.tail; h != (common.Hash{}); {
		o := a.book.orders[h]
		if o.Shares >= remaining {
			a.settlement.cutoff = h
			a.settlement.allotted = remaining
			slog.Info("settlement cutoff computed",
				"cutoff", h.Hex(),
				"price", o.Price,
				"allotted", remaining,
				"requested", o.Shares,
			)
			return
		}
		remaining -= o.Shares
		h = o.Prior
	}

	if head, ok := a.book.get(a.book.head); ok {
		a.settlement.cutoff = head.Hash
		a.settlement.allotted = head.Shares
	}
	slog.Info("settlement cutoff computed: book undersubscribed",
		"cutoff", a.settlement.cutoff.Hex(),
		"unsold", remaining,
	)
}

// Cutoff returns the cutoff order's hash once the first claim has computed
// it. ok is false before then, and when the book is empty.
func (a *Auction) Cutoff() (hash common.Hash, ok bool) {
	if !a.settlement.computed || a.settlement.cutoff == (common.Hash{}) {
		return common.Hash{}, false
	}
	return a.settlement.cutoff, true
}

// allotment returns the shares o keeps at settlement.
func (a *Auction) allotment(o *Order) uint64 {
	cut, ok := a.book.get(a.settlement.cutoff)
	switch {
	case !ok:
		return 0
	case o.Hash == cut.Hash:
		return a.settlement.allotted
	case outranks(o, cut):
		return o.Shares
	default:
		return 0
	}
}

// Claim settles the caller's order once round two has closed: winners are
// minted their shares and refunded any overpayment, losers are refunded in
// full. An order can be claimed once.
//
// The claimed flag is committed before either ledger is called, so a ledger
// that re-enters Claim sees ErrAlreadyClaimed.
func (a *Auction) Claim(call Call, hash common.Hash) (Receipt, error) {
	if err := a.requirePhase(call.Now, PhaseSettle, hash); err != nil {
		return Receipt{}, err
	}

	o, ok := a.book.get(hash)
	if !ok {
		if _, committed := a.commitments[hash]; committed {
			return Receipt{}, newError(ErrCodeNotYetRevealed, hash, "commitment was never revealed")
		}
		return Receipt{}, newError(ErrCodeUnknownCommitment, hash, "no such bid")
	}
	if o.Owner != call.Caller {
		return Receipt{}, newError(ErrCodeUnauthorized, hash, "order belongs to %s", o.Owner.Hex())
	}
	if o.Claimed {
		return Receipt{}, newError(ErrCodeAlreadyClaimed, hash, "order was already settled")
	}

	a.ensureCutoff()

	kept := a.allotment(o)
	cost := a.cfg.Cost(kept, o.Price)
	r := Receipt{
		Hash:   o.Hash,
		Owner:  o.Owner,
		Winner: kept > 0,
		Shares: kept,
		Cost:   cost,
		Refund: o.Paid.Sub(cost),
	}

	o.Claimed = true

	if r.Shares > 0 {
		if err := a.deps.Shares.Mint(o.Owner, r.Shares); err != nil {
			o.Claimed = false
			return Receipt{}, &Error{Code: ErrCodeLedgerFailure, Hash: hash, Message: "share mint failed", Err: err}
		}
	}
	if r.Refund.IsPositive() {
		if err := a.deps.Values.CreditRefund(o.Owner, r.Refund); err != nil {
			// Shares are already minted; the claim stands and the refund
			// must be reconciled out of band.
			slog.Error("refund failed after mint",
				"hash", hash.Hex(),
				"owner", o.Owner.Hex(),
				"refund", r.Refund.String(),
				"error", err,
			)
			return r, &Error{Code: ErrCodeLedgerFailure, Hash: hash, Message: "refund credit failed", Err: err}
		}
	}

	slog.Debug("order claimed",
		"hash", hash.Hex(),
		"owner", o.Owner.Hex(),
		"winner", r.Winner,
		"shares", r.Shares,
		"refund", r.Refund.String(),
	)
	return r, nil
}
