package auction

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Intent selects what a round-one submission does.
//
// The wire encoding is numeric. Values other than IntentAdd and
// IntentRemove are accepted and ignored: the submission performs neither
// creation nor withdrawal.
type Intent uint8

const (
	// IntentAdd creates or reactivates a commitment.
	IntentAdd Intent = 0
	// IntentRemove withdraws a commitment.
	IntentRemove Intent = 1
)

func (i Intent) String() string {
	switch i {
	case IntentAdd:
		return "add"
	case IntentRemove:
		return "remove"
	default:
		return fmt.Sprintf("intent(%d)", uint8(i))
	}
}

// Phase is the auction round in effect at a point in time.
type Phase int

const (
	// PhaseCommit is round one: submit and withdraw commitments.
	PhaseCommit Phase = iota + 1
	// PhaseReveal is round two: reveal and insert into the book.
	PhaseReveal
	// PhaseSettle follows round two: claim.
	PhaseSettle
)

func (p Phase) String() string {
	switch p {
	case PhaseCommit:
		return "commit"
	case PhaseReveal:
		return "reveal"
	case PhaseSettle:
		return "settle"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Call carries the per-operation context: who is calling, when, and what
// value accompanies the call. Now is supplied by the caller so that the
// state machine never reads ambient time.
type Call struct {
	Caller  common.Address
	Now     time.Time
	Payment decimal.Decimal
}

// Commitment is a round-one sealed bid.
type Commitment struct {
	Hash  common.Hash
	Owner common.Address

	// Sequence is reissued on every (re)activation and breaks price ties:
	// the lower sequence ranks higher.
	Sequence uint64

	Active bool
}

// Order is a revealed bid in the book.
//
// Orders are addressed by Hash; Prior and Next are the hashes of the
// neighbouring orders (zero at the ends). Prior points toward the head
// (lower-ranked), Next toward the tail (higher-ranked).
type Order struct {
	Hash     common.Hash
	Owner    common.Address
	Price    uint64
	Shares   uint64
	Sequence uint64
	Paid     decimal.Decimal
	Prior    common.Hash
	Next     common.Hash
	Claimed  bool
}

// Disclosure is the round-two reveal of a commitment.
type Disclosure struct {
	Hash   common.Hash
	Shares uint64
	Price  uint64
	Nonce  common.Hash

	// Hint names any order already in the book. It is ignored when the
	// book is empty.
	Hint common.Hash
}

// Receipt describes the settlement of one order.
type Receipt struct {
	Hash   common.Hash
	Owner  common.Address
	Winner bool

	// Shares is the number of shares minted to the owner.
	Shares uint64

	// Cost is Shares × Price in ledger base units; the amount retained.
	Cost decimal.Decimal

	// Refund is Paid − Cost, credited back to the owner.
	Refund decimal.Decimal
}
