package auction

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReveal_FirstOrderIgnoresHint(t *testing.T) {
	a, ledger := newTestAuction(t, 10)
	b := newBid(bidder(1), 10, 1)
	mustCommit(t, a, b)

	// Any hint is accepted when the book is empty.
	mustReveal(t, a, b, common.HexToHash("0xdeadbeef"))

	assert.Equal(t, b.hash, a.Head())
	assert.Equal(t, b.hash, a.Tail())
	assert.Equal(t, 1, a.Len())

	o, ok := a.Order(b.hash)
	require.True(t, ok)
	assert.Equal(t, common.Hash{}, o.Prior)
	assert.Equal(t, common.Hash{}, o.Next)
	assert.Equal(t, uint64(1), o.Sequence)
	assert.True(t, ledger.captured[b.owner].Equal(decimal.NewFromInt(10)))
}

func TestReveal_InvalidHintThenRetry(t *testing.T) {
	a, _ := newTestAuction(t, 10)
	first := newBid(bidder(1), 1, 5)
	second := newBid(bidder(2), 1, 7)
	mustCommit(t, a, first)
	mustCommit(t, a, second)
	mustReveal(t, a, first, common.Hash{})

	err := a.Reveal(revealCall(second.owner, second.cost()), second.disclosure(common.HexToHash("0x1234")))
	assert.ErrorIs(t, err, ErrInvalidHint)
	assert.Equal(t, 1, a.Len())

	// The zero hash is not an order either.
	err = a.Reveal(revealCall(second.owner, second.cost()), second.disclosure(common.Hash{}))
	assert.ErrorIs(t, err, ErrInvalidHint)

	mustReveal(t, a, second, first.hash)
	assert.Equal(t, []uint64{5, 7}, pricesOf(a.Orders()))
}

func TestReveal_WithdrawnCommitment(t *testing.T) {
	a, _ := newTestAuction(t, 10)
	b := newBid(bidder(1), 10, 1)
	mustCommit(t, a, b)
	require.NoError(t, a.Submit(commitCall(b.owner), b.hash, IntentRemove, nil))

	err := a.Reveal(revealCall(b.owner, b.cost()), b.disclosure(common.Hash{}))
	assert.ErrorIs(t, err, ErrUnknownCommitment)
	assert.Equal(t, 0, a.Len())
}

func TestReveal_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b bid, call *Call, d *Disclosure)
		want   *Error
	}{
		{
			name:   "never committed",
			mutate: func(_ bid, _ *Call, d *Disclosure) { d.Hash = common.HexToHash("0xabc") },
			want:   ErrUnknownCommitment,
		},
		{
			name:   "caller is not the owner",
			mutate: func(_ bid, call *Call, _ *Disclosure) { call.Caller = bidder(99) },
			want:   ErrUnknownCommitment,
		},
		{
			name:   "wrong nonce",
			mutate: func(_ bid, _ *Call, d *Disclosure) { d.Nonce = common.HexToHash("0x01") },
			want:   ErrCommitMismatch,
		},
		{
			name:   "wrong price",
			mutate: func(_ bid, _ *Call, d *Disclosure) { d.Price++ },
			want:   ErrCommitMismatch,
		},
		{
			name:   "wrong shares",
			mutate: func(_ bid, _ *Call, d *Disclosure) { d.Shares-- },
			want:   ErrCommitMismatch,
		},
		{
			name:   "zero shares",
			mutate: func(_ bid, _ *Call, d *Disclosure) { d.Shares = 0 },
			want:   ErrInvalidBid,
		},
		{
			name:   "zero price",
			mutate: func(_ bid, _ *Call, d *Disclosure) { d.Price = 0 },
			want:   ErrInvalidBid,
		},
		{
			name: "underpaid by one unit",
			mutate: func(b bid, call *Call, _ *Disclosure) {
				call.Payment = b.cost().Sub(decimal.NewFromInt(1))
			},
			want: ErrInsufficientPayment,
		},
		{
			name:   "no payment",
			mutate: func(_ bid, call *Call, _ *Disclosure) { call.Payment = decimal.Zero },
			want:   ErrInsufficientPayment,
		},
		{
			name:   "during round one",
			mutate: func(_ bid, call *Call, _ *Disclosure) { call.Now = commitTime },
			want:   ErrPhaseViolation,
		},
		{
			name:   "after round two",
			mutate: func(_ bid, call *Call, _ *Disclosure) { call.Now = round2Close },
			want:   ErrPhaseViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ledger := newTestAuction(t, 10)
			b := newBid(bidder(1), 4, 3)
			mustCommit(t, a, b)

			call := revealCall(b.owner, b.cost())
			d := b.disclosure(common.Hash{})
			tt.mutate(b, &call, &d)

			err := a.Reveal(call, d)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, a.Len())
			assert.Empty(t, ledger.captured)
		})
	}
}

func TestReveal_AlreadyRevealed(t *testing.T) {
	a, ledger := newTestAuction(t, 10)
	b := newBid(bidder(1), 4, 3)
	mustCommit(t, a, b)
	mustReveal(t, a, b, common.Hash{})

	err := a.Reveal(revealCall(b.owner, b.cost()), b.disclosure(b.hash))
	assert.ErrorIs(t, err, ErrAlreadyRevealed)
	assert.Equal(t, 1, a.Len())
	assert.True(t, ledger.captured[b.owner].Equal(b.cost()), "payment captured once")
}

func TestReveal_OverpaymentIsCapturedInFull(t *testing.T) {
	a, ledger := newTestAuction(t, 10)
	b := newBid(bidder(1), 10, 1)
	mustCommit(t, a, b)

	require.NoError(t, a.Reveal(revealCall(b.owner, decimal.NewFromInt(20)), b.disclosure(common.Hash{})))

	o, _ := a.Order(b.hash)
	assert.True(t, o.Paid.Equal(decimal.NewFromInt(20)))
	assert.True(t, ledger.captured[b.owner].Equal(decimal.NewFromInt(20)))
}

func TestReveal_CaptureFailureRollsBack(t *testing.T) {
	a, ledger := newTestAuction(t, 10)
	low := newBid(bidder(1), 1, 1)
	high := newBid(bidder(2), 1, 9)
	mid := newBid(bidder(3), 1, 5)
	for _, b := range []bid{low, high, mid} {
		mustCommit(t, a, b)
	}
	mustReveal(t, a, low, common.Hash{})
	mustReveal(t, a, high, low.hash)

	ledger.failCapture = true
	err := a.Reveal(revealCall(mid.owner, mid.cost()), mid.disclosure(low.hash))
	assert.ErrorIs(t, err, ErrLedgerFailure)

	_, inBook := a.Order(mid.hash)
	assert.False(t, inBook)
	assert.Equal(t, []uint64{1, 9}, pricesOf(a.Orders()))
	require.NoError(t, a.CheckInvariants())

	ledger.failCapture = false
	mustReveal(t, a, mid, high.hash)
	assert.Equal(t, []uint64{1, 5, 9}, pricesOf(a.Orders()))
	require.NoError(t, a.CheckInvariants())
}

func TestReveal_NewHeadAndTail(t *testing.T) {
	a, _ := newTestAuction(t, 10)
	mid := newBid(bidder(1), 1, 5)
	low := newBid(bidder(2), 1, 1)
	high := newBid(bidder(3), 1, 9)
	for _, b := range []bid{mid, low, high} {
		mustCommit(t, a, b)
	}

	mustReveal(t, a, mid, common.Hash{})
	mustReveal(t, a, low, mid.hash)
	assert.Equal(t, low.hash, a.Head())
	assert.Equal(t, mid.hash, a.Tail())

	mustReveal(t, a, high, low.hash)
	assert.Equal(t, low.hash, a.Head())
	assert.Equal(t, high.hash, a.Tail())

	o, _ := a.Order(mid.hash)
	assert.Equal(t, low.hash, o.Prior)
	assert.Equal(t, high.hash, o.Next)
	require.NoError(t, a.CheckInvariants())
}

func TestReveal_EqualPriceRanksEarlierCommitmentHigher(t *testing.T) {
	a, _ := newTestAuction(t, 10)
	early := newBid(bidder(1), 1, 4)
	late := newBid(bidder(2), 2, 4)
	mustCommit(t, a, early)
	mustCommit(t, a, late)

	// Reveal order is the reverse of commitment order.
	mustReveal(t, a, late, common.Hash{})
	mustReveal(t, a, early, late.hash)

	assert.Equal(t, late.hash, a.Head())
	assert.Equal(t, early.hash, a.Tail())
	require.NoError(t, a.CheckInvariants())
}

func TestReveal_TieBreakFollowsReactivation(t *testing.T) {
	a, _ := newTestAuction(t, 10)
	first := newBid(bidder(1), 1, 4)
	second := newBid(bidder(2), 1, 4)
	mustCommit(t, a, first)
	mustCommit(t, a, second)

	// Withdrawing and re-adding sends first to the back of the queue.
	require.NoError(t, a.Submit(commitCall(first.owner), first.hash, IntentRemove, nil))
	mustCommit(t, a, first)

	mustReveal(t, a, first, common.Hash{})
	mustReveal(t, a, second, first.hash)

	assert.Equal(t, first.hash, a.Head())
	assert.Equal(t, second.hash, a.Tail())
}

// randomBids commits n bids with prices drawn from a narrow range so that
// ties are common.
func randomBids(t *testing.T, a *Auction, rng *rand.Rand, n int) []bid {
	t.Helper()
	bids := make([]bid, n)
	for i := range bids {
		bids[i] = newBid(bidder(i), rng.Uint64N(5)+1, rng.Uint64N(8)+1)
		mustCommit(t, a, bids[i])
	}
	rng.Shuffle(len(bids), func(i, j int) { bids[i], bids[j] = bids[j], bids[i] })
	return bids
}

func TestReveal_SortedUnderArbitraryHints(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	a, _ := newTestAuction(t, 50)
	bids := randomBids(t, a, rng, 60)

	var revealed []common.Hash
	for _, b := range bids {
		hint := common.Hash{}
		if len(revealed) > 0 {
			hint = revealed[rng.IntN(len(revealed))]
		}
		mustReveal(t, a, b, hint)
		revealed = append(revealed, b.hash)
		require.NoError(t, a.CheckInvariants())
	}

	orders := a.Orders()
	require.Len(t, orders, len(bids))
	for i := 1; i < len(orders); i++ {
		prev, cur := orders[i-1], orders[i]
		if prev.Price == cur.Price {
			assert.Greater(t, prev.Sequence, cur.Sequence, "equal prices: earlier commitment ranks higher")
		} else {
			assert.Less(t, prev.Price, cur.Price)
		}
	}
}

func TestReveal_HintDoesNotAffectFinalOrder(t *testing.T) {
	build := func(pick func(a *Auction, b bid, revealed []common.Hash) common.Hash) []common.Hash {
		rng := rand.New(rand.NewPCG(3, 5))
		a, _ := newTestAuction(t, 50)
		bids := randomBids(t, a, rng, 40)

		var revealed []common.Hash
		for _, b := range bids {
			hint := common.Hash{}
			if len(revealed) > 0 {
				hint = pick(a, b, revealed)
			}
			mustReveal(t, a, b, hint)
			revealed = append(revealed, b.hash)
		}

		var out []common.Hash
		for _, o := range a.Orders() {
			out = append(out, o.Hash)
		}
		return out
	}

	alwaysHead := build(func(a *Auction, _ bid, _ []common.Hash) common.Hash { return a.Head() })
	alwaysTail := build(func(a *Auction, _ bid, _ []common.Hash) common.Hash { return a.Tail() })
	best := build(func(a *Auction, b bid, _ []common.Hash) common.Hash {
		c, _ := a.Commitment(b.hash)
		return a.SuggestHint(b.price, c.Sequence)
	})
	oldest := build(func(_ *Auction, _ bid, revealed []common.Hash) common.Hash { return revealed[0] })

	assert.Equal(t, alwaysHead, alwaysTail)
	assert.Equal(t, alwaysHead, best)
	assert.Equal(t, alwaysHead, oldest)
}

func TestReveal_ScaledCost(t *testing.T) {
	ledger := newFakeLedger()
	cfg := testConfig(10)
	cfg.UnitScale = decimal.New(1, 18)
	a, err := New(cfg, Deps{
		Verifier: stubVerifier{},
		Registry: stubRegistry{trustedSigner: true},
		Values:   ledger,
		Shares:   ledger,
	})
	require.NoError(t, err)

	b := newBid(bidder(1), 2, 3)
	mustCommit(t, a, b)

	err = a.Reveal(revealCall(b.owner, decimal.NewFromInt(6)), b.disclosure(common.Hash{}))
	assert.ErrorIs(t, err, ErrInsufficientPayment)

	require.NoError(t, a.Reveal(revealCall(b.owner, decimal.New(6, 18)), b.disclosure(common.Hash{})))
}

func TestReveal_AtRoundOneClose(t *testing.T) {
	a, _ := newTestAuction(t, 10)
	b := newBid(bidder(1), 1, 1)
	mustCommit(t, a, b)

	call := Call{Caller: b.owner, Now: round1Close, Payment: b.cost()}
	require.NoError(t, a.Reveal(call, b.disclosure(common.Hash{})))

	call.Now = round2Close.Add(-time.Nanosecond)
	assert.ErrorIs(t, a.Reveal(call, b.disclosure(b.hash)), ErrAlreadyRevealed)
}
