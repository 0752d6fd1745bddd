package engine

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sealbid/internal/auction"
	"github.com/roach88/sealbid/internal/bidhash"
	"github.com/roach88/sealbid/internal/ledger"
	"github.com/roach88/sealbid/internal/registry"
	"github.com/roach88/sealbid/internal/store"
	"github.com/roach88/sealbid/internal/testutil"
)

// settledAuction runs three bidders through every round against a cap of
// 10: a wins 6 at 5, b is cut to 4 at 4, c loses at 1.
func settledAuction(t *testing.T) (*fixture, []bid) {
	t.Helper()
	f := newFixture(t, 10)
	bids := []bid{f.bid("a", 6, 5), f.bid("b", 6, 4), f.bid("c", 3, 1)}

	for _, b := range bids {
		require.NoError(t, f.commit(b).Err)
	}
	require.Error(t, f.claim(bids[0]).Err)

	f.toReveal()
	for _, b := range bids {
		require.NoError(t, f.reveal(b, f.hintFor(b), int64(b.shares*b.price)).Err)
	}

	f.toSettle()
	for _, b := range bids {
		require.NoError(t, f.claim(b).Err)
	}
	return f, bids
}

func TestReplay_RebuildsLiveState(t *testing.T) {
	f, bids := settledAuction(t)

	var live []auction.Order
	require.NoError(t, f.eng.Inspect(context.Background(), func(a *auction.Auction) {
		live = a.Orders()
	}))

	got, err := Replay(context.Background(), f.store, f.cfg)
	require.NoError(t, err)

	replayed := got.Auction.Orders()
	require.Len(t, replayed, len(live))
	for i := range live {
		assert.True(t, live[i].Paid.Equal(replayed[i].Paid))
		live[i].Paid, replayed[i].Paid = decimal.Zero, decimal.Zero
	}
	assert.Equal(t, live, replayed)
	assert.Equal(t, int64(10), got.LastSeq)
	assert.Equal(t, 9, got.Applied)
	assert.Equal(t, 1, got.Skipped)

	assert.Equal(t, f.shares.TotalSupply(), got.Shares.TotalSupply())
	for _, b := range bids {
		assert.Equal(t, f.shares.BalanceOf(b.owner), got.Shares.BalanceOf(b.owner), b.name)
		assert.True(t, f.escrow.Credit(b.owner).Equal(got.Escrow.Credit(b.owner)), b.name)
	}
	assert.Equal(t, uint64(6), got.Shares.BalanceOf(bids[0].owner))
	assert.Equal(t, uint64(4), got.Shares.BalanceOf(bids[1].owner))
	assert.Equal(t, uint64(0), got.Shares.BalanceOf(bids[2].owner))

	cutoff, ok := got.Auction.Cutoff()
	require.True(t, ok)
	assert.Equal(t, bids[1].hash, cutoff)
}

func TestReplay_EmptyJournal(t *testing.T) {
	f := newFixture(t, 10)

	got, err := Replay(context.Background(), f.store, f.cfg)
	require.NoError(t, err)
	assert.Zero(t, got.Auction.Len())
	assert.Zero(t, got.Applied)
	assert.Equal(t, int64(0), got.LastSeq)
}

type snapshotSource struct{ snap store.Snapshot }

func (s snapshotSource) Load(context.Context) (store.Snapshot, error) { return s.snap, nil }

func loadSnapshot(t *testing.T, f *fixture) store.Snapshot {
	t.Helper()
	snap, err := f.store.Load(context.Background())
	require.NoError(t, err)
	return snap
}

func TestReplay_DetectsAlteredReceipt(t *testing.T) {
	f, bids := settledAuction(t)
	snap := loadSnapshot(t, f)

	for i := range snap.Claims {
		if snap.Claims[i].BidHash == bids[1].hash.Hex() {
			snap.Claims[i].Refund = "0"
		}
	}

	_, err := Replay(context.Background(), snapshotSource{snap}, f.cfg)
	require.Error(t, err)
	assert.True(t, IsReplayError(err))

	var re *ReplayError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, string(KindClaim), re.Kind)
	assert.Equal(t, bids[1].hash.Hex(), re.BidHash)
	assert.Contains(t, re.Want, "refund=0")
	assert.Contains(t, re.Got, "refund=8")
}

func TestReplay_DetectsAlteredArguments(t *testing.T) {
	f, _ := settledAuction(t)
	snap := loadSnapshot(t, f)

	var reveal *store.Operation
	for i := range snap.Operations {
		if snap.Operations[i].Kind == string(KindReveal) {
			reveal = &snap.Operations[i]
			break
		}
	}
	require.NotNil(t, reveal)

	var args map[string]any
	require.NoError(t, json.Unmarshal(reveal.Args, &args))
	args["payment"] = "1000"
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	reveal.Args = raw

	_, err = Replay(context.Background(), snapshotSource{snap}, f.cfg)
	var re *ReplayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, reveal.Seq, re.Seq)
	assert.Contains(t, re.Want, "id ")
}

func TestReplay_DetectsForgedSuccess(t *testing.T) {
	f, _ := settledAuction(t)
	snap := loadSnapshot(t, f)

	// Strip the outcome from the early claim. Its ID no longer matches.
	for i := range snap.Operations {
		if !snap.Operations[i].Succeeded() {
			snap.Operations[i].Outcome = ""
		}
	}

	_, err := Replay(context.Background(), snapshotSource{snap}, f.cfg)
	assert.True(t, IsReplayError(err))
}

func TestReplay_SourceFailure(t *testing.T) {
	_, err := Replay(context.Background(), failingSource{}, testConfig(1))
	require.Error(t, err)
	assert.False(t, IsReplayError(err))
}

type failingSource struct{}

func (failingSource) Load(context.Context) (store.Snapshot, error) {
	return store.Snapshot{}, errors.New("journal unreadable")
}

func TestDecodeRequest_RoundTripsArgs(t *testing.T) {
	caller := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	r := Submit(caller, common.HexToHash("0x01"), auction.IntentRemove, []byte{1, 2, 3})

	raw, err := json.Marshal(r.args())
	require.NoError(t, err)

	got, err := decodeRequest(string(KindSubmit), caller.Hex(), raw)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestDecodeRequest_Rejects(t *testing.T) {
	caller := common.HexToAddress("0x00000000000000000000000000000000000000aa").Hex()

	_, err := decodeRequest("bid", caller, []byte(`{}`))
	assert.ErrorContains(t, err, "unknown operation kind")

	_, err = decodeRequest(string(KindClaim), "not-an-address", []byte(`{}`))
	assert.ErrorContains(t, err, "invalid caller")

	_, err = decodeRequest(string(KindReveal), caller, []byte(`{"payment":"lots"}`))
	assert.ErrorContains(t, err, "payment")
}

func TestResume_ContinuesJournal(t *testing.T) {
	f := newFixture(t, 10)
	a, b := f.bid("a", 2, 3), f.bid("b", 1, 1)
	require.NoError(t, f.commit(a).Err)
	require.Error(t, f.do(Submit(b.owner, b.hash, auction.IntentAdd, nil)).Err)

	admin := testutil.Address(t, "admin")
	reg := registry.New(admin)
	require.NoError(t, reg.AddKey(admin, testutil.Address(t, "kyc"), "KYC desk"))

	e, replayed, err := Resume(context.Background(), f.store, f.cfg, registry.ECDSAVerifier{}, reg,
		WithJournal(f.store),
		WithTimeSource(f.clock),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(2), replayed.LastSeq)
	assert.Equal(t, 1, replayed.Applied)
	assert.Equal(t, 1, replayed.Skipped)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	resp := e.Do(ctx, Submit(b.owner, b.hash, auction.IntentAdd, testutil.Certificate(t, "stranger", b.owner)))
	assert.ErrorIs(t, resp.Err, auction.ErrUnauthorized, "new submissions are certified")
	assert.Equal(t, int64(3), resp.Seq)

	resp = e.Do(ctx, Submit(b.owner, b.hash, auction.IntentAdd, testutil.Certificate(t, "kyc", b.owner)))
	require.NoError(t, resp.Err)
	assert.Equal(t, int64(4), resp.Seq)

	var seq uint64
	require.NoError(t, e.Inspect(ctx, func(a *auction.Auction) {
		c, ok := a.Commitment(b.hash)
		require.True(t, ok)
		seq = c.Sequence
	}))
	assert.Equal(t, uint64(2), seq, "commitment sequence continues after the replayed one")

	last, err := f.store.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), last)
}

func TestResume_ClockNeverPrecedesJournal(t *testing.T) {
	f := newFixture(t, 10)
	a := f.bid("a", 2, 3)
	require.NoError(t, f.commit(a).Err)
	f.toReveal()
	require.NoError(t, f.reveal(a, common.Hash{}, 6).Err)

	// The host clock has stepped back into round one.
	e, _, err := Resume(context.Background(), f.store, f.cfg, registry.TrustingVerifier{}, registry.Open{},
		WithTimeSource(testutil.NewFakeClock(epoch)),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	b := f.bid("b", 1, 1)
	resp := e.Do(ctx, Submit(b.owner, b.hash, auction.IntentAdd, nil))
	assert.ErrorIs(t, resp.Err, auction.ErrPhaseViolation)
}

// refundFailingEscrow captures payments but refuses every refund credit.
type refundFailingEscrow struct{ *ledger.Escrow }

func (refundFailingEscrow) CreditRefund(common.Address, decimal.Decimal) error {
	return errors.New("ledger offline")
}

func TestReplay_WithholdsRefundThatFailedLive(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := testConfig(10)
	escrow, shares := ledger.NewEscrow(), ledger.NewShares(cfg.SupplyCap)
	a, err := auction.New(cfg, auction.Deps{
		Verifier: testVerifier{}, Registry: testRegistry{},
		Values: refundFailingEscrow{escrow}, Shares: shares,
	})
	require.NoError(t, err)

	clock := testutil.NewFakeClock(epoch)
	e := New(a, WithJournal(st), WithTimeSource(clock))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	owner := testutil.Address(t, "x")
	nonce := common.HexToHash("0x01")
	hash := bidhash.DigestUint(4, 2, nonce)

	require.NoError(t, e.Do(ctx, Submit(owner, hash, auction.IntentAdd, nil)).Err)
	clock.Set(round1Close.Add(time.Minute))
	require.NoError(t, e.Do(ctx, Reveal(owner, auction.Disclosure{
		Hash: hash, Shares: 4, Price: 2, Nonce: nonce,
	}, decimal.NewFromInt(12))).Err)
	clock.Set(round2Close.Add(time.Minute))

	resp := e.Do(ctx, Claim(owner, hash))
	assert.ErrorIs(t, resp.Err, auction.ErrLedgerFailure)
	require.NotNil(t, resp.Receipt)
	assert.Equal(t, "4", resp.Receipt.Refund.String())
	require.True(t, escrow.Credit(owner).IsZero())

	got, err := Replay(context.Background(), st, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got.Shares.BalanceOf(owner))
	assert.True(t, got.Escrow.Credit(owner).IsZero(), "refund stays withheld, got %s", got.Escrow.Credit(owner))
	assert.True(t, escrow.Escrowed().Equal(got.Escrow.Escrowed()))
}
