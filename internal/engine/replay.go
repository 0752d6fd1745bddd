package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/roach88/sealbid/internal/auction"
	"github.com/roach88/sealbid/internal/journal"
	"github.com/roach88/sealbid/internal/ledger"
	"github.com/roach88/sealbid/internal/registry"
	"github.com/roach88/sealbid/internal/store"
)

// Source provides a journal snapshot. *store.Store implements it.
type Source interface {
	Load(ctx context.Context) (store.Snapshot, error)
}

// ReplayError reports a journaled operation whose re-application did not
// reproduce the recorded result.
type ReplayError struct {
	Seq     int64
	Kind    string
	BidHash string
	Want    string
	Got     string
}

// Error implements the error interface.
func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay diverged at seq %d (%s %s): want %s, got %s",
		e.Seq, e.Kind, e.BidHash, e.Want, e.Got)
}

// Replayed is the state rebuilt from a journal.
type Replayed struct {
	Auction *auction.Auction
	Escrow  *ledger.Escrow
	Shares  *ledger.Shares
	LastSeq int64

	// LastAt is the latest journaled timestamp.
	LastAt time.Time

	// Applied counts re-applied operations; Skipped counts rejected ones,
	// which had no effect the first time either.
	Applied int
	Skipped int
}

// Replay rebuilds an auction from src by re-applying every operation that
// took effect, at its recorded time.
//
// Certificates were checked when each submission was first processed, so
// replay trusts every signer. Each operation's content-addressed ID is
// recomputed, each outcome must match, and each settled claim must
// reproduce its recorded receipt.
func Replay(ctx context.Context, src Source, cfg auction.Config) (*Replayed, error) {
	return replay(ctx, src, cfg, registry.TrustingVerifier{}, registry.Open{})
}

// Resume replays src and returns an engine that continues its journal.
// Replayed submissions are trusted; new ones are certified by verifier
// and reg. The engine's sequence resumes after the last journaled one.
func Resume(ctx context.Context, src Source, cfg auction.Config, verifier auction.Verifier, reg auction.Registry, opts ...Option) (*Engine, *Replayed, error) {
	g := &gate{verifier: verifier, registry: reg, trusting: true}
	out, err := replay(ctx, src, cfg, g, g)
	if err != nil {
		return nil, nil, err
	}
	g.trusting = false

	opts = append([]Option{WithClock(NewClockAt(out.LastSeq))}, opts...)
	e := New(out.Auction, opts...)
	e.time.last = out.LastAt
	return e, out, nil
}

// gate trusts every certificate until replay completes.
type gate struct {
	verifier auction.Verifier
	registry auction.Registry
	trusting bool
}

func (g *gate) Verify(certificate []byte, claimant common.Address) (common.Address, error) {
	if g.trusting {
		return common.Address{}, nil
	}
	return g.verifier.Verify(certificate, claimant)
}

func (g *gate) IsAuthorized(signer common.Address) bool {
	return g.trusting || g.registry.IsAuthorized(signer)
}

func replay(ctx context.Context, src Source, cfg auction.Config, verifier auction.Verifier, reg auction.Registry) (*Replayed, error) {
	snap, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	out := &Replayed{
		Escrow:  ledger.NewEscrow(),
		Shares:  ledger.NewShares(cfg.SupplyCap),
		LastSeq: snap.LastSeq,
	}
	values := &replayValues{Escrow: out.Escrow}
	out.Auction, err = auction.New(cfg, auction.Deps{
		Verifier: verifier,
		Registry: reg,
		Values:   values,
		Shares:   out.Shares,
	})
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	claims := make(map[string]store.Claim, len(snap.Claims))
	for _, c := range snap.Claims {
		claims[c.BidHash] = c
	}

	for _, op := range snap.Operations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r, err := decodeRequest(op.Kind, op.Caller, op.Args)
		if err != nil {
			return nil, fmt.Errorf("replay seq %d: %w", op.Seq, err)
		}
		id, err := journal.OperationID(op.Seq, op.Kind, op.Caller, r.args(), op.Outcome)
		if err != nil {
			return nil, fmt.Errorf("replay seq %d: %w", op.Seq, err)
		}
		if id != op.ID {
			return nil, &ReplayError{Seq: op.Seq, Kind: op.Kind, BidHash: op.BidHash, Want: "id " + op.ID, Got: "id " + id}
		}

		if op.At.After(out.LastAt) {
			out.LastAt = op.At
		}

		claim, settled := claims[op.BidHash]
		settled = settled && op.Kind == string(KindClaim) && claim.OperationSeq == op.Seq
		if !op.Succeeded() && !settled {
			out.Skipped++
			continue
		}

		values.withholdRefund = settled && op.Outcome == string(auction.ErrCodeLedgerFailure)
		receipt, err := apply(out.Auction, r, op.At)
		values.withholdRefund = false
		if err != nil {
			return nil, &ReplayError{Seq: op.Seq, Kind: op.Kind, BidHash: op.BidHash, Want: "success", Got: outcomeOf(err)}
		}
		if settled {
			if err := compareReceipt(op, claim, receipt); err != nil {
				return nil, err
			}
		}
		out.Applied++
	}

	if err := out.Auction.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("replay: book invariants: %w", err)
	}

	slog.Info("journal replayed",
		"applied", out.Applied,
		"skipped", out.Skipped,
		"last_seq", out.LastSeq,
		"orders", out.Auction.Len(),
	)
	return out, nil
}

// replayValues is the escrow seen by a replaying auction. A claim whose
// refund credit failed when first processed is re-applied without it, so
// the rebuilt escrow matches the original one.
type replayValues struct {
	*ledger.Escrow
	withholdRefund bool
}

func (v *replayValues) CreditRefund(to common.Address, amount decimal.Decimal) error {
	if v.withholdRefund {
		return nil
	}
	return v.Escrow.CreditRefund(to, amount)
}

func compareReceipt(op store.Operation, want store.Claim, got *auction.Receipt) error {
	if got == nil {
		return &ReplayError{Seq: op.Seq, Kind: op.Kind, BidHash: op.BidHash, Want: "receipt", Got: "none"}
	}
	if got.Winner != want.Winner || got.Shares != want.Shares ||
		got.Cost.String() != want.Cost || got.Refund.String() != want.Refund {
		return &ReplayError{
			Seq:     op.Seq,
			Kind:    op.Kind,
			BidHash: op.BidHash,
			Want:    fmt.Sprintf("shares=%d cost=%s refund=%s", want.Shares, want.Cost, want.Refund),
			Got:     fmt.Sprintf("shares=%d cost=%s refund=%s", got.Shares, got.Cost, got.Refund),
		}
	}
	return nil
}
