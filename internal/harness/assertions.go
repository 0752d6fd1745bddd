package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/roach88/sealbid/internal/auction"
	"github.com/roach88/sealbid/internal/engine"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// finalState is read once on the engine goroutine.
type finalState struct {
	orders    []auction.Order
	cutoff    common.Hash
	hasCutoff bool
	invariant error
}

// evaluateAssertions checks every assertion and returns one message per
// failure.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	if len(assertions) == 0 {
		return nil
	}

	var st finalState
	if err := h.engine.Inspect(ctx, func(a *auction.Auction) {
		st.orders = a.Orders()
		st.cutoff, st.hasCutoff = a.Cutoff()
		st.invariant = a.CheckInvariants()
	}); err != nil {
		return []string{fmt.Sprintf("read final state: %v", err)}
	}

	var errs []string
	if st.invariant != nil {
		errs = append(errs, fmt.Sprintf("book invariants: %v", st.invariant))
	}
	for i, a := range assertions {
		if err := h.evaluate(ctx, a, &st); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion, st *finalState) error {
	switch a.Type {
	case AssertBookOrder:
		got := make([]string, len(st.orders))
		for i, o := range st.orders {
			got[i] = h.label(o.Hash)
		}
		if strings.Join(got, ",") != strings.Join(a.Bids, ",") {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Bids), Actual: fmt.Sprint(got)}
		}

	case AssertCutoff:
		actual := "none"
		if st.hasCutoff {
			actual = h.label(st.cutoff)
		}
		if actual != a.Bid {
			return &AssertionError{Type: a.Type, Expected: a.Bid, Actual: actual}
		}

	case AssertBalance:
		owner, err := h.party(a.Bidder)
		if err != nil {
			return err
		}
		if got := h.shares.BalanceOf(owner); got != *a.Shares {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s holds %d", a.Bidder, *a.Shares),
				Actual:   fmt.Sprintf("%s holds %d", a.Bidder, got),
			}
		}

	case AssertCredit:
		owner, err := h.party(a.Bidder)
		if err != nil {
			return err
		}
		return compareAmount(a.Type, a.Bidder+" credit", a.Amount, h.escrow.Credit(owner))

	case AssertEscrowed:
		return compareAmount(a.Type, "escrow", a.Amount, h.escrow.Escrowed())

	case AssertSupply:
		if got := h.shares.TotalSupply(); got != *a.Shares {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(*a.Shares), Actual: fmt.Sprint(got)}
		}

	case AssertJournal:
		snap, err := h.store.Load(ctx)
		if err != nil {
			return err
		}
		if a.Count != nil && len(snap.Operations) != *a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d operations", *a.Count),
				Actual:   fmt.Sprintf("%d operations", len(snap.Operations)),
			}
		}
		if a.Rejected != nil && snap.Rejected != *a.Rejected {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d rejected", *a.Rejected),
				Actual:   fmt.Sprintf("%d rejected", snap.Rejected),
			}
		}

	case AssertReplay:
		return h.assertReplay(ctx, st)

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// assertReplay rebuilds the auction from the journal and compares it with
// the live one.
func (h *Harness) assertReplay(ctx context.Context, st *finalState) error {
	got, err := engine.Replay(ctx, h.store, h.cfg.Auction())
	if err != nil {
		return &AssertionError{Type: AssertReplay, Expected: "journal replays cleanly", Actual: err.Error()}
	}

	replayed := got.Auction.Orders()
	if len(replayed) != len(st.orders) {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: fmt.Sprintf("%d orders", len(st.orders)),
			Actual:   fmt.Sprintf("%d orders", len(replayed)),
		}
	}
	for i := range replayed {
		live, re := st.orders[i], replayed[i]
		if live.Hash != re.Hash || live.Claimed != re.Claimed {
			return &AssertionError{
				Type:     AssertReplay,
				Expected: fmt.Sprintf("order %d is %s (claimed=%t)", i, h.label(live.Hash), live.Claimed),
				Actual:   fmt.Sprintf("order %d is %s (claimed=%t)", i, h.label(re.Hash), re.Claimed),
			}
		}
	}
	if got.Shares.TotalSupply() != h.shares.TotalSupply() {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: fmt.Sprintf("supply %d", h.shares.TotalSupply()),
			Actual:   fmt.Sprintf("supply %d", got.Shares.TotalSupply()),
		}
	}
	if !got.Escrow.Escrowed().Equal(h.escrow.Escrowed()) {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: "escrow " + h.escrow.Escrowed().String(),
			Actual:   "escrow " + got.Escrow.Escrowed().String(),
		}
	}
	return nil
}

func compareAmount(typ, what, want string, got decimal.Decimal) error {
	expected, err := decimal.NewFromString(want)
	if err != nil {
		return fmt.Errorf("%s: invalid amount %q: %w", typ, want, err)
	}
	if !expected.Equal(got) {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("%s %s", what, expected),
			Actual:   fmt.Sprintf("%s %s", what, got),
		}
	}
	return nil
}
