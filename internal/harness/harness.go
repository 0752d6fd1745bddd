package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sealbid/internal/auction"
	"github.com/roach88/sealbid/internal/bidhash"
	"github.com/roach88/sealbid/internal/config"
	"github.com/roach88/sealbid/internal/engine"
	"github.com/roach88/sealbid/internal/ledger"
	"github.com/roach88/sealbid/internal/registry"
	"github.com/roach88/sealbid/internal/store"
	"github.com/roach88/sealbid/internal/testutil"
)

// AdminName is the party that registers the scenario's signers.
const AdminName = "admin"

// Harness holds the live state of one scenario run.
type Harness struct {
	scenario *Scenario
	cfg      *config.Config
	store    *store.Store
	engine   *engine.Engine
	clock    *testutil.FakeClock
	escrow   *ledger.Escrow
	shares   *ledger.Shares

	parties map[string]common.Address
	names   map[common.Address]string
	bids    map[string]sealedBid
}

type sealedBid struct {
	BidSpec
	nonce common.Hash
	hash  common.Hash
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal. A mismatch is recorded
// in the result; an error means the scenario could not run at all.
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(s *Scenario) (*Harness, error) {
	raw, err := yaml.Marshal(&s.Config)
	if err != nil {
		return nil, fmt.Errorf("encode scenario config: %w", err)
	}
	cfg, err := config.Parse(s.Name+".config", raw)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		scenario: s,
		cfg:      cfg,
		clock:    testutil.NewFakeClock(cfg.Round1Close.Add(-time.Hour)),
		escrow:   ledger.NewEscrow(),
		shares:   ledger.NewShares(cfg.SupplyCap),
		parties:  make(map[string]common.Address),
		names:    make(map[common.Address]string),
		bids:     make(map[string]sealedBid, len(s.Bids)),
	}

	if cfg.Admin == (common.Address{}) {
		if cfg.Admin, err = h.party(AdminName); err != nil {
			return nil, err
		}
	}
	for _, name := range s.Signers {
		addr, err := h.party(name)
		if err != nil {
			return nil, err
		}
		cfg.Signers = append(cfg.Signers, config.Signer{Address: addr, Label: name})
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	for label, bs := range s.Bids {
		if _, err := h.party(bs.Bidder); err != nil {
			return nil, err
		}
		nonce := crypto.Keccak256Hash([]byte("sealbid/scenario/nonce/" + label))
		h.bids[label] = sealedBid{
			BidSpec: bs,
			nonce:   nonce,
			hash:    bidhash.DigestUint(bs.Shares, bs.Price, nonce),
		}
	}

	a, err := auction.New(cfg.Auction(), auction.Deps{
		Verifier: registry.ECDSAVerifier{},
		Registry: reg,
		Values:   h.escrow,
		Shares:   h.shares,
	})
	if err != nil {
		return nil, err
	}

	h.store, err = store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	h.engine = engine.New(a,
		engine.WithJournal(h.store),
		engine.WithTimeSource(h.clock),
		engine.WithRequestIDs(testutil.NewSequentialIDs(s.Name)),
	)
	return h, nil
}

// party resolves a party name to its derived address.
func (h *Harness) party(name string) (common.Address, error) {
	if addr, ok := h.parties[name]; ok {
		return addr, nil
	}
	key, err := testutil.DeriveKey(name)
	if err != nil {
		return common.Address{}, err
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	h.parties[name] = addr
	h.names[addr] = name
	return addr, nil
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	switch step.Phase {
	case PhaseReveal:
		h.moveTo(h.cfg.Round1Close)
	case PhaseSettle:
		h.moveTo(h.cfg.Round2Close)
	}
	if step.Invoke == "" {
		return nil
	}
	h.clock.Advance(time.Second)

	req, err := h.request(ctx, step)
	if err != nil {
		return err
	}
	resp := h.engine.Do(ctx, req)

	event := TraceEvent{
		Seq:     resp.Seq,
		Kind:    step.Invoke,
		Bid:     step.Bid,
		Caller:  h.names[req.Caller],
		Outcome: OutcomeOK,
	}
	if resp.Err != nil {
		event.Outcome = string(auction.CodeOf(resp.Err))
		if event.Outcome == "" {
			return resp.Err
		}
	}
	if resp.Receipt != nil {
		event.Receipt = &TraceReceipt{
			Winner: resp.Receipt.Winner,
			Shares: resp.Receipt.Shares,
			Cost:   resp.Receipt.Cost.String(),
			Refund: resp.Receipt.Refund.String(),
		}
	}
	result.Trace = append(result.Trace, event)

	want := step.Expect
	if want == "" {
		want = OutcomeOK
	}
	if event.Outcome != want {
		result.AddError(fmt.Sprintf("steps[%d] %s %s: expected %s, got %s (%v)",
			i, step.Invoke, step.Bid, want, event.Outcome, resp.Err))
	}
	if step.Receipt != nil {
		for _, msg := range matchReceipt(step.Receipt, event.Receipt) {
			result.AddError(fmt.Sprintf("steps[%d] claim %s: %s", i, step.Bid, msg))
		}
	}
	return nil
}

func (h *Harness) moveTo(t time.Time) {
	if h.clock.Now().Before(t) {
		h.clock.Set(t)
	}
}

func (h *Harness) request(ctx context.Context, step Step) (engine.Request, error) {
	bid := h.bids[step.Bid]

	callerName := bid.Bidder
	if step.As != "" {
		callerName = step.As
	}
	caller, err := h.party(callerName)
	if err != nil {
		return engine.Request{}, err
	}

	switch step.Invoke {
	case InvokeSubmit:
		cert, err := h.certificate(step, callerName)
		if err != nil {
			return engine.Request{}, err
		}
		intent := auction.IntentAdd
		if step.Intent != nil {
			intent = auction.Intent(*step.Intent)
		}
		return engine.Submit(caller, bid.hash, intent, cert), nil

	case InvokeWithdraw:
		return engine.Submit(caller, bid.hash, auction.IntentRemove, nil), nil

	case InvokeReveal:
		d := auction.Disclosure{Hash: bid.hash, Shares: bid.Shares, Price: bid.Price, Nonce: bid.nonce}
		if step.Shares != nil {
			d.Shares = *step.Shares
		}
		if step.Price != nil {
			d.Price = *step.Price
		}
		if step.Hint != "" {
			d.Hint = h.bids[step.Hint].hash
		} else if d.Hint, err = h.suggestHint(ctx, bid); err != nil {
			return engine.Request{}, err
		}

		payment := h.cfg.Auction().Cost(d.Shares, d.Price)
		if step.Payment != "" {
			if payment, err = decimal.NewFromString(step.Payment); err != nil {
				return engine.Request{}, fmt.Errorf("payment: %w", err)
			}
		}
		return engine.Reveal(caller, d, payment), nil

	default:
		return engine.Claim(caller, bid.hash), nil
	}
}

// certificate issues the submit certificate the step asks for.
func (h *Harness) certificate(step Step, callerName string) ([]byte, error) {
	issuer := step.Certificate
	if issuer == NoCertificate {
		return nil, nil
	}
	if issuer == "" {
		if len(h.scenario.Signers) == 0 {
			return nil, nil
		}
		issuer = h.scenario.Signers[0]
	}

	claimantName := callerName
	if step.For != "" {
		claimantName = step.For
	}
	claimant, err := h.party(claimantName)
	if err != nil {
		return nil, err
	}
	key, err := testutil.DeriveKey(issuer)
	if err != nil {
		return nil, err
	}
	return registry.Issue(key, claimant)
}

// suggestHint asks the auction for a hint, as a client would before
// revealing.
func (h *Harness) suggestHint(ctx context.Context, bid sealedBid) (common.Hash, error) {
	var hint common.Hash
	err := h.engine.Inspect(ctx, func(a *auction.Auction) {
		c, _ := a.Commitment(bid.hash)
		hint = a.SuggestHint(bid.Price, c.Sequence)
	})
	return hint, err
}

// label maps an order hash back to its bid label.
func (h *Harness) label(hash common.Hash) string {
	for label, b := range h.bids {
		if b.hash == hash {
			return label
		}
	}
	return hash.Hex()
}

func matchReceipt(want *ReceiptExpect, got *TraceReceipt) []string {
	if got == nil {
		return []string{"expected a receipt, got none"}
	}
	var errs []string
	if want.Winner != nil && *want.Winner != got.Winner {
		errs = append(errs, fmt.Sprintf("winner: expected %t, got %t", *want.Winner, got.Winner))
	}
	if want.Shares != nil && *want.Shares != got.Shares {
		errs = append(errs, fmt.Sprintf("shares: expected %d, got %d", *want.Shares, got.Shares))
	}
	if want.Cost != "" && !decimalEqual(want.Cost, got.Cost) {
		errs = append(errs, fmt.Sprintf("cost: expected %s, got %s", want.Cost, got.Cost))
	}
	if want.Refund != "" && !decimalEqual(want.Refund, got.Refund) {
		errs = append(errs, fmt.Sprintf("refund: expected %s, got %s", want.Refund, got.Refund))
	}
	return errs
}

func decimalEqual(a, b string) bool {
	x, err := decimal.NewFromString(a)
	if err != nil {
		return false
	}
	y, err := decimal.NewFromString(b)
	if err != nil {
		return false
	}
	return x.Equal(y)
}
