package auction

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sealbid/internal/bidhash"
)

var (
	epoch       = time.Date(2022, 4, 13, 0, 0, 0, 0, time.UTC)
	round1Close = epoch.Add(7 * 24 * time.Hour)
	round2Close = round1Close.Add(7 * 24 * time.Hour)

	commitTime = epoch.Add(time.Hour)
	revealTime = round1Close.Add(1000 * time.Second)
	settleTime = round2Close.Add(1000 * time.Second)

	trustedSigner = common.HexToAddress("0x00000000000000000000000000000000000000c4")
)

// stubVerifier treats the certificate bytes as the signer address. The
// literal certificate "forged" fails verification.
type stubVerifier struct{}

func (stubVerifier) Verify(certificate []byte, _ common.Address) (common.Address, error) {
	if string(certificate) == "forged" {
		return common.Address{}, errors.New("signature does not recover")
	}
	return common.BytesToAddress(certificate), nil
}

type stubRegistry map[common.Address]bool

func (r stubRegistry) IsAuthorized(signer common.Address) bool { return r[signer] }

// fakeLedger records every value and share movement.
type fakeLedger struct {
	captured map[common.Address]decimal.Decimal
	refunds  map[common.Address]decimal.Decimal
	minted   map[common.Address]uint64
	mints    int

	failCapture bool
	failMint    bool
	failRefund  bool

	// onMint runs before a mint is recorded.
	onMint func(to common.Address)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		captured: make(map[common.Address]decimal.Decimal),
		refunds:  make(map[common.Address]decimal.Decimal),
		minted:   make(map[common.Address]uint64),
	}
}

func (l *fakeLedger) Capture(from common.Address, amount decimal.Decimal) error {
	if l.failCapture {
		return errors.New("capture refused")
	}
	l.captured[from] = l.captured[from].Add(amount)
	return nil
}

func (l *fakeLedger) CreditRefund(to common.Address, amount decimal.Decimal) error {
	if l.failRefund {
		return errors.New("refund refused")
	}
	l.refunds[to] = l.refunds[to].Add(amount)
	return nil
}

func (l *fakeLedger) Mint(to common.Address, amount uint64) error {
	if l.failMint {
		return errors.New("mint refused")
	}
	if l.onMint != nil {
		l.onMint(to)
	}
	l.minted[to] += amount
	l.mints++
	return nil
}

func (l *fakeLedger) totalMinted() uint64 {
	var total uint64
	for _, n := range l.minted {
		total += n
	}
	return total
}

func testConfig(supplyCap uint64) Config {
	return Config{
		Round1Close: round1Close,
		Round2Close: round2Close,
		SupplyCap:   supplyCap,
	}
}

func newTestAuction(t *testing.T, supplyCap uint64) (*Auction, *fakeLedger) {
	t.Helper()
	ledger := newFakeLedger()
	a, err := New(testConfig(supplyCap), Deps{
		Verifier: stubVerifier{},
		Registry: stubRegistry{trustedSigner: true},
		Values:   ledger,
		Shares:   ledger,
	})
	require.NoError(t, err)
	return a, ledger
}

func bidder(n int) common.Address {
	return common.HexToAddress(fmt.Sprintf("0x%040x", 0xb1d000+n))
}

func certificate() []byte {
	return trustedSigner.Bytes()
}

func nonceFor(owner common.Address, shares, price uint64) common.Hash {
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("%s/%d/%d", owner.Hex(), shares, price)))
}

// bid is a committed-but-unrevealed bid held by a test.
type bid struct {
	owner  common.Address
	shares uint64
	price  uint64
	nonce  common.Hash
	hash   common.Hash
}

func newBid(owner common.Address, shares, price uint64) bid {
	nonce := nonceFor(owner, shares, price)
	return bid{
		owner:  owner,
		shares: shares,
		price:  price,
		nonce:  nonce,
		hash:   bidhash.DigestUint(shares, price, nonce),
	}
}

func (b bid) disclosure(hint common.Hash) Disclosure {
	return Disclosure{Hash: b.hash, Shares: b.shares, Price: b.price, Nonce: b.nonce, Hint: hint}
}

func (b bid) cost() decimal.Decimal {
	return decimal.NewFromUint64(b.shares * b.price)
}

func commitCall(who common.Address) Call {
	return Call{Caller: who, Now: commitTime}
}

func revealCall(who common.Address, payment decimal.Decimal) Call {
	return Call{Caller: who, Now: revealTime, Payment: payment}
}

func settleCall(who common.Address) Call {
	return Call{Caller: who, Now: settleTime}
}

func mustCommit(t *testing.T, a *Auction, b bid) {
	t.Helper()
	require.NoError(t, a.Submit(commitCall(b.owner), b.hash, IntentAdd, certificate()))
}

func mustReveal(t *testing.T, a *Auction, b bid, hint common.Hash) {
	t.Helper()
	require.NoError(t, a.Reveal(revealCall(b.owner, b.cost()), b.disclosure(hint)))
}

// revealWithBestHint reveals b using the advisory hint for its position.
func revealWithBestHint(t *testing.T, a *Auction, b bid) {
	t.Helper()
	c, ok := a.Commitment(b.hash)
	require.True(t, ok)
	mustReveal(t, a, b, a.SuggestHint(b.price, c.Sequence))
}

func pricesOf(orders []Order) []uint64 {
	out := make([]uint64, len(orders))
	for i, o := range orders {
		out[i] = o.Price
	}
	return out
}
