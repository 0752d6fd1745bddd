package bidhash

import (
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Bid is everything a bidder must retain between round one and round two.
type Bid struct {
	Shares decimal.Decimal
	Price  decimal.Decimal
	Nonce  common.Hash
	Hash   common.Hash

	// Cost is shares × price × scale, the minimum payment (in ledger base
	// units) that must accompany the reveal.
	Cost decimal.Decimal
}

// NewBid seals a bid with a fresh random nonce.
func NewBid(shares, price, scale decimal.Decimal) (Bid, error) {
	nonce, err := NewNonce()
	if err != nil {
		return Bid{}, err
	}
	return NewBidWithNonce(shares, price, scale, nonce)
}

// NewBidWithNonce seals a bid with a caller-supplied nonce. Shares and price
// must be whole numbers in (0, 2^64), the range a reveal accepts.
func NewBidWithNonce(shares, price, scale decimal.Decimal, nonce common.Hash) (Bid, error) {
	if err := checkQuantity("shares", shares); err != nil {
		return Bid{}, err
	}
	if err := checkQuantity("price", price); err != nil {
		return Bid{}, err
	}
	if !scale.IsPositive() {
		return Bid{}, errors.New("new bid: scale must be positive")
	}
	return Bid{
		Shares: shares,
		Price:  price,
		Nonce:  nonce,
		Hash:   Digest(shares, price, nonce),
		Cost:   shares.Mul(price).Mul(scale),
	}, nil
}

var maxQuantity = decimal.NewFromUint64(math.MaxUint64)

func checkQuantity(name string, d decimal.Decimal) error {
	switch {
	case !d.IsPositive():
		return fmt.Errorf("new bid: %s must be positive, got %s", name, d)
	case !d.IsInteger():
		return fmt.Errorf("new bid: %s must be a whole number, got %s", name, d)
	case d.GreaterThan(maxQuantity):
		return fmt.Errorf("new bid: %s exceeds %d, got %s", name, uint64(math.MaxUint64), d)
	}
	return nil
}
