package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/sealbid/internal/auction"
)

// Shares is a fungible share register with a fixed maximum supply.
type Shares struct {
	mu       sync.Mutex
	cap      uint64
	supply   uint64
	balances map[common.Address]uint64
}

// NewShares returns a register whose total supply cannot exceed supplyCap.
func NewShares(supplyCap uint64) *Shares {
	return &Shares{cap: supplyCap, balances: make(map[common.Address]uint64)}
}

// Mint creates amount new shares for to.
func (s *Shares) Mint(to common.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("mint to %s: %w", to.Hex(), ErrInvalidAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount > s.cap-s.supply {
		return fmt.Errorf("mint %d to %s (supply %d of %d): %w", amount, to.Hex(), s.supply, s.cap, ErrSupplyExceeded)
	}
	s.supply += amount
	s.balances[to] += amount
	return nil
}

// Transfer moves amount shares from one holder to another.
func (s *Shares) Transfer(from, to common.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("transfer from %s: %w", from.Hex(), ErrInvalidAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[from] < amount {
		return fmt.Errorf("transfer %d from %s (balance %d): %w", amount, from.Hex(), s.balances[from], ErrInsufficientBalance)
	}
	s.balances[from] -= amount
	if s.balances[from] == 0 {
		delete(s.balances, from)
	}
	s.balances[to] += amount
	return nil
}

// BalanceOf returns holder's share count.
func (s *Shares) BalanceOf(holder common.Address) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[holder]
}

// TotalSupply is the number of shares minted so far.
func (s *Shares) TotalSupply() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supply
}

// Holders returns every address with a non-zero balance, in address order.
func (s *Shares) Holders() []common.Address {
	s.mu.Lock()
	out := make([]common.Address, 0, len(s.balances))
	for h := range s.balances {
		out = append(out, h)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

var _ auction.ShareLedger = (*Shares)(nil)
