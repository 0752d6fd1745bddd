package ledger

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/roach88/sealbid/internal/auction"
)

// Escrow is the value ledger. Amounts are in ledger base units.
type Escrow struct {
	mu       sync.Mutex
	held     decimal.Decimal
	captured map[common.Address]decimal.Decimal
	credits  map[common.Address]decimal.Decimal
	paidOut  map[common.Address]decimal.Decimal
}

// NewEscrow returns an empty escrow.
func NewEscrow() *Escrow {
	return &Escrow{
		captured: make(map[common.Address]decimal.Decimal),
		credits:  make(map[common.Address]decimal.Decimal),
		paidOut:  make(map[common.Address]decimal.Decimal),
	}
}

// Capture takes amount from the payer into escrow.
func (e *Escrow) Capture(from common.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("capture %s from %s: %w", amount, from.Hex(), ErrInvalidAmount)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.held = e.held.Add(amount)
	e.captured[from] = e.captured[from].Add(amount)
	return nil
}

// CreditRefund records that amount of the escrow is owed back to to.
func (e *Escrow) CreditRefund(to common.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("credit %s to %s: %w", amount, to.Hex(), ErrInvalidAmount)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.outstanding().Add(amount).GreaterThan(e.held) {
		return fmt.Errorf("credit %s to %s: %w", amount, to.Hex(), ErrInsufficientFunds)
	}
	e.credits[to] = e.credits[to].Add(amount)
	return nil
}

// Withdraw pays out and clears owner's refund credit.
func (e *Escrow) Withdraw(owner common.Address) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	amount := e.credits[owner]
	if !amount.IsPositive() {
		return decimal.Zero, ErrNothingToWithdraw
	}
	delete(e.credits, owner)
	e.held = e.held.Sub(amount)
	e.paidOut[owner] = e.paidOut[owner].Add(amount)
	return amount, nil
}

// Escrowed is the total value currently held, credits included.
func (e *Escrow) Escrowed() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.held
}

// Credit is the refund owner can currently withdraw.
func (e *Escrow) Credit(owner common.Address) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.credits[owner]
}

// Captured is the total owner has paid in.
func (e *Escrow) Captured(owner common.Address) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.captured[owner]
}

// Proceeds is the value retained for sold shares: escrow less every
// outstanding credit.
func (e *Escrow) Proceeds() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.held.Sub(e.outstanding())
}

func (e *Escrow) outstanding() decimal.Decimal {
	total := decimal.Zero
	for _, c := range e.credits {
		total = total.Add(c)
	}
	return total
}

var _ auction.ValueLedger = (*Escrow)(nil)
