package auction

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Verifier recovers the signer of a bidder certificate. The certificate
// binds the claimant's identity, so a certificate issued to someone else
// recovers a different signer.
type Verifier interface {
	Verify(certificate []byte, claimant common.Address) (common.Address, error)
}

// Registry answers whether a certificate signer is currently trusted.
type Registry interface {
	IsAuthorized(signer common.Address) bool
}

// ValueLedger holds payments. Capture runs as part of reveal; CreditRefund
// as part of claim. Both have externally visible effects.
type ValueLedger interface {
	Capture(from common.Address, amount decimal.Decimal) error
	CreditRefund(to common.Address, amount decimal.Decimal) error
}

// ShareLedger mints settled shares.
type ShareLedger interface {
	Mint(to common.Address, amount uint64) error
}

// Deps are the external collaborators of an auction.
type Deps struct {
	Verifier Verifier
	Registry Registry
	Values   ValueLedger
	Shares   ShareLedger
}

func (d Deps) validate() error {
	var errs []error
	if d.Verifier == nil {
		errs = append(errs, errors.New("verifier is required"))
	}
	if d.Registry == nil {
		errs = append(errs, errors.New("registry is required"))
	}
	if d.Values == nil {
		errs = append(errs, errors.New("value ledger is required"))
	}
	if d.Shares == nil {
		errs = append(errs, errors.New("share ledger is required"))
	}
	return errors.Join(errs...)
}
