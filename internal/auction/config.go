package auction

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config fixes the auction's deadlines and supply. It is immutable once the
// auction is constructed.
type Config struct {
	// Round1Close ends the commit round; the reveal round starts here.
	Round1Close time.Time

	// Round2Close ends the reveal round; settlement starts here.
	Round2Close time.Time

	// SupplyCap is the total number of shares for sale.
	SupplyCap uint64

	// UnitScale converts price units to ledger base units. Zero means 1.
	UnitScale decimal.Decimal
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.Round1Close.IsZero() || c.Round2Close.IsZero() {
		return errors.New("auction config: both round deadlines are required")
	}
	if !c.Round1Close.Before(c.Round2Close) {
		return fmt.Errorf("auction config: round 1 close (%s) must precede round 2 close (%s)",
			c.Round1Close.Format(time.RFC3339), c.Round2Close.Format(time.RFC3339))
	}
	if c.SupplyCap == 0 {
		return errors.New("auction config: supply cap must be positive")
	}
	if c.UnitScale.IsNegative() {
		return fmt.Errorf("auction config: unit scale must not be negative, got %s", c.UnitScale)
	}
	if !c.UnitScale.IsInteger() {
		return fmt.Errorf("auction config: unit scale must be a whole number of base units, got %s", c.UnitScale)
	}
	return nil
}

// PhaseAt returns the round in effect at now.
func (c Config) PhaseAt(now time.Time) Phase {
	switch {
	case now.Before(c.Round1Close):
		return PhaseCommit
	case now.Before(c.Round2Close):
		return PhaseReveal
	default:
		return PhaseSettle
	}
}

func (c Config) scale() decimal.Decimal {
	if c.UnitScale.IsZero() {
		return decimal.NewFromInt(1)
	}
	return c.UnitScale
}

// Cost is shares × price expressed in ledger base units.
func (c Config) Cost(shares, price uint64) decimal.Decimal {
	return decimal.NewFromUint64(shares).Mul(decimal.NewFromUint64(price)).Mul(c.scale())
}
