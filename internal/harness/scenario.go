package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one end-to-end auction run with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is an auction config document, as accepted by config.Parse.
	Config yaml.Node `yaml:"config"`

	// Signers are the party names the admin registers as certificate
	// signers. The first one issues certificates by default.
	Signers []string `yaml:"signers"`

	// Bids declares every bid by label.
	Bids map[string]BidSpec `yaml:"bids"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions check the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// BidSpec is a sealed bid owned by a named bidder.
type BidSpec struct {
	Bidder string `yaml:"bidder"`
	Shares uint64 `yaml:"shares"`
	Price  uint64 `yaml:"price"`
}

// Step is one request, optionally preceded by a move into a later round.
type Step struct {
	// Phase moves the clock to the start of "reveal" or "settle" before
	// the step runs. It never moves the clock backwards.
	Phase string `yaml:"phase,omitempty"`

	// Invoke is submit, withdraw, reveal or claim. A step with only a
	// Phase just moves the clock.
	Invoke string `yaml:"invoke,omitempty"`

	// Bid is the label of the bid acted on.
	Bid string `yaml:"bid,omitempty"`

	// As overrides the caller; default is the bid's bidder.
	As string `yaml:"as,omitempty"`

	// Certificate names the issuer of the submit certificate. Default is
	// the first signer; "none" sends no certificate.
	Certificate string `yaml:"certificate,omitempty"`

	// For names the party the certificate is issued to; default the caller.
	For string `yaml:"for,omitempty"`

	// Intent overrides the submit intent code.
	Intent *uint8 `yaml:"intent,omitempty"`

	// Shares and Price override the disclosed values on reveal.
	Shares *uint64 `yaml:"shares,omitempty"`
	Price  *uint64 `yaml:"price,omitempty"`

	// Payment is the value sent with a reveal; default the bid's cost.
	Payment string `yaml:"payment,omitempty"`

	// Hint is the label of the bid to use as reveal hint. Default is the
	// hint the auction suggests.
	Hint string `yaml:"hint,omitempty"`

	// Expect is the expected outcome code; default OK.
	Expect string `yaml:"expect,omitempty"`

	// Receipt is checked against the settlement receipt of a claim.
	Receipt *ReceiptExpect `yaml:"receipt,omitempty"`
}

// ReceiptExpect is a subset match against a receipt.
type ReceiptExpect struct {
	Winner *bool   `yaml:"winner,omitempty"`
	Shares *uint64 `yaml:"shares,omitempty"`
	Cost   string  `yaml:"cost,omitempty"`
	Refund string  `yaml:"refund,omitempty"`
}

// Assertion checks final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Bids is the expected book from head to tail (book_order).
	Bids []string `yaml:"bids,omitempty"`

	// Bid is the expected cutoff order (cutoff).
	Bid string `yaml:"bid,omitempty"`

	// Bidder selects the party (balance, credit).
	Bidder string `yaml:"bidder,omitempty"`

	// Shares is the expected share balance (balance) or total supply (supply).
	Shares *uint64 `yaml:"shares,omitempty"`

	// Amount is the expected refund credit (credit) or escrow (escrowed).
	Amount string `yaml:"amount,omitempty"`

	// Count is the expected number of journaled operations (journal).
	Count *int `yaml:"count,omitempty"`

	// Rejected is the expected number of rejected operations (journal).
	Rejected *int `yaml:"rejected,omitempty"`
}

// Assertion types.
const (
	AssertBookOrder = "book_order"
	AssertCutoff    = "cutoff"
	AssertBalance   = "balance"
	AssertCredit    = "credit"
	AssertEscrowed  = "escrowed"
	AssertSupply    = "supply"
	AssertJournal   = "journal"
	AssertReplay    = "replay"
)

// Step kinds.
const (
	InvokeSubmit   = "submit"
	InvokeWithdraw = "withdraw"
	InvokeReveal   = "reveal"
	InvokeClaim    = "claim"
)

// Phases a step may move to.
const (
	PhaseReveal = "reveal"
	PhaseSettle = "settle"
)

// OutcomeOK is the expected outcome of a successful step.
const OutcomeOK = "OK"

// NoCertificate in Step.Certificate sends an empty certificate.
const NoCertificate = "none"

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that
// every label refers to a declared bid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Config.Kind == 0 {
		return fmt.Errorf("config is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for label, b := range s.Bids {
		if b.Bidder == "" {
			return fmt.Errorf("bids[%s]: bidder is required", label)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(s, i, &step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(s, i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s *Scenario, i int, step *Step) error {
	switch step.Phase {
	case "", PhaseReveal, PhaseSettle:
	default:
		return fmt.Errorf("steps[%d]: unknown phase %q", i, step.Phase)
	}

	switch step.Invoke {
	case "":
		if step.Phase == "" {
			return fmt.Errorf("steps[%d]: invoke or phase is required", i)
		}
		return nil
	case InvokeSubmit, InvokeWithdraw, InvokeReveal, InvokeClaim:
	default:
		return fmt.Errorf("steps[%d]: unknown invoke %q", i, step.Invoke)
	}

	if _, ok := s.Bids[step.Bid]; !ok {
		return fmt.Errorf("steps[%d]: unknown bid %q", i, step.Bid)
	}
	if step.Hint != "" {
		if _, ok := s.Bids[step.Hint]; !ok {
			return fmt.Errorf("steps[%d]: unknown hint bid %q", i, step.Hint)
		}
	}
	if step.Certificate != "" && step.Certificate != NoCertificate && step.Invoke != InvokeSubmit {
		return fmt.Errorf("steps[%d]: certificate only applies to submit", i)
	}
	if step.Receipt != nil && step.Invoke != InvokeClaim {
		return fmt.Errorf("steps[%d]: receipt only applies to claim", i)
	}
	return nil
}

func validateAssertion(s *Scenario, i int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	case AssertBookOrder:
		for _, label := range a.Bids {
			if _, ok := s.Bids[label]; !ok {
				return fmt.Errorf("assertions[%d]: unknown bid %q", i, label)
			}
		}
	case AssertCutoff:
		if _, ok := s.Bids[a.Bid]; !ok {
			return fmt.Errorf("assertions[%d]: unknown bid %q", i, a.Bid)
		}
	case AssertBalance:
		if a.Bidder == "" || a.Shares == nil {
			return fmt.Errorf("assertions[%d]: bidder and shares are required for balance", i)
		}
	case AssertCredit:
		if a.Bidder == "" || a.Amount == "" {
			return fmt.Errorf("assertions[%d]: bidder and amount are required for credit", i)
		}
	case AssertEscrowed:
		if a.Amount == "" {
			return fmt.Errorf("assertions[%d]: amount is required for escrowed", i)
		}
	case AssertSupply:
		if a.Shares == nil {
			return fmt.Errorf("assertions[%d]: shares is required for supply", i)
		}
	case AssertJournal:
		if a.Count == nil && a.Rejected == nil {
			return fmt.Errorf("assertions[%d]: count or rejected is required for journal", i)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
