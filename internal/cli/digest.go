package cli

import (
	"fmt"
	"io"
	"math"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/sealbid/internal/bidhash"
)

// DigestOptions holds flags for the digest command.
type DigestOptions struct {
	*RootOptions
	Shares string
	Price  string
	Nonce  string // optional; random when empty
	Scale  string
}

// DigestResult is a sealed bid. The nonce must be kept until the reveal.
type DigestResult struct {
	Hash   string `json:"hash"`
	Nonce  string `json:"nonce"`
	Shares string `json:"shares"`
	Price  string `json:"price"`
	Cost   string `json:"cost"`
}

// WriteText prints the bid one field per line.
func (r DigestResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "hash:   %s\n", r.Hash)
	fmt.Fprintf(w, "nonce:  %s\n", r.Nonce)
	fmt.Fprintf(w, "shares: %s\n", r.Shares)
	fmt.Fprintf(w, "price:  %s\n", r.Price)
	fmt.Fprintf(w, "cost:   %s\n", r.Cost)
}

// NewDigestCommand creates the digest command.
func NewDigestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DigestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Seal a bid for round one",
		Long: `Compute the commitment digest keccak256(shares, price, nonce) for a bid.

Without --nonce a random 32-byte nonce is drawn. Keep the nonce: the reveal
must present the same shares, price and nonce. The cost is the payment the
reveal must carry, shares × price × scale in ledger base units.

Examples:
  sealbid digest --shares 10 --price 3
  sealbid digest --shares 10 --price 3 --scale 1000000000000000000
  sealbid digest --shares 10 --price 3 --nonce 0x01...20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Shares, "shares", "", "number of shares (required)")
	cmd.Flags().StringVar(&opts.Price, "price", "", "price per share (required)")
	cmd.Flags().StringVar(&opts.Nonce, "nonce", "", "32-byte hex nonce (default random)")
	cmd.Flags().StringVar(&opts.Scale, "scale", "1", "ledger base units per price unit")
	_ = cmd.MarkFlagRequired("shares")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func runDigest(opts *DigestOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	shares, err := parseWhole("shares", opts.Shares)
	if err != nil {
		return f.Fail(ExitCommandError, CodeInput, "invalid bid", err)
	}
	price, err := parseWhole("price", opts.Price)
	if err != nil {
		return f.Fail(ExitCommandError, CodeInput, "invalid bid", err)
	}
	scale, err := decimal.NewFromString(opts.Scale)
	if err != nil {
		return f.Fail(ExitCommandError, CodeInput, "invalid bid", fmt.Errorf("--scale: %w", err))
	}

	var bid bidhash.Bid
	if opts.Nonce == "" {
		bid, err = bidhash.NewBid(shares, price, scale)
	} else {
		nonce, perr := parseHash("nonce", opts.Nonce)
		if perr != nil {
			return f.Fail(ExitCommandError, CodeInput, "invalid bid", perr)
		}
		bid, err = bidhash.NewBidWithNonce(shares, price, scale, nonce)
	}
	if err != nil {
		return f.Fail(ExitCommandError, CodeInput, "invalid bid", err)
	}

	return f.Success(DigestResult{
		Hash:   bid.Hash.Hex(),
		Nonce:  bid.Nonce.Hex(),
		Shares: bid.Shares.String(),
		Price:  bid.Price.String(),
		Cost:   bid.Cost.String(),
	})
}

// parseWhole parses a whole number in the uint64 range that `invoke reveal`
// accepts. Any decimal spelling of it is allowed, such as 1e3 or 10.0.
func parseWhole(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("--%s: %w", name, err)
	}
	if !d.IsInteger() || d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("--%s: must be a whole number, got %s", name, s)
	}
	if d.GreaterThan(maxWhole) {
		return decimal.Decimal{}, fmt.Errorf("--%s: must not exceed %d, got %s", name, uint64(math.MaxUint64), s)
	}
	return d, nil
}

var maxWhole = decimal.NewFromUint64(math.MaxUint64)
