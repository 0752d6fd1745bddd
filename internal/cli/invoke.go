package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/sealbid/internal/auction"
	"github.com/roach88/sealbid/internal/config"
	"github.com/roach88/sealbid/internal/engine"
	"github.com/roach88/sealbid/internal/notify"
	"github.com/roach88/sealbid/internal/registry"
)

// InvokeOptions holds flags shared by the invoke subcommands.
type InvokeOptions struct {
	*RootOptions
	Config string
	Caller string
	Hash   string

	time engine.TimeSource
}

// RevealOptions holds the extra flags of invoke reveal.
type RevealOptions struct {
	Shares  uint64
	Price   uint64
	Nonce   string
	Hint    string // optional; suggested from the book when empty
	Payment string // optional; the bid's cost when empty
}

// InvokeResult is one processed request.
type InvokeResult struct {
	RequestID string         `json:"request_id"`
	Seq       int64          `json:"seq"`
	At        string         `json:"at"`
	Kind      string         `json:"kind"`
	Hash      string         `json:"hash"`
	Outcome   string         `json:"outcome"`
	Receipt   *ReceiptResult `json:"receipt,omitempty"`
}

// ReceiptResult is a settled claim.
type ReceiptResult struct {
	Owner  string `json:"owner"`
	Winner bool   `json:"winner"`
	Shares uint64 `json:"shares"`
	Cost   string `json:"cost"`
	Refund string `json:"refund"`
}

// WriteText prints the journal line and any receipt.
func (r InvokeResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "seq %d %s %s %s\n", r.Seq, r.Kind, r.Hash, r.Outcome)
	if r.Receipt != nil {
		fmt.Fprintf(w, "  winner: %t\n", r.Receipt.Winner)
		fmt.Fprintf(w, "  shares: %d\n", r.Receipt.Shares)
		fmt.Fprintf(w, "  cost:   %s\n", r.Receipt.Cost)
		fmt.Fprintf(w, "  refund: %s\n", r.Receipt.Refund)
	}
}

// requestBuilder turns flags into a request. It may inspect the resumed
// engine, which is already running.
type requestBuilder func(ctx context.Context, e *engine.Engine, cfg *config.Config, caller common.Address, hash common.Hash) (engine.Request, error)

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	return newInvokeCommand(rootOpts, engine.SystemTime{})
}

func newInvokeCommand(rootOpts *RootOptions, ts engine.TimeSource) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts, time: ts}

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Process one auction request against the journal",
		Long: `Process one request against the journaled auction.

The journal named by the config is replayed, the request is processed at
the current time and journaled, and settled claims are published to Kafka
when kafka.brokers is configured. Submissions are certified against the
signers in the config.

Exit codes:
  0 - Request accepted
  1 - Request rejected, or the journal diverges from replay
  2 - Command error (bad flags, unreadable config, etc.)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "auction config file (required)")
	cmd.PersistentFlags().StringVar(&opts.Caller, "caller", "", "caller address (required)")
	cmd.PersistentFlags().StringVar(&opts.Hash, "hash", "", "commitment hash (required)")
	_ = cmd.MarkPersistentFlagRequired("config")
	_ = cmd.MarkPersistentFlagRequired("caller")
	_ = cmd.MarkPersistentFlagRequired("hash")

	cmd.AddCommand(newSubmitCommand(opts))
	cmd.AddCommand(newWithdrawCommand(opts))
	cmd.AddCommand(newRevealCommand(opts))
	cmd.AddCommand(newClaimCommand(opts))

	return cmd
}

func newSubmitCommand(opts *InvokeOptions) *cobra.Command {
	var certificate string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Commit a sealed bid in round one",
		Example: `  sealbid invoke submit --config auction.yaml --caller 0xab... --hash 0x5c... \
    --certificate 0x9f...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, cmd, func(_ context.Context, _ *engine.Engine, _ *config.Config, caller common.Address, hash common.Hash) (engine.Request, error) {
				cert, err := hexutil.Decode(certificate)
				if err != nil {
					return engine.Request{}, fmt.Errorf("--certificate: %w", err)
				}
				return engine.Submit(caller, hash, auction.IntentAdd, cert), nil
			})
		},
	}
	cmd.Flags().StringVar(&certificate, "certificate", "", "hex eligibility certificate (required)")
	_ = cmd.MarkFlagRequired("certificate")
	return cmd
}

func newWithdrawCommand(opts *InvokeOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "withdraw",
		Short:         "Withdraw a commitment in round one",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, cmd, func(_ context.Context, _ *engine.Engine, _ *config.Config, caller common.Address, hash common.Hash) (engine.Request, error) {
				return engine.Submit(caller, hash, auction.IntentRemove, nil), nil
			})
		},
	}
}

func newRevealCommand(opts *InvokeOptions) *cobra.Command {
	r := &RevealOptions{}
	cmd := &cobra.Command{
		Use:   "reveal",
		Short: "Reveal a committed bid in round two",
		Long: `Reveal a committed bid and pay for it into escrow.

Without --hint the hint is suggested from the replayed book. Without
--payment the bid's cost, shares × price × unit_scale, is paid.`,
		Example: `  sealbid invoke reveal --config auction.yaml --caller 0xab... --hash 0x5c... \
    --shares 10 --price 3 --nonce 0x01...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, cmd, r.build)
		},
	}
	cmd.Flags().Uint64Var(&r.Shares, "shares", 0, "shares bid (required)")
	cmd.Flags().Uint64Var(&r.Price, "price", 0, "price per share (required)")
	cmd.Flags().StringVar(&r.Nonce, "nonce", "", "nonce used to seal the bid (required)")
	cmd.Flags().StringVar(&r.Hint, "hint", "", "hash of an order in the book (default suggested)")
	cmd.Flags().StringVar(&r.Payment, "payment", "", "payment in ledger base units (default the bid's cost)")
	_ = cmd.MarkFlagRequired("shares")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("nonce")
	return cmd
}

func (r *RevealOptions) build(ctx context.Context, e *engine.Engine, cfg *config.Config, caller common.Address, hash common.Hash) (engine.Request, error) {
	nonce, err := parseHash("nonce", r.Nonce)
	if err != nil {
		return engine.Request{}, err
	}

	payment := cfg.Auction().Cost(r.Shares, r.Price)
	if r.Payment != "" {
		if payment, err = decimal.NewFromString(r.Payment); err != nil {
			return engine.Request{}, fmt.Errorf("--payment: %w", err)
		}
	}

	var hint common.Hash
	if r.Hint != "" {
		if hint, err = parseHash("hint", r.Hint); err != nil {
			return engine.Request{}, err
		}
	} else {
		err = e.Inspect(ctx, func(a *auction.Auction) {
			if c, ok := a.Commitment(hash); ok {
				hint = a.SuggestHint(r.Price, c.Sequence)
			}
		})
		if err != nil {
			return engine.Request{}, err
		}
	}

	return engine.Reveal(caller, auction.Disclosure{
		Hash:   hash,
		Shares: r.Shares,
		Price:  r.Price,
		Nonce:  nonce,
		Hint:   hint,
	}, payment), nil
}

func newClaimCommand(opts *InvokeOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "claim",
		Short:         "Claim shares and refund after round two",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, cmd, func(_ context.Context, _ *engine.Engine, _ *config.Config, caller common.Address, hash common.Hash) (engine.Request, error) {
				return engine.Claim(caller, hash), nil
			})
		},
	}
}

func runInvoke(opts *InvokeOptions, cmd *cobra.Command, build requestBuilder) error {
	f := newFormatter(cmd, opts.RootOptions)
	ctx := commandContext(cmd.Context())

	caller, err := parseAddress("caller", opts.Caller)
	if err != nil {
		return f.Fail(ExitCommandError, CodeInput, "invalid request", err)
	}
	hash, err := parseHash("hash", opts.Hash)
	if err != nil {
		return f.Fail(ExitCommandError, CodeInput, "invalid request", err)
	}

	cfg, st, err := loadAuction(f, opts.Config)
	if err != nil {
		return err
	}
	defer st.Close()

	reg, err := cfg.Registry()
	if err != nil {
		return f.Fail(ExitCommandError, CodeConfig, "failed to seed registry", err)
	}

	pub := publisher(cfg)
	defer pub.Close()

	e, replayed, err := engine.Resume(ctx, st, cfg.Auction(), registry.ECDSAVerifier{}, reg,
		engine.WithJournal(st),
		engine.WithTimeSource(opts.time),
		engine.WithPublisher(pub),
	)
	if err != nil {
		return replayFailure(f, err)
	}
	f.VerboseLog("Replayed %d operations (%d skipped) through seq %d", replayed.Applied, replayed.Skipped, replayed.LastSeq)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- e.Run(runCtx) }()
	defer func() {
		e.Stop()
		cancel()
		<-done
	}()

	req, err := build(ctx, e, cfg, caller, hash)
	if err != nil {
		return f.Fail(ExitCommandError, CodeInput, "invalid request", err)
	}

	resp := e.Do(ctx, req)
	result := invokeResult(req, resp)
	if resp.Err != nil {
		return invokeFailure(f, result, resp.Err)
	}
	return f.Success(result)
}

// invokeFailure reports a failed request. A request whose journal write
// failed is reported as a journal error even when the auction accepted it,
// since the next invocation rebuilds state without it.
func invokeFailure(f *OutputFormatter, result InvokeResult, err error) error {
	code, message := CodeRejected, "request rejected"
	if engine.IsJournalError(err) || errors.Is(err, engine.ErrJournalUnavailable) {
		code, message = CodeJournal, "journal write failed"
	}
	if outErr := f.Error(code, err.Error(), result); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, message, err)
}

func publisher(cfg *config.Config) notify.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return notify.Nop{}
	}
	return notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}

func invokeResult(req engine.Request, resp engine.Response) InvokeResult {
	kind := string(req.Kind)
	if req.Kind == engine.KindSubmit && req.Intent == auction.IntentRemove {
		kind = "withdraw"
	}
	result := InvokeResult{
		RequestID: resp.RequestID,
		Seq:       resp.Seq,
		Kind:      kind,
		Hash:      req.Hash.Hex(),
		Outcome:   outcome(resp.Err),
	}
	if !resp.At.IsZero() {
		result.At = resp.At.Format(time.RFC3339Nano)
	}
	if r := resp.Receipt; r != nil {
		result.Receipt = &ReceiptResult{
			Owner:  r.Owner.Hex(),
			Winner: r.Winner,
			Shares: r.Shares,
			Cost:   r.Cost.String(),
			Refund: r.Refund.String(),
		}
	}
	return result
}

func outcome(err error) string {
	if err == nil {
		return "OK"
	}
	if code := auction.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}
