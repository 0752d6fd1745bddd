package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// HintOptions holds flags for the hint command.
type HintOptions struct {
	*RootOptions
	Config string
	Price  uint64
	Seq    uint64
	Hash   string
}

// HintResult is a suggested reveal hint.
type HintResult struct {
	Hint  string `json:"hint"`
	Price uint64 `json:"price"`
	Seq   uint64 `json:"seq"`
	Book  int    `json:"book"`
}

// WriteText prints the hint alone, for use in scripts.
func (r HintResult) WriteText(w io.Writer) {
	fmt.Fprintln(w, r.Hint)
}

// NewHintCommand creates the hint command.
func NewHintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "hint",
		Short: "Suggest a reveal hint from the journaled book",
		Long: `Replay the journal and suggest the hint a reveal should carry.

The hint is the first order in the current book, walking from the head,
that the new bid does not outrank. An empty book yields the zero hash. The book can change before the reveal is
processed; a stale hint fails with INVALID_HINT and the reveal can be
retried with a fresh one.

The bid's sequence is taken from --seq, or looked up from its commitment
with --hash.

Examples:
  sealbid hint --config auction.yaml --price 3 --seq 12
  sealbid hint --config auction.yaml --price 3 --hash 0x5c...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHint(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "auction config file (required)")
	cmd.Flags().Uint64Var(&opts.Price, "price", 0, "price of the bid being revealed (required)")
	cmd.Flags().Uint64Var(&opts.Seq, "seq", 0, "commitment sequence of the bid")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "commitment hash of the bid, instead of --seq")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("price")
	cmd.MarkFlagsOneRequired("seq", "hash")
	cmd.MarkFlagsMutuallyExclusive("seq", "hash")

	return cmd
}

func runHint(opts *HintOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)
	ctx := commandContext(cmd.Context())

	cfg, st, err := loadAuction(f, opts.Config)
	if err != nil {
		return err
	}
	defer st.Close()

	out, err := replayJournal(ctx, f, st, cfg)
	if err != nil {
		return err
	}

	seq := opts.Seq
	if opts.Hash != "" {
		hash, err := parseHash("hash", opts.Hash)
		if err != nil {
			return f.Fail(ExitCommandError, CodeInput, "invalid hash", err)
		}
		c, ok := out.Auction.Commitment(hash)
		if !ok {
			return f.Fail(ExitFailure, CodeInput, "no such commitment", errors.New(hash.Hex()))
		}
		seq = c.Sequence
	}

	hint := out.Auction.SuggestHint(opts.Price, seq)
	f.VerboseLog("Book holds %d orders; hint %s", out.Auction.Len(), hint.Hex())

	if hint == (common.Hash{}) {
		f.VerboseLog("Book is empty; any hint is accepted")
	}
	return f.Success(HintResult{Hint: hint.Hex(), Price: opts.Price, Seq: seq, Book: out.Auction.Len()})
}
