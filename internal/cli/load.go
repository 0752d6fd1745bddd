package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/roach88/sealbid/internal/config"
	"github.com/roach88/sealbid/internal/engine"
	"github.com/roach88/sealbid/internal/store"
)

// errNoDatabase is returned when a command needs the journal but the
// config names none.
var errNoDatabase = errors.New("config does not name a database")

// loadAuction loads the config at path and opens its journal. A relative
// database path is resolved against the config file's directory.
func loadAuction(f *OutputFormatter, path string) (*config.Config, *store.Store, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, CodeConfig, "failed to load config", err)
	}
	if cfg.Database == "" {
		return nil, nil, f.Fail(ExitCommandError, CodeConfig, "failed to open journal", errNoDatabase)
	}

	db := cfg.Database
	if db != ":memory:" && !filepath.IsAbs(db) {
		db = filepath.Join(filepath.Dir(path), db)
	}
	f.VerboseLog("Opening journal %s", db)

	st, err := store.Open(db)
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, CodeJournal, "failed to open journal", err)
	}
	return cfg, st, nil
}

// replayJournal rebuilds the auction, mapping divergence to ExitFailure.
func replayJournal(ctx context.Context, f *OutputFormatter, st *store.Store, cfg *config.Config) (*engine.Replayed, error) {
	out, err := engine.Replay(ctx, st, cfg.Auction())
	if err != nil {
		return nil, replayFailure(f, err)
	}
	return out, nil
}

func replayFailure(f *OutputFormatter, err error) error {
	var re *engine.ReplayError
	if errors.As(err, &re) {
		return f.Fail(ExitFailure, CodeReplay, "journal diverges from replay", err)
	}
	return f.Fail(ExitCommandError, CodeJournal, "failed to replay journal", err)
}

// parseHash decodes a 0x-prefixed 32-byte hex value.
func parseHash(name, s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("--%s: %w", name, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("--%s: want %d bytes, got %d", name, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

// parseAddress decodes a 0x-prefixed 20-byte hex address.
func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("--%s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
