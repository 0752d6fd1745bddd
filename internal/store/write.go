package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrClaimExists is returned when a bid hash already has a claim row.
var ErrClaimExists = errors.New("store: claim already recorded")

// WriteOperation appends op to the journal.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - rewriting the same
// operation is silently ignored. A different operation at an existing seq
// is an error.
func (s *Store) WriteOperation(ctx context.Context, op Operation) error {
	if err := insertOperation(ctx, s.db, op); err != nil {
		return fmt.Errorf("write operation: %w", err)
	}
	return nil
}

// WriteClaim appends the claim's operation and its claim row in one
// transaction. If the claim row is rejected neither is written.
func (s *Store) WriteClaim(ctx context.Context, op Operation, c Claim) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write claim: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := insertOperation(ctx, tx, op); err != nil {
		return fmt.Errorf("write claim: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO claims
		(bid_hash, id, operation_seq, owner, winner, shares, cost, refund)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.BidHash,
		c.ID,
		op.Seq,
		c.Owner,
		c.Winner,
		int64(c.Shares),
		c.Cost,
		c.Refund,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("write claim %s: %w", c.BidHash, ErrClaimExists)
		}
		return fmt.Errorf("write claim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write claim: commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertOperation(ctx context.Context, db execer, op Operation) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO operations
		(seq, id, request_id, kind, caller, bid_hash, args, at_unix_nano, outcome, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		op.Seq,
		op.ID,
		op.RequestID,
		op.Kind,
		op.Caller,
		op.BidHash,
		string(op.Args),
		op.At.UnixNano(),
		op.Outcome,
		op.Message,
	)
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
