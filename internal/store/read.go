package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const selectOperation = `
	SELECT seq, id, request_id, kind, caller, bid_hash, args, at_unix_nano, outcome, message
	FROM operations
`

// ReadOperations returns the whole journal ordered by seq.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ReadOperations(ctx context.Context) ([]Operation, error) {
	return s.queryOperations(ctx, selectOperation+` ORDER BY seq ASC`)
}

// ReadOperationsFor returns every operation that named bidHash, ordered by seq.
func (s *Store) ReadOperationsFor(ctx context.Context, bidHash string) ([]Operation, error) {
	return s.queryOperations(ctx, selectOperation+` WHERE bid_hash = ? ORDER BY seq ASC`, bidHash)
}

// ReadOperationsBy returns every operation issued by caller, ordered by seq.
func (s *Store) ReadOperationsBy(ctx context.Context, caller string) ([]Operation, error) {
	return s.queryOperations(ctx, selectOperation+` WHERE caller = ? ORDER BY seq ASC`, caller)
}

func (s *Store) queryOperations(ctx context.Context, query string, args ...any) ([]Operation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}

func scanOperation(rows *sql.Rows) (Operation, error) {
	var (
		op   Operation
		args string
		at   int64
	)
	if err := rows.Scan(&op.Seq, &op.ID, &op.RequestID, &op.Kind, &op.Caller, &op.BidHash,
		&args, &at, &op.Outcome, &op.Message); err != nil {
		return Operation{}, fmt.Errorf("scan operation: %w", err)
	}
	op.Args = []byte(args)
	op.At = time.Unix(0, at).UTC()
	return op, nil
}

// ReadClaims returns every claim ordered by the seq of its operation.
func (s *Store) ReadClaims(ctx context.Context) ([]Claim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bid_hash, id, operation_seq, owner, winner, shares, cost, refund
		FROM claims
		ORDER BY operation_seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	claims := []Claim{}
	for rows.Next() {
		var (
			c      Claim
			shares int64
		)
		if err := rows.Scan(&c.BidHash, &c.ID, &c.OperationSeq, &c.Owner, &c.Winner, &shares, &c.Cost, &c.Refund); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		c.Shares = uint64(shares)
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return claims, nil
}

// LastSeq returns the highest journaled seq, or 0 for an empty journal.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM operations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}
