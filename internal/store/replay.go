package store

import (
	"context"
	"fmt"
)

// Snapshot is the journal as needed to rebuild an auction.
type Snapshot struct {
	Operations []Operation
	Claims     []Claim
	LastSeq    int64

	// Applied counts operations that succeeded; Rejected those that failed.
	Applied  int
	Rejected int
}

// Load reads the full journal for replay and checks that every claim row
// references a claim operation for the same bid. The operation may carry
// LEDGER_FAILURE when the refund failed after shares were minted.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	ops, err := s.ReadOperations(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load journal: %w", err)
	}
	claims, err := s.ReadClaims(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load journal: %w", err)
	}

	snap := Snapshot{Operations: ops, Claims: claims}
	bySeq := make(map[int64]Operation, len(ops))
	for _, op := range ops {
		bySeq[op.Seq] = op
		if op.Seq > snap.LastSeq {
			snap.LastSeq = op.Seq
		}
		if op.Succeeded() {
			snap.Applied++
		} else {
			snap.Rejected++
		}
	}

	for _, c := range claims {
		op, ok := bySeq[c.OperationSeq]
		if !ok || op.Kind != "claim" || op.BidHash != c.BidHash {
			return Snapshot{}, fmt.Errorf("load journal: claim %s does not match operation %d", c.BidHash, c.OperationSeq)
		}
	}
	return snap, nil
}
