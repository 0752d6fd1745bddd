package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

var baseTime = time.Date(2022, 4, 20, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestOperation creates an operation with minimal required fields.
func createTestOperation(seq int64, kind, caller, bidHash string) Operation {
	return Operation{
		Seq:       seq,
		ID:        fmt.Sprintf("op-%d", seq),
		RequestID: fmt.Sprintf("req-%d", seq),
		Kind:      kind,
		Caller:    caller,
		BidHash:   bidHash,
		Args:      []byte(`{"hash":"` + bidHash + `"}`),
		At:        baseTime.Add(time.Duration(seq) * time.Second),
	}
}

func createTestClaim(bidHash, owner string) Claim {
	return Claim{
		BidHash: bidHash,
		ID:      "claim-" + bidHash,
		Owner:   owner,
		Winner:  true,
		Shares:  10,
		Cost:    "10",
		Refund:  "10",
	}
}
