package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes. The version suffix allows the encoding to change
// without colliding with earlier IDs.
const (
	DomainOperation = "sealbid/operation/v1"
	DomainClaim     = "sealbid/claim/v1"
)

func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// OperationID identifies a journaled operation. It covers the operation
// kind, its arguments, the caller, its outcome code ("" for success) and
// its journal sequence, so a replayed journal reproduces every ID.
func OperationID(seq int64, kind, caller string, args Args, outcome string) (string, error) {
	canonical, err := Marshal(Args{
		"seq":     seq,
		"kind":    kind,
		"caller":  caller,
		"args":    args,
		"outcome": outcome,
	})
	if err != nil {
		return "", fmt.Errorf("operation id: %w", err)
	}
	return hashWithDomain(DomainOperation, canonical), nil
}

// ClaimID identifies a settlement receipt.
func ClaimID(bidHash string, receipt Args) (string, error) {
	canonical, err := Marshal(Args{
		"bid_hash": bidHash,
		"receipt":  receipt,
	})
	if err != nil {
		return "", fmt.Errorf("claim id: %w", err)
	}
	return hashWithDomain(DomainClaim, canonical), nil
}
