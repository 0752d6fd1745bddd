package store

import (
	"encoding/json"
	"time"
)

// Operation is one journaled request.
type Operation struct {
	Seq       int64
	ID        string
	RequestID string
	Kind      string
	Caller    string
	BidHash   string

	// Args is the canonical JSON of the request arguments.
	Args json.RawMessage

	At time.Time

	// Outcome is the error code the request failed with; empty on success.
	Outcome string
	Message string
}

// Succeeded reports whether the operation was applied.
func (op Operation) Succeeded() bool {
	return op.Outcome == ""
}

// Claim is a settled order.
type Claim struct {
	BidHash      string
	ID           string
	OperationSeq int64
	Owner        string
	Winner       bool
	Shares       uint64
	Cost         string
	Refund       string
}
