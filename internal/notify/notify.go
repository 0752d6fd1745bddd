// Package notify publishes settlement receipts to downstream consumers.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/sealbid/internal/auction"
	"github.com/roach88/sealbid/internal/journal"
)

// EventClaimSettled is the type of the event emitted for every settled order.
const EventClaimSettled = "claim.settled"

// Event is a published settlement.
type Event struct {
	Type      string
	RequestID string
	Seq       int64
	At        time.Time
	Receipt   auction.Receipt
}

// Key is the partitioning key: the bid hash.
func (e Event) Key() []byte {
	return []byte(e.Receipt.Hash.Hex())
}

// Encode returns the canonical JSON payload of e.
func (e Event) Encode() ([]byte, error) {
	return journal.Marshal(journal.Args{
		"type":       e.Type,
		"request_id": e.RequestID,
		"seq":        e.Seq,
		"at":         e.At.UTC().Format(time.RFC3339Nano),
		"receipt":    ReceiptArgs(e.Receipt),
	})
}

// ReceiptArgs is the canonical object form of a receipt.
func ReceiptArgs(r auction.Receipt) journal.Args {
	return journal.Args{
		"hash":   r.Hash.Hex(),
		"owner":  r.Owner.Hex(),
		"winner": r.Winner,
		"shares": r.Shares,
		"cost":   r.Cost.String(),
		"refund": r.Refund.String(),
	}
}

// Publisher delivers events. Implementations must be safe to call from the
// engine goroutine while other goroutines read published state.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Memory keeps published events in order.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory returns an empty in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish records e.
func (m *Memory) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of every event published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

var (
	_ Publisher = Nop{}
	_ Publisher = (*Memory)(nil)
)
