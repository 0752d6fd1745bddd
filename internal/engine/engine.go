package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/sealbid/internal/auction"
	"github.com/roach88/sealbid/internal/journal"
	"github.com/roach88/sealbid/internal/notify"
	"github.com/roach88/sealbid/internal/store"
)

// ErrStopped is returned for requests submitted after the engine stopped.
var ErrStopped = errors.New("engine: stopped")

// Journal is the durable record of processed requests. *store.Store
// implements it.
type Journal interface {
	WriteOperation(ctx context.Context, op store.Operation) error
	WriteClaim(ctx context.Context, op store.Operation, c store.Claim) error
}

// Engine serializes every request against one auction.
//
// CRITICAL: All auction access happens in the single-writer Run loop
// goroutine. Callers use Do and Inspect from any goroutine.
type Engine struct {
	auction   *auction.Auction
	journal   Journal
	clock     *Clock
	time      *monotonic
	ids       RequestIDGenerator
	publisher notify.Publisher
	queue     *eventQueue

	// fault is the first journal write failure. Once set, requests are
	// refused without touching the auction.
	fault error
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every processed request to j.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithClock resumes the journal sequence from c.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTimeSource replaces the host clock.
func WithTimeSource(ts TimeSource) Option {
	return func(e *Engine) { e.time.src = ts }
}

// WithRequestIDs replaces the UUIDv7 request ID generator.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithPublisher delivers settlement receipts to p.
func WithPublisher(p notify.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithQueueLimit bounds the number of waiting requests; Do and Inspect
// fail with ErrBusy beyond it. The default is unbounded.
func WithQueueLimit(n int) Option {
	return func(e *Engine) { e.queue.limit = n }
}

// New creates an engine for a. Without WithJournal nothing is persisted.
func New(a *auction.Auction, opts ...Option) *Engine {
	e := &Engine{
		auction:   a,
		clock:     NewClock(),
		time:      &monotonic{src: SystemTime{}},
		ids:       UUIDv7Generator{},
		publisher: notify.Nop{},
		queue:     newEventQueue(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do submits r and waits for its response. It returns early with ctx's
// error if ctx is done first; the request may still be processed.
func (e *Engine) Do(ctx context.Context, r Request) Response {
	reply := make(chan Response, 1)
	if err := e.queue.Enqueue(Event{Type: EventTypeRequest, Request: r, reply: reply}); err != nil {
		return Response{Err: err}
	}
	select {
	case <-ctx.Done():
		return Response{Err: ctx.Err()}
	case resp := <-reply:
		return resp
	}
}

// Inspect runs fn on the Run goroutine, after every request enqueued
// before it. fn must not retain the auction.
func (e *Engine) Inspect(ctx context.Context, fn func(*auction.Auction)) error {
	reply := make(chan Response, 1)
	if err := e.queue.Enqueue(Event{Type: EventTypeInspect, Inspect: fn, reply: reply}); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-reply:
		return nil
	}
}

// Run processes events until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// A journal write failure is returned to that request's caller as a
// *JournalError and every later request fails with ErrJournalUnavailable.
// Inspect keeps working.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "seq", e.clock.Current())

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			e.processEvent(ctx, event)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.drain()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed with the queue, so this fires
			// immediately once stopped.
			if e.queue.Drained() {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once queued events are processed.
func (e *Engine) Stop() {
	e.queue.Close()
}

// drain answers every queued event with ErrStopped.
func (e *Engine) drain() {
	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		ev.reply <- Response{Err: ErrStopped}
	}
}

// processEvent handles one event.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) processEvent(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventTypeInspect:
		ev.Inspect(e.auction)
		ev.reply <- Response{}
	case EventTypeRequest:
		ev.reply <- e.process(ctx, ev.Request)
	default:
		slog.Error("unknown event type", "type", ev.Type)
		ev.reply <- Response{Err: fmt.Errorf("unknown event type: %d", ev.Type)}
	}
}

func (e *Engine) process(ctx context.Context, r Request) Response {
	if e.fault != nil {
		return Response{Err: fmt.Errorf("%w: %w", ErrJournalUnavailable, e.fault)}
	}

	resp := Response{
		RequestID: e.ids.Generate(),
		At:        e.time.Now(),
	}
	resp.Receipt, resp.Err = apply(e.auction, r, resp.At)
	resp.Seq = e.clock.Next()

	slog.Debug("request processed",
		"request_id", resp.RequestID,
		"seq", resp.Seq,
		"kind", r.Kind,
		"caller", r.Caller.Hex(),
		"hash", r.Hash.Hex(),
		"outcome", auction.CodeOf(resp.Err),
	)

	if err := e.record(ctx, r, resp); err != nil {
		slog.Error("journal write failed",
			"request_id", resp.RequestID,
			"seq", resp.Seq,
			"kind", r.Kind,
			"hash", r.Hash.Hex(),
			"error", err,
		)
		e.fault = err
		resp.Err = &JournalError{Seq: resp.Seq, Outcome: resp.Err, Err: err}
		return resp
	}

	if resp.Receipt != nil {
		ev := notify.Event{
			Type:      notify.EventClaimSettled,
			RequestID: resp.RequestID,
			Seq:       resp.Seq,
			At:        resp.At,
			Receipt:   *resp.Receipt,
		}
		if err := e.publisher.Publish(ctx, ev); err != nil {
			slog.Warn("receipt publish failed",
				"request_id", resp.RequestID,
				"hash", r.Hash.Hex(),
				"error", err,
			)
		}
	}
	return resp
}

// record journals a processed request.
func (e *Engine) record(ctx context.Context, r Request, resp Response) error {
	if e.journal == nil {
		return nil
	}
	op, err := operation(r, resp)
	if err != nil {
		return err
	}
	if resp.Receipt == nil {
		return e.journal.WriteOperation(ctx, op)
	}
	c, err := claimRow(*resp.Receipt)
	if err != nil {
		return err
	}
	return e.journal.WriteClaim(ctx, op, c)
}

func operation(r Request, resp Response) (store.Operation, error) {
	args := r.args()
	argsJSON, err := journal.Marshal(args)
	if err != nil {
		return store.Operation{}, fmt.Errorf("journal %s args: %w", r.Kind, err)
	}
	outcome := outcomeOf(resp.Err)
	id, err := journal.OperationID(resp.Seq, string(r.Kind), r.Caller.Hex(), args, outcome)
	if err != nil {
		return store.Operation{}, err
	}

	op := store.Operation{
		Seq:       resp.Seq,
		ID:        id,
		RequestID: resp.RequestID,
		Kind:      string(r.Kind),
		Caller:    r.Caller.Hex(),
		BidHash:   r.Hash.Hex(),
		Args:      argsJSON,
		At:        resp.At,
		Outcome:   outcome,
	}
	if resp.Err != nil {
		op.Message = resp.Err.Error()
	}
	return op, nil
}

func claimRow(r auction.Receipt) (store.Claim, error) {
	id, err := journal.ClaimID(r.Hash.Hex(), notify.ReceiptArgs(r))
	if err != nil {
		return store.Claim{}, err
	}
	return store.Claim{
		BidHash: r.Hash.Hex(),
		ID:      id,
		Owner:   r.Owner.Hex(),
		Winner:  r.Winner,
		Shares:  r.Shares,
		Cost:    r.Cost.String(),
		Refund:  r.Refund.String(),
	}, nil
}

// outcomeOf is the journaled outcome: empty on success, the error code for
// auction errors, and INTERNAL for anything else.
func outcomeOf(err error) string {
	if err == nil {
		return ""
	}
	if code := auction.CodeOf(err); code != "" {
		return string(code)
	}
	return "INTERNAL"
}
