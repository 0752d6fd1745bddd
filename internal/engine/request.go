package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/roach88/sealbid/internal/auction"
	"github.com/roach88/sealbid/internal/journal"
)

// Kind names an auction operation.
type Kind string

const (
	KindSubmit Kind = "submit"
	KindReveal Kind = "reveal"
	KindClaim  Kind = "claim"
)

// Request is one auction operation. Fields not used by Kind are ignored.
type Request struct {
	Kind   Kind
	Caller common.Address
	Hash   common.Hash

	// Submit.
	Intent      auction.Intent
	Certificate []byte

	// Reveal.
	Shares  uint64
	Price   uint64
	Nonce   common.Hash
	Hint    common.Hash
	Payment decimal.Decimal
}

// Response is the result of a processed request.
type Response struct {
	RequestID string
	Seq       int64
	At        time.Time

	// Receipt is set for claims that settled, including a claim whose
	// refund failed after minting.
	Receipt *auction.Receipt

	Err error
}

// Submit builds a round-one request.
func Submit(caller common.Address, hash common.Hash, intent auction.Intent, certificate []byte) Request {
	return Request{Kind: KindSubmit, Caller: caller, Hash: hash, Intent: intent, Certificate: certificate}
}

// Reveal builds a round-two request.
func Reveal(caller common.Address, d auction.Disclosure, payment decimal.Decimal) Request {
	return Request{
		Kind:    KindReveal,
		Caller:  caller,
		Hash:    d.Hash,
		Shares:  d.Shares,
		Price:   d.Price,
		Nonce:   d.Nonce,
		Hint:    d.Hint,
		Payment: payment,
	}
}

// Claim builds a settlement request.
func Claim(caller common.Address, hash common.Hash) Request {
	return Request{Kind: KindClaim, Caller: caller, Hash: hash}
}

// args is the journaled form of a request.
func (r Request) args() journal.Args {
	switch r.Kind {
	case KindSubmit:
		return journal.Args{
			"hash":        r.Hash.Hex(),
			"intent":      uint8(r.Intent),
			"certificate": hexutil.Encode(r.Certificate),
		}
	case KindReveal:
		return journal.Args{
			"hash":    r.Hash.Hex(),
			"shares":  r.Shares,
			"price":   r.Price,
			"nonce":   r.Nonce.Hex(),
			"hint":    r.Hint.Hex(),
			"payment": r.Payment.String(),
		}
	default:
		return journal.Args{"hash": r.Hash.Hex()}
	}
}

type requestArgs struct {
	Hash        string `json:"hash"`
	Intent      uint8  `json:"intent"`
	Certificate string `json:"certificate"`
	Shares      uint64 `json:"shares"`
	Price       uint64 `json:"price"`
	Nonce       string `json:"nonce"`
	Hint        string `json:"hint"`
	Payment     string `json:"payment"`
}

// decodeRequest rebuilds a request from its journaled kind, caller and args.
func decodeRequest(kind, caller string, raw []byte) (Request, error) {
	var a requestArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return Request{}, fmt.Errorf("decode %s args: %w", kind, err)
	}
	if !common.IsHexAddress(caller) {
		return Request{}, fmt.Errorf("decode %s: invalid caller %q", kind, caller)
	}

	r := Request{
		Kind:   Kind(kind),
		Caller: common.HexToAddress(caller),
		Hash:   common.HexToHash(a.Hash),
	}
	switch r.Kind {
	case KindSubmit:
		cert, err := hexutil.Decode(a.Certificate)
		if err != nil {
			return Request{}, fmt.Errorf("decode submit certificate: %w", err)
		}
		r.Intent = auction.Intent(a.Intent)
		r.Certificate = cert
	case KindReveal:
		payment, err := decimal.NewFromString(a.Payment)
		if err != nil {
			return Request{}, fmt.Errorf("decode reveal payment: %w", err)
		}
		r.Shares, r.Price = a.Shares, a.Price
		r.Nonce = common.HexToHash(a.Nonce)
		r.Hint = common.HexToHash(a.Hint)
		r.Payment = payment
	case KindClaim:
	default:
		return Request{}, fmt.Errorf("unknown operation kind %q", kind)
	}
	return r, nil
}

// apply runs r against a. The receipt is non-nil when a claim settled.
func apply(a *auction.Auction, r Request, now time.Time) (*auction.Receipt, error) {
	call := auction.Call{Caller: r.Caller, Now: now, Payment: r.Payment}
	switch r.Kind {
	case KindSubmit:
		return nil, a.Submit(call, r.Hash, r.Intent, r.Certificate)
	case KindReveal:
		return nil, a.Reveal(call, auction.Disclosure{
			Hash:   r.Hash,
			Shares: r.Shares,
			Price:  r.Price,
			Nonce:  r.Nonce,
			Hint:   r.Hint,
		})
	case KindClaim:
		receipt, err := a.Claim(call, r.Hash)
		if err != nil && receipt.Hash == (common.Hash{}) {
			return nil, err
		}
		return &receipt, err
	default:
		return nil, fmt.Errorf("unknown operation kind %q", r.Kind)
	}
}
