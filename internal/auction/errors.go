package auction

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Error is the single error type returned by auction operations.
//
// Callers branch on Code, either directly via CodeOf or with errors.Is
// against the package sentinels:
//
//	if errors.Is(err, auction.ErrInvalidHint) { /* retry with a better hint */ }
type Error struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Hash is the bid hash the operation referenced, if any.
	Hash common.Hash

	// Err is an underlying cause (ledger failures only).
	Err error
}

// ErrorCode categorizes auction failures.
type ErrorCode string

const (
	// ErrCodePhaseViolation indicates the operation ran outside its round.
	ErrCodePhaseViolation ErrorCode = "PHASE_VIOLATION"

	// ErrCodeUnknownCommitment indicates no active commitment owned by the
	// caller exists for the hash.
	ErrCodeUnknownCommitment ErrorCode = "UNKNOWN_COMMITMENT"

	// ErrCodeNotYetRevealed indicates a commitment exists but was never revealed.
	ErrCodeNotYetRevealed ErrorCode = "NOT_YET_REVEALED"

	// ErrCodeUnauthorized indicates the caller is not the owner, or the
	// certificate signer is not registered.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodeCommitMismatch indicates the revealed triple does not hash to the commitment.
	ErrCodeCommitMismatch ErrorCode = "COMMIT_MISMATCH"

	// ErrCodeInsufficientPayment indicates payment < shares × price.
	ErrCodeInsufficientPayment ErrorCode = "INSUFFICIENT_PAYMENT"

	// ErrCodeInvalidHint indicates the hint names no order in a non-empty book.
	ErrCodeInvalidHint ErrorCode = "INVALID_HINT"

	// ErrCodeAlreadyClaimed indicates the order was already settled.
	ErrCodeAlreadyClaimed ErrorCode = "ALREADY_CLAIMED"

	// ErrCodeAlreadyRevealed indicates the hash is already in the book.
	ErrCodeAlreadyRevealed ErrorCode = "ALREADY_REVEALED"

	// ErrCodeInvalidBid indicates a zero hash, zero shares or zero price.
	ErrCodeInvalidBid ErrorCode = "INVALID_BID"

	// ErrCodeLedgerFailure indicates a value or share ledger call failed.
	ErrCodeLedgerFailure ErrorCode = "LEDGER_FAILURE"
)

// Sentinels for errors.Is. Only the Code is compared.
var (
	ErrPhaseViolation      = &Error{Code: ErrCodePhaseViolation}
	ErrUnknownCommitment   = &Error{Code: ErrCodeUnknownCommitment}
	ErrNotYetRevealed      = &Error{Code: ErrCodeNotYetRevealed}
	ErrUnauthorized        = &Error{Code: ErrCodeUnauthorized}
	ErrCommitMismatch      = &Error{Code: ErrCodeCommitMismatch}
	ErrInsufficientPayment = &Error{Code: ErrCodeInsufficientPayment}
	ErrInvalidHint         = &Error{Code: ErrCodeInvalidHint}
	ErrAlreadyClaimed      = &Error{Code: ErrCodeAlreadyClaimed}
	ErrAlreadyRevealed     = &Error{Code: ErrCodeAlreadyRevealed}
	ErrInvalidBid          = &Error{Code: ErrCodeInvalidBid}
	ErrLedgerFailure       = &Error{Code: ErrCodeLedgerFailure}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Hash != (common.Hash{}) {
		msg += fmt.Sprintf(" (hash=%s)", e.Hash.Hex())
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not (and
// does not wrap) an *Error.
func CodeOf(err error) ErrorCode {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func newError(code ErrorCode, hash common.Hash, format string, args ...any) *Error {
	return &Error{Code: code, Hash: hash, Message: fmt.Sprintf(format, args...)}
}
