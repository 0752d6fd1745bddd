package engine

import (
	"errors"
	"fmt"
)

// ErrJournalUnavailable is returned for every request after a journal write
// failed. The auction is no longer in step with its journal; resume from
// the journal to continue.
var ErrJournalUnavailable = errors.New("engine: journal unavailable")

// JournalError reports a processed request whose journal write failed.
// Outcome is the request's auction error, nil when it succeeded, and stays
// reachable through errors.As so auction.CodeOf still reports it.
type JournalError struct {
	Seq     int64
	Outcome error
	Err     error
}

func (e *JournalError) Error() string {
	if e.Outcome != nil {
		return fmt.Sprintf("journal seq %d (%v): %v", e.Seq, e.Outcome, e.Err)
	}
	return fmt.Sprintf("journal seq %d: %v", e.Seq, e.Err)
}

func (e *JournalError) Unwrap() []error {
	if e.Outcome == nil {
		return []error{e.Err}
	}
	return []error{e.Outcome, e.Err}
}

// IsJournalError reports whether err is (or wraps) a *JournalError.
func IsJournalError(err error) bool {
	var je *JournalError
	return errors.As(err, &je)
}

// IsReplayError reports whether err is (or wraps) a *ReplayError.
func IsReplayError(err error) bool {
	var re *ReplayError
	return errors.As(err, &re)
}
