package auction

import (
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
)

// Submit records a round-one commitment change for hash.
//
//   - IntentAdd requires a certificate whose signer is registered. A new
//     hash is created for the caller; an inactive one owned by the caller is
//     reactivated with a fresh sequence; an active one is left untouched.
//   - IntentRemove withdraws the caller's commitment. Unknown hashes are
//     ignored. The owner is retained.
//   - Any other intent is ignored.
func (a *Auction) Submit(call Call, hash common.Hash, intent Intent, certificate []byte) error {
	if err := a.requirePhase(call.Now, PhaseCommit, hash); err != nil {
		return err
	}

	switch intent {
	case IntentAdd:
		return a.addCommitment(call.Caller, hash, certificate)
	case IntentRemove:
		return a.withdrawCommitment(call.Caller, hash)
	default:
		slog.Debug("ignoring submission with unrecognised intent",
			"hash", hash.Hex(),
			"caller", call.Caller.Hex(),
			"intent", intent,
		)
		return nil
	}
}

func (a *Auction) addCommitment(caller common.Address, hash common.Hash, certificate []byte) error {
	if err := a.certify(caller, certificate); err != nil {
		return err
	}
	if hash == (common.Hash{}) {
		return newError(ErrCodeInvalidBid, hash, "the zero hash cannot be committed")
	}

	c, exists := a.commitments[hash]
	switch {
	case !exists:
		c = &Commitment{Hash: hash, Owner: caller, Sequence: a.seq.Next(), Active: true}
		a.commitments[hash] = c
		slog.Debug("commitment created", "hash", hash.Hex(), "owner", caller.Hex(), "seq", c.Sequence)

	case c.Active:
		// Re-submission of a live commitment.

	case c.Owner != caller:
		return newError(ErrCodeUnauthorized, hash, "commitment belongs to %s", c.Owner.Hex())

	default:
		c.Active = true
		c.Sequence = a.seq.Next()
		slog.Debug("commitment reactivated", "hash", hash.Hex(), "owner", caller.Hex(), "seq", c.Sequence)
	}
	return nil
}

func (a *Auction) withdrawCommitment(caller common.Address, hash common.Hash) error {
	c, exists := a.commitments[hash]
	if !exists {
		return nil
	}
	if c.Owner != caller {
		return newError(ErrCodeUnauthorized, hash, "commitment belongs to %s", c.Owner.Hex())
	}
	c.Active = false
	slog.Debug("commitment withdrawn", "hash", hash.Hex(), "owner", caller.Hex())
	return nil
}

// certify checks that the certificate was issued to caller by a registered signer.
func (a *Auction) certify(caller common.Address, certificate []byte) error {
	signer, err := a.deps.Verifier.Verify(certificate, caller)
	if err != nil {
		return &Error{Code: ErrCodeUnauthorized, Message: "certificate rejected", Err: err}
	}
	if !a.deps.Registry.IsAuthorized(signer) {
		return &Error{Code: ErrCodeUnauthorized, Message: "certificate signer " + signer.Hex() + " is not registered"}
	}
	return nil
}
