// Package registry is the eligibility gate for round-one submissions.
//
// A Registry holds the set of certificate signers the administrator trusts.
// An ECDSAVerifier recovers the signer of a bidder certificate: a 65-byte
// secp256k1 signature over the EIP-191 personal-sign hash of
// keccak256(claimant address). A certificate issued to one address
// recovers an unrelated signer when presented by any other address, so it
// cannot be reused.
package registry
