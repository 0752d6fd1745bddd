// Package bidhash computes the commitment digest that seals a bid.
//
// A bidder commits to keccak256(pack(shares, price, nonce)) in round one and
// discloses the triple in round two. Whole quantities follow the Solidity
// abi.encodePacked layout, so digests produced by existing wallet tooling
// verify here unchanged:
//
//	whole quantities: uint256(shares) ‖ uint256(price) ‖ bytes32(nonce)
//	otherwise:        uint256(len(s)) ‖ s ‖ uint256(len(p)) ‖ p ‖ bytes32(nonce)
//
// where s and p are the canonical decimal text of shares and price. The
// text form is used when either quantity is fractional, negative or wider
// than 256 bits. The same logical bid therefore always produces the same
// digest, whether it arrives as 10, 10.0 or 1e1, and distinct bids never
// share a preimage.
//
// The nonce is 32 bytes of caller-held randomness. Losing it makes the bid
// unrevealable.
package bidhash
