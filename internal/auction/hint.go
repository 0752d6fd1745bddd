package auction

import "github.com/ethereum/go-ethereum/common"

// FindHint picks an insertion hint for a bid at price whose commitment has
// sequence seq, given the book from head to tail (as returned by Orders).
// It returns the first order the bid does not outrank, or the tail if it
// outranks them all. An empty book yields the zero hash.
//
// This is a client convenience. Reveal accepts any hint in the book and
// corrects it; a good hint only shortens the walk.
func FindHint(orders []Order, price, seq uint64) common.Hash {
	if len(orders) == 0 {
		return common.Hash{}
	}
	bid := &Order{Price: price, Sequence: seq}
	for i := range orders {
		if !outranks(bid, &orders[i]) {
			return orders[i].Hash
		}
	}
	return orders[len(orders)-1].Hash
}

// SuggestHint is FindHint over the auction's current book.
func (a *Auction) SuggestHint(price, seq uint64) common.Hash {
	return FindHint(a.Orders(), price, seq)
}
