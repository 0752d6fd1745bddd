// Package ledger provides the in-process value and share ledgers an auction
// settles against.
//
// Escrow holds every payment captured at reveal and tracks the refund
// credits issued at claim. Credits are pulled with Withdraw; nothing is
// pushed to bidders. Shares is a fungible share register whose total
// supply can never exceed the cap it was created with.
package ledger
