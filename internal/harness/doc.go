// Package harness runs YAML auction scenarios end to end.
//
// A scenario names its parties, declares its bids, and lists steps that
// drive a real engine through the commit, reveal and settle rounds. Each
// step's outcome is checked against its expectation; assertions then
// check the final book, ledgers, journal, and a replay of the journal.
//
//	name: single_bidder
//	description: One bidder takes the whole supply.
//	config:
//	  round1_close: "2022-04-20T00:00:00Z"
//	  round2_close: "2022-04-27T00:00:00Z"
//	  supply_cap: 10
//	signers: [kyc]
//	bids:
//	  x: {bidder: alice, shares: 10, price: 1}
//	steps:
//	  - {invoke: submit, bid: x}
//	  - {phase: reveal, invoke: reveal, bid: x, payment: "20"}
//	  - {phase: settle, invoke: claim, bid: x, receipt: {shares: 10, refund: "10"}}
//	assertions:
//	  - {type: balance, bidder: alice, shares: 10}
//
// Parties are named. Keys are derived from names, so a scenario is fully
// deterministic: the clock starts an hour before round one closes and
// ticks one second per step, and request IDs are sequential. The trace
// of a run can therefore be compared against a golden file.
package harness
