// Package config loads the auction deployment configuration.
//
// A config file is YAML. It is first checked against the embedded CUE
// schema (schema.cue), then decoded strictly, then overridden by SEALBID_*
// environment variables:
//
//	round1_close: "2022-04-20T00:00:00Z"
//	round2_close: "2022-04-27T00:00:00Z"
//	supply_cap: 1000
//	unit_scale: "1000000000000000000"
//	admin: "0x..."
//	signers:
//	  - address: "0x..."
//	    label: KYC desk
//	database: auction.db
//	kafka:
//	  brokers: [localhost:9092]
//	  topic: sealbid.receipts
package config
