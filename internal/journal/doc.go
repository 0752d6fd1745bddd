// Package journal defines the canonical encoding and content-addressed
// identity of journaled auction operations.
//
// Canonical JSON follows RFC 8785 for the value types the journal uses:
// objects with keys ordered by UTF-16 code units, arrays, NFC-normalized
// strings, integers and booleans. Floats and nulls are rejected; amounts
// are carried as decimal strings.
//
// Identities are SHA-256 over a versioned domain prefix, a 0x00 separator
// and the canonical bytes, so two kinds of record can never share an ID.
package journal
