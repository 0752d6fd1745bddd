package testutil

import (
	"crypto/ecdsa"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roach88/sealbid/internal/registry"
)

// DeriveKey derives a deterministic secp256k1 key from name. The same
// name always yields the same key, so scenarios can refer to parties by
// name.
func DeriveKey(name string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.ToECDSA(crypto.Keccak256([]byte("sealbid/testkey/" + name)))
	if err != nil {
		return nil, fmt.Errorf("derive key %q: %w", name, err)
	}
	return key, nil
}

// Key is DeriveKey for tests.
func Key(t testing.TB, name string) *ecdsa.PrivateKey {
	t.Helper()
	key, err := DeriveKey(name)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// Address is the address of Key(t, name).
func Address(t testing.TB, name string) common.Address {
	t.Helper()
	return crypto.PubkeyToAddress(Key(t, name).PublicKey)
}

// Certificate issues a certificate for claimant signed by the key named issuer.
func Certificate(t testing.TB, issuer string, claimant common.Address) []byte {
	t.Helper()
	cert, err := registry.Issue(Key(t, issuer), claimant)
	if err != nil {
		t.Fatalf("issue certificate: %v", err)
	}
	return cert
}
