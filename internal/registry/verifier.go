package registry

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roach88/sealbid/internal/auction"
)

// ErrMalformedCertificate is returned for certificates that are not a
// 65-byte [R || S || V] signature.
var ErrMalformedCertificate = errors.New("certificate must be a 65-byte signature")

// CertificateHash is the digest a signer signs to certify claimant.
func CertificateHash(claimant common.Address) []byte {
	return accounts.TextHash(crypto.Keccak256(claimant.Bytes()))
}

// Issue signs a certificate for claimant. V is encoded as 27/28.
func Issue(key *ecdsa.PrivateKey, claimant common.Address) ([]byte, error) {
	sig, err := crypto.Sign(CertificateHash(claimant), key)
	if err != nil {
		return nil, fmt.Errorf("issue certificate: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// ECDSAVerifier recovers certificate signers. It accepts V as 0/1 or 27/28.
type ECDSAVerifier struct{}

// Verify returns the address that signed certificate for claimant.
func (ECDSAVerifier) Verify(certificate []byte, claimant common.Address) (common.Address, error) {
	if len(certificate) != crypto.SignatureLength {
		return common.Address{}, ErrMalformedCertificate
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, certificate)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(CertificateHash(claimant), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover certificate signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// TrustingVerifier skips signature recovery and reports Signer for every
// certificate. Only meaningful together with Open.
type TrustingVerifier struct {
	Signer common.Address
}

// Verify returns v.Signer.
func (v TrustingVerifier) Verify([]byte, common.Address) (common.Address, error) {
	return v.Signer, nil
}

var (
	_ auction.Verifier = ECDSAVerifier{}
	_ auction.Verifier = TrustingVerifier{}
)
