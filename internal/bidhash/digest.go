package bidhash

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// Digest returns the commitment digest for a (shares, price, nonce) triple.
// It is pure: identical inputs always yield the identical digest.
func Digest(shares, price decimal.Decimal, nonce common.Hash) common.Hash {
	packed := make([]byte, 0, 96)
	if isUint256(shares) && isUint256(price) {
		packed = append(packed, math.U256Bytes(shares.BigInt())...)
		packed = append(packed, math.U256Bytes(price.BigInt())...)
	} else {
		packed = appendText(packed, shares)
		packed = appendText(packed, price)
	}
	packed = append(packed, nonce.Bytes()...)
	return crypto.Keccak256Hash(packed)
}

// DigestUint is Digest for whole-number quantities.
func DigestUint(shares, price uint64, nonce common.Hash) common.Hash {
	return Digest(decimal.NewFromUint64(shares), decimal.NewFromUint64(price), nonce)
}

// isUint256 reports whether d is a whole number that fits a 32-byte word.
func isUint256(d decimal.Decimal) bool {
	if !d.IsInteger() || d.IsNegative() {
		return false
	}
	return d.BigInt().BitLen() <= 256
}

// appendText appends d's canonical decimal text behind its length as a
// 32-byte word.
func appendText(b []byte, d decimal.Decimal) []byte {
	text := d.String()
	b = append(b, math.U256Bytes(new(big.Int).SetInt64(int64(len(text))))...)
	return append(b, text...)
}

// NewNonce draws 32 bytes from crypto/rand.
func NewNonce() (common.Hash, error) {
	var nonce common.Hash
	if _, err := rand.Read(nonce[:]); err != nil {
		return common.Hash{}, fmt.Errorf("new nonce: %w", err)
	}
	return nonce, nil
}
