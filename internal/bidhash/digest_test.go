package bidhash

import (
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNonce = common.HexToHash("0x8f3a1c0e5b7d9f2a4c6e8b0d1f3a5c7e9b1d3f5a7c9e1b3d5f7a9c1e3b5d7f9a")

func TestDigest_Deterministic(t *testing.T) {
	a := DigestUint(10, 1, testNonce)
	b := DigestUint(10, 1, testNonce)
	assert.Equal(t, a, b)
	assert.NotEqual(t, common.Hash{}, a)
}

func TestDigest_MatchesPackedKeccak(t *testing.T) {
	var packed []byte
	packed = append(packed, common.LeftPadBytes([]byte{10}, 32)...)
	packed = append(packed, common.LeftPadBytes([]byte{1}, 32)...)
	packed = append(packed, testNonce.Bytes()...)

	assert.Equal(t, crypto.Keccak256Hash(packed), DigestUint(10, 1, testNonce))
}

func TestDigest_FractionalUsesLengthPrefixedText(t *testing.T) {
	shares := decimal.RequireFromString("0.5")
	price := decimal.NewFromInt(2)

	var packed []byte
	packed = append(packed, common.LeftPadBytes([]byte{3}, 32)...)
	packed = append(packed, "0.5"...)
	packed = append(packed, common.LeftPadBytes([]byte{1}, 32)...)
	packed = append(packed, "2"...)
	packed = append(packed, testNonce.Bytes()...)
	assert.Equal(t, crypto.Keccak256Hash(packed), Digest(shares, price, testNonce))
}

func TestDigest_DistinctTextBidsDiffer(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		name string
		a, b [2]decimal.Decimal
	}{
		{"split point", [2]decimal.Decimal{d("1.5"), d("21")}, [2]decimal.Decimal{d("1.52"), d("1")}},
		{"digit moves across", [2]decimal.Decimal{d("0.5"), d("12")}, [2]decimal.Decimal{d("0.51"), d("2")}},
		{"beyond uint256", [2]decimal.Decimal{d("1"), new256(0)}, [2]decimal.Decimal{d("1"), d("0")}},
		{"negative", [2]decimal.Decimal{d("-1"), d("2")}, [2]decimal.Decimal{d("1"), d("2")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t,
				Digest(tt.a[0], tt.a[1], testNonce),
				Digest(tt.b[0], tt.b[1], testNonce))
		})
	}
}

// new256 returns 2^256 + n.
func new256(n int64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 256), 0).Add(decimal.NewFromInt(n))
}

func TestDigest_RepresentationIndependent(t *testing.T) {
	whole := Digest(decimal.NewFromInt(10), decimal.NewFromInt(3), testNonce)
	trailing := Digest(decimal.RequireFromString("10.000"), decimal.RequireFromString("3.0"), testNonce)
	exponent := Digest(decimal.RequireFromString("1e1"), decimal.NewFromInt(3), testNonce)

	assert.Equal(t, whole, trailing)
	assert.Equal(t, whole, exponent)
	assert.Equal(t, whole, DigestUint(10, 3, testNonce))
}

func TestDigest_SensitiveToEveryField(t *testing.T) {
	base := DigestUint(10, 1, testNonce)
	other := testNonce
	other[0] ^= 0xff

	assert.NotEqual(t, base, DigestUint(11, 1, testNonce), "shares")
	assert.NotEqual(t, base, DigestUint(10, 2, testNonce), "price")
	assert.NotEqual(t, base, DigestUint(10, 1, other), "nonce")
	assert.NotEqual(t, DigestUint(1, 10, testNonce), base, "field order")
}

func TestNewNonce_Unique(t *testing.T) {
	seen := make(map[common.Hash]bool)
	for i := 0; i < 64; i++ {
		n, err := NewNonce()
		require.NoError(t, err)
		assert.False(t, seen[n], "nonce repeated")
		seen[n] = true
	}
}

func TestNewBidWithNonce(t *testing.T) {
	scale := decimal.New(1, 18)
	bid, err := NewBidWithNonce(decimal.NewFromInt(10), decimal.NewFromInt(2), scale, testNonce)
	require.NoError(t, err)

	assert.Equal(t, DigestUint(10, 2, testNonce), bid.Hash)
	assert.True(t, bid.Cost.Equal(decimal.New(20, 18)), "cost = 10 × 2 ether in wei, got %s", bid.Cost)
}

func TestNewBidWithNonce_RejectsInvalidQuantities(t *testing.T) {
	one := decimal.NewFromInt(1)
	tests := []struct {
		name                 string
		shares, price, scale decimal.Decimal
	}{
		{"zero shares", decimal.Zero, one, one},
		{"negative price", one, decimal.NewFromInt(-1), one},
		{"zero scale", one, one, decimal.Zero},
		{"fractional shares", decimal.RequireFromString("1.5"), decimal.NewFromInt(21), one},
		{"fractional price", one, decimal.RequireFromString("0.25"), one},
		{"shares beyond uint64", decimal.NewFromUint64(math.MaxUint64).Add(one), one, one},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBidWithNonce(tt.shares, tt.price, tt.scale, testNonce)
			assert.Error(t, err)
		})
	}
}

func TestNewBidWithNonce_AcceptsMaxUint64(t *testing.T) {
	one := decimal.NewFromInt(1)
	bid, err := NewBidWithNonce(decimal.NewFromUint64(math.MaxUint64), one, one, testNonce)
	require.NoError(t, err)
	assert.Equal(t, DigestUint(math.MaxUint64, 1, testNonce), bid.Hash)
}

func TestNewBid_RandomNonce(t *testing.T) {
	one := decimal.NewFromInt(1)
	a, err := NewBid(one, one, one)
	require.NoError(t, err)
	b, err := NewBid(one, one, one)
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Hash, b.Hash, "same bid with different nonces must not collide")
}
