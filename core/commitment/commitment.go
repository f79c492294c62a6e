package commitment

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	sha256 "github.com/minio/sha256-simd"

	qxerrors "quickex/core/errors"
)

const (
	// MaxSaltLength bounds the caller-chosen salt.
	MaxSaltLength = 1024
	// AmountLength is the width of the big-endian amount in the preimage.
	AmountLength = 16
	// Length is the size of a commitment.
	Length = 32
)

// maxAmount is the largest value of a signed 128-bit integer.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

// Commitment binds an owner, an amount and a salt. It is the escrow lookup key.
type Commitment = [Length]byte

// Create computes SHA-256(rlp(owner) || be16(amount) || salt). It performs no
// storage access.
func Create(owner [20]byte, amount *big.Int, salt []byte) (Commitment, error) {
	if amount == nil || amount.Sign() < 0 || amount.Cmp(maxAmount) > 0 {
		return Commitment{}, qxerrors.ErrInvalidAmount
	}
	if len(salt) > MaxSaltLength {
		return Commitment{}, qxerrors.ErrInvalidSalt
	}
	encodedOwner, err := rlp.EncodeToBytes(owner)
	if err != nil {
		return Commitment{}, qxerrors.Internal("encode owner", err)
	}
	var amountBytes [AmountLength]byte
	amount.FillBytes(amountBytes[:])

	h := sha256.New()
	h.Write(encodedOwner)
	h.Write(amountBytes[:])
	h.Write(salt)

	var out Commitment
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Verify reports whether commitment was produced from the supplied triple. Any
// failure to recompute yields false.
func Verify(commitment Commitment, owner [20]byte, amount *big.Int, salt []byte) bool {
	computed, err := Create(owner, amount, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(computed[:], commitment[:]) == 1
}

// Hex renders the commitment as a 0x-prefixed string.
func Hex(c Commitment) string {
	return "0x" + hex.EncodeToString(c[:])
}

// Parse decodes a hex commitment with or without the 0x prefix.
func Parse(s string) (Commitment, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Commitment{}, fmt.Errorf("commitment: invalid hex: %w", err)
	}
	if len(raw) != Length {
		return Commitment{}, fmt.Errorf("commitment: expected %d bytes, got %d", Length, len(raw))
	}
	var out Commitment
	copy(out[:], raw)
	return out, nil
}

// IsZero reports whether c is the all-zero value.
func IsZero(c Commitment) bool {
	return c == Commitment{}
}
