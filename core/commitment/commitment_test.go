package commitment

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	qxerrors "quickex/core/errors"
)

func account(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func TestCreateDeterministic(t *testing.T) {
	owner := account(0x11)
	salt := []byte("salt")
	first, err := Create(owner, big.NewInt(1000), salt)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := Create(owner, big.NewInt(1000), salt)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical commitments, got %x and %x", first, second)
	}
}

func TestCreateSpreadsAcrossInputs(t *testing.T) {
	seen := make(map[Commitment]string)
	for o := byte(1); o <= 4; o++ {
		for a := int64(0); a < 4; a++ {
			for _, salt := range [][]byte{nil, []byte("a"), []byte("b"), bytes.Repeat([]byte{0x01}, 32)} {
				c, err := Create(account(o), big.NewInt(a), salt)
				if err != nil {
					t.Fatalf("create: %v", err)
				}
				label := string([]byte{o}) + big.NewInt(a).String() + string(salt)
				if prev, dup := seen[c]; dup {
					t.Fatalf("collision between %q and %q", prev, label)
				}
				seen[c] = label
			}
		}
	}
}

func TestVerifyBinding(t *testing.T) {
	owner := account(0x22)
	amount := big.NewInt(500)
	salt := []byte("binding")
	c, err := Create(owner, amount, salt)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !Verify(c, owner, amount, salt) {
		t.Fatalf("expected commitment to verify")
	}
	if Verify(c, account(0x23), amount, salt) {
		t.Fatalf("different owner should not verify")
	}
	if Verify(c, owner, big.NewInt(501), salt) {
		t.Fatalf("different amount should not verify")
	}
	if Verify(c, owner, amount, []byte("bindinG")) {
		t.Fatalf("different salt should not verify")
	}
	if Verify(c, owner, big.NewInt(-1), salt) {
		t.Fatalf("invalid amount should verify false")
	}
}

func TestCreateRangeValidation(t *testing.T) {
	owner := account(0x33)
	if _, err := Create(owner, big.NewInt(-1), nil); !errors.Is(err, qxerrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := Create(owner, nil, nil); !errors.Is(err, qxerrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for nil, got %v", err)
	}
	tooBig := new(big.Int).Lsh(big.NewInt(1), 127)
	if _, err := Create(owner, tooBig, nil); !errors.Is(err, qxerrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount above i128, got %v", err)
	}
	if _, err := Create(owner, new(big.Int).Sub(tooBig, big.NewInt(1)), nil); err != nil {
		t.Fatalf("i128 max should be accepted: %v", err)
	}
	if _, err := Create(owner, big.NewInt(1), make([]byte, MaxSaltLength+1)); !errors.Is(err, qxerrors.ErrInvalidSalt) {
		t.Fatalf("expected invalid salt, got %v", err)
	}
	if _, err := Create(owner, big.NewInt(1), make([]byte, MaxSaltLength)); err != nil {
		t.Fatalf("salt of exactly %d bytes should be accepted: %v", MaxSaltLength, err)
	}
	if _, err := Create(owner, big.NewInt(0), nil); err != nil {
		t.Fatalf("zero amount is a valid commitment input: %v", err)
	}
}

func TestHexParse(t *testing.T) {
	c, err := Create(account(0x44), big.NewInt(7), []byte("x"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	parsed, err := Parse(Hex(c))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != c {
		t.Fatalf("round trip mismatch")
	}
	if _, err := Parse("0x1234"); err == nil {
		t.Fatalf("expected short commitment to fail")
	}
	if _, err := Parse("zz"); err == nil {
		t.Fatalf("expected bad hex to fail")
	}
	if IsZero(c) || !IsZero(Commitment{}) {
		t.Fatalf("IsZero mismatch")
	}
}
