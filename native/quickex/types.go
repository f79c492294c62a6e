package quickex

import (
	"math/big"

	"quickex/crypto"
)

// EscrowStatus enumerates the lifecycle states of a committed escrow.
type EscrowStatus uint8

const (
	EscrowPending EscrowStatus = iota
	EscrowSpent
	// EscrowExpired is a legacy tag kept only so that old records decode. It
	// is never written; an entry carrying it behaves as Pending past expiry.
	EscrowExpired
	EscrowRefunded
)

// Valid reports whether the status is a known tag, including the legacy
// Expired value.
func (s EscrowStatus) Valid() bool {
	switch s {
	case EscrowPending, EscrowSpent, EscrowExpired, EscrowRefunded:
		return true
	default:
		return false
	}
}

// Open reports whether the escrow can still transition.
func (s EscrowStatus) Open() bool {
	return s == EscrowPending || s == EscrowExpired
}

func (s EscrowStatus) String() string {
	switch s {
	case EscrowPending:
		return "pending"
	case EscrowSpent:
		return "spent"
	case EscrowExpired:
		return "expired"
	case EscrowRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// ParseStatus maps the string form back onto a status.
func ParseStatus(s string) (EscrowStatus, bool) {
	switch s {
	case "pending":
		return EscrowPending, true
	case "spent":
		return EscrowSpent, true
	case "expired":
		return EscrowExpired, true
	case "refunded":
		return EscrowRefunded, true
	default:
		return 0, false
	}
}

// EscrowEntry is the persisted record behind a commitment. Token, Amount and
// Owner never change after creation.
type EscrowEntry struct {
	Token     string
	Amount    *big.Int
	Owner     [20]byte
	Status    EscrowStatus
	CreatedAt uint64
	// ExpiresAt of zero means the escrow never expires and can never be
	// refunded.
	ExpiresAt uint64
}

// Clone returns a deep copy of the entry.
func (e *EscrowEntry) Clone() *EscrowEntry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Amount != nil {
		out.Amount = new(big.Int).Set(e.Amount)
	} else {
		out.Amount = big.NewInt(0)
	}
	return &out
}

// Expired reports whether the entry is past its expiry at now. Legacy Expired
// entries are always treated as expired.
func (e *EscrowEntry) Expired(now uint64) bool {
	if e == nil {
		return false
	}
	if e.Status == EscrowExpired {
		return true
	}
	return e.ExpiresAt > 0 && now >= e.ExpiresAt
}

// EscrowView is the projection returned to callers. Amount and Owner are nil
// when the owner has privacy enabled and the caller is someone else.
type EscrowView struct {
	Token     string
	Amount    *big.Int
	Owner     *[20]byte
	Status    EscrowStatus
	CreatedAt uint64
	ExpiresAt uint64
}

// Redacted reports whether the private fields were withheld.
func (v *EscrowView) Redacted() bool {
	return v != nil && v.Amount == nil && v.Owner == nil
}

// LegacyEscrow is the counter-indexed record kept for older clients.
type LegacyEscrow struct {
	ID     uint64
	From   [20]byte
	To     [20]byte
	Amount uint64
}

// MaxPrivacyLevel is the highest accepted legacy privacy level.
const MaxPrivacyLevel uint32 = 3

// CustodyAddress is the module account holding escrowed funds.
var CustodyAddress = crypto.ModuleAddress("quickex/custody")

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
