package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"quickex/core/types"
	"quickex/crypto"
)

const (
	TypeQuickexDeposit          = "quickex.deposit"
	TypeQuickexWithdrawToggled  = "quickex.withdraw_toggled"
	TypeQuickexRefunded         = "quickex.refunded"
	TypeQuickexPrivacyToggled   = "quickex.privacy_toggled"
	TypeQuickexContractPaused   = "quickex.contract_paused"
	TypeQuickexAdminChanged     = "quickex.admin_changed"
	TypeQuickexContractUpgraded = "quickex.contract_upgraded"
	TypeQuickexPrivacyLevel     = "quickex.privacy_level"
	TypeQuickexLegacyEscrow     = "quickex.legacy_escrow_created"
)

// QuickexDeposit is emitted when funds move into custody under a commitment.
// Neither the salt nor the owner appears in the event. Private marks a
// deposit by an account with privacy enabled, whose amount is withheld.
type QuickexDeposit struct {
	Commitment [32]byte
	Token      string
	Amount     *big.Int
	ExpiresAt  uint64
	Private    bool
}

func (QuickexDeposit) EventType() string { return TypeQuickexDeposit }

func (e QuickexDeposit) Event() *types.Event {
	attrs := map[string]string{
		"commitment": hexCommitment(e.Commitment),
		"token":      e.Token,
		"expiresAt":  strconv.FormatUint(e.ExpiresAt, 10),
	}
	if !e.Private {
		attrs["amount"] = formatAmount(e.Amount)
	}
	return &types.Event{Type: TypeQuickexDeposit, Attributes: attrs}
}

// QuickexWithdrawToggled is emitted when a Pending escrow is spent.
type QuickexWithdrawToggled struct {
	Commitment [32]byte
	To         [20]byte
	Token      string
	Amount     *big.Int
}

func (QuickexWithdrawToggled) EventType() string { return TypeQuickexWithdrawToggled }

func (e QuickexWithdrawToggled) Event() *types.Event {
	return &types.Event{
		Type: TypeQuickexWithdrawToggled,
		Attributes: map[string]string{
			"commitment": hexCommitment(e.Commitment),
			"to":         crypto.AccountAddress(e.To).String(),
			"token":      e.Token,
			"amount":     formatAmount(e.Amount),
		},
	}
}

// QuickexRefunded is emitted when an expired escrow returns to its owner.
// Owner and amount are withheld when Private is set.
type QuickexRefunded struct {
	Commitment [32]byte
	Owner      [20]byte
	Token      string
	Amount     *big.Int
	Private    bool
}

func (QuickexRefunded) EventType() string { return TypeQuickexRefunded }

func (e QuickexRefunded) Event() *types.Event {
	attrs := map[string]string{
		"commitment": hexCommitment(e.Commitment),
		"token":      e.Token,
	}
	if !e.Private {
		attrs["owner"] = crypto.AccountAddress(e.Owner).String()
		attrs["amount"] = formatAmount(e.Amount)
	}
	return &types.Event{Type: TypeQuickexRefunded, Attributes: attrs}
}

type QuickexPrivacyToggled struct {
	Account [20]byte
	Enabled bool
	At      uint64
}

func (QuickexPrivacyToggled) EventType() string { return TypeQuickexPrivacyToggled }

func (e QuickexPrivacyToggled) Event() *types.Event {
	return &types.Event{
		Type: TypeQuickexPrivacyToggled,
		Attributes: map[string]string{
			"account":   crypto.AccountAddress(e.Account).String(),
			"enabled":   strconv.FormatBool(e.Enabled),
			"timestamp": strconv.FormatUint(e.At, 10),
		},
	}
}

type QuickexContractPaused struct {
	Admin  [20]byte
	Paused bool
	At     uint64
}

func (QuickexContractPaused) EventType() string { return TypeQuickexContractPaused }

func (e QuickexContractPaused) Event() *types.Event {
	return &types.Event{
		Type: TypeQuickexContractPaused,
		Attributes: map[string]string{
			"admin":     crypto.AccountAddress(e.Admin).String(),
			"paused":    strconv.FormatBool(e.Paused),
			"timestamp": strconv.FormatUint(e.At, 10),
		},
	}
}

type QuickexAdminChanged struct {
	Previous [20]byte
	Next     [20]byte
	At       uint64
}

func (QuickexAdminChanged) EventType() string { return TypeQuickexAdminChanged }

func (e QuickexAdminChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeQuickexAdminChanged,
		Attributes: map[string]string{
			"previous":  crypto.AccountAddress(e.Previous).String(),
			"next":      crypto.AccountAddress(e.Next).String(),
			"timestamp": strconv.FormatUint(e.At, 10),
		},
	}
}

type QuickexContractUpgraded struct {
	Admin    [20]byte
	CodeHash [32]byte
	At       uint64
}

func (QuickexContractUpgraded) EventType() string { return TypeQuickexContractUpgraded }

func (e QuickexContractUpgraded) Event() *types.Event {
	return &types.Event{
		Type: TypeQuickexContractUpgraded,
		Attributes: map[string]string{
			"admin":     crypto.AccountAddress(e.Admin).String(),
			"codeHash":  hexCommitment(e.CodeHash),
			"timestamp": strconv.FormatUint(e.At, 10),
		},
	}
}

// QuickexPrivacyLevel records a legacy numeric privacy level change.
type QuickexPrivacyLevel struct {
	Account [20]byte
	Level   uint32
}

func (QuickexPrivacyLevel) EventType() string { return TypeQuickexPrivacyLevel }

func (e QuickexPrivacyLevel) Event() *types.Event {
	return &types.Event{
		Type: TypeQuickexPrivacyLevel,
		Attributes: map[string]string{
			"account": crypto.AccountAddress(e.Account).String(),
			"level":   strconv.FormatUint(uint64(e.Level), 10),
		},
	}
}

type QuickexLegacyEscrow struct {
	ID     uint64
	From   [20]byte
	To     [20]byte
	Amount uint64
}

func (QuickexLegacyEscrow) EventType() string { return TypeQuickexLegacyEscrow }

func (e QuickexLegacyEscrow) Event() *types.Event {
	return &types.Event{
		Type: TypeQuickexLegacyEscrow,
		Attributes: map[string]string{
			"id":     strconv.FormatUint(e.ID, 10),
			"from":   crypto.AccountAddress(e.From).String(),
			"to":     crypto.AccountAddress(e.To).String(),
			"amount": strconv.FormatUint(e.Amount, 10),
		},
	}
}

func hexCommitment(c [32]byte) string {
	return "0x" + hex.EncodeToString(c[:])
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
