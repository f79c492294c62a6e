package state

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Every namespace has its own tag and a fixed-length payload, so two variants
// never share a preimage.
var (
	tokenPrefix   = []byte("token:")
	tokenListKey  = ethcrypto.Keccak256([]byte("token-list"))
	balancePrefix = []byte("balance:")

	quickexEscrowPrefix         = []byte("quickex/escrow/")
	quickexEscrowCounterTag     = []byte("quickex/escrow-counter")
	quickexAdminTag             = []byte("quickex/admin")
	quickexPausedTag            = []byte("quickex/paused")
	quickexCodeHashTag          = []byte("quickex/code-hash")
	quickexPrivacyFlagPrefix    = []byte("quickex/privacy/flag/")
	quickexPrivacyLevelPrefix   = []byte("quickex/privacy/level/")
	quickexPrivacyHistoryPrefix = []byte("quickex/privacy/history/")
	quickexLegacyEscrowPrefix   = []byte("quickex/legacy-escrow/")
	genesisMarkerTag            = []byte("quickex/genesis")
)

func taggedKey(tag []byte, payload []byte) []byte {
	buf := make([]byte, len(tag)+len(payload))
	copy(buf, tag)
	copy(buf[len(tag):], payload)
	return ethcrypto.Keccak256(buf)
}

// EscrowKey locates the escrow entry for a commitment.
func EscrowKey(commitment [32]byte) []byte { return taggedKey(quickexEscrowPrefix, commitment[:]) }

// EscrowCounterKey locates the legacy escrow id counter.
func EscrowCounterKey() []byte { return taggedKey(quickexEscrowCounterTag, nil) }

// AdminKey locates the contract admin.
func AdminKey() []byte { return taggedKey(quickexAdminTag, nil) }

// PausedKey locates the pause flag.
func PausedKey() []byte { return taggedKey(quickexPausedTag, nil) }

// CodeHashKey locates the hash recorded by the last upgrade.
func CodeHashKey() []byte { return taggedKey(quickexCodeHashTag, nil) }

func PrivacyFlagKey(account [20]byte) []byte {
	return taggedKey(quickexPrivacyFlagPrefix, account[:])
}

func PrivacyLevelKey(account [20]byte) []byte {
	return taggedKey(quickexPrivacyLevelPrefix, account[:])
}

func PrivacyHistoryKey(account [20]byte) []byte {
	return taggedKey(quickexPrivacyHistoryPrefix, account[:])
}

// LegacyEscrowKey locates a counter-indexed legacy escrow.
func LegacyEscrowKey(id uint64) []byte {
	var payload [8]byte
	binary.BigEndian.PutUint64(payload[:], id)
	return taggedKey(quickexLegacyEscrowPrefix, payload[:])
}

// GenesisKey marks that genesis allocations were applied.
func GenesisKey() []byte { return taggedKey(genesisMarkerTag, nil) }

// TokenKey locates the metadata of a registered token.
func TokenKey(symbol string) []byte {
	return taggedKey(tokenPrefix, []byte(symbol))
}

// BalanceKey locates an account balance for a token.
func BalanceKey(symbol string, addr [20]byte) []byte {
	payload := make([]byte, len(symbol)+1+len(addr))
	copy(payload, symbol)
	payload[len(symbol)] = ':'
	copy(payload[len(symbol)+1:], addr[:])
	return taggedKey(balancePrefix, payload)
}
