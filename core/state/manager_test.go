package state

import (
	"errors"
	"math/big"
	"testing"

	"quickex/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(storage.NewMemDB())
	if err := m.RegisterToken("qxt", "QuickEx Test", 6); err != nil {
		t.Fatalf("register token: %v", err)
	}
	return m
}

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func TestRegisterTokenIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	if err := m.RegisterToken("QXT", "again", 2); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	meta, err := m.Token("qxt")
	if err != nil || meta == nil {
		t.Fatalf("token lookup: %v", err)
	}
	if meta.Decimals != 6 || meta.Name != "QuickEx Test" {
		t.Fatalf("metadata overwritten: %+v", meta)
	}
	list, err := m.TokenList()
	if err != nil {
		t.Fatalf("token list: %v", err)
	}
	if len(list) != 1 || list[0] != "QXT" {
		t.Fatalf("unexpected token list %v", list)
	}
	if err := m.RegisterToken("A:B", "bad", 0); err == nil {
		t.Fatalf("expected separator in symbol to be rejected")
	}
}

func TestTransferMovesExactAmounts(t *testing.T) {
	m := newTestManager(t)
	alice, bob := addr(0x01), addr(0x02)
	if err := m.SetBalance(alice, "QXT", big.NewInt(100)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if err := m.Transfer("qxt", alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	a, _ := m.Balance(alice, "QXT")
	b, _ := m.Balance(bob, "QXT")
	if a.Cmp(big.NewInt(60)) != 0 || b.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("unexpected balances alice=%s bob=%s", a, b)
	}
}

func TestTransferRejections(t *testing.T) {
	m := newTestManager(t)
	alice, bob := addr(0x01), addr(0x02)
	if err := m.Transfer("QXT", alice, bob, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := m.Transfer("QXT", alice, bob, big.NewInt(0)); !errors.Is(err, ErrInvalidTransfer) {
		t.Fatalf("expected invalid transfer, got %v", err)
	}
	if err := m.Transfer("NOPE", alice, bob, big.NewInt(1)); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected unknown token, got %v", err)
	}
	if err := m.SetBalance(alice, "NOPE", big.NewInt(1)); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected unknown token on set balance, got %v", err)
	}
}

func TestKeysDoNotOverlap(t *testing.T) {
	var zero [32]byte
	var account [20]byte
	keys := map[string]string{}
	add := func(name string, key []byte) {
		if prev, dup := keys[string(key)]; dup {
			t.Fatalf("%s collides with %s", name, prev)
		}
		keys[string(key)] = name
	}
	add("escrow", EscrowKey(zero))
	add("counter", EscrowCounterKey())
	add("admin", AdminKey())
	add("paused", PausedKey())
	add("code", CodeHashKey())
	add("flag", PrivacyFlagKey(account))
	add("level", PrivacyLevelKey(account))
	add("history", PrivacyHistoryKey(account))
	add("legacy", LegacyEscrowKey(0))
	add("token", TokenKey("QXT"))
	add("balance", BalanceKey("QXT", account))
	add("genesis", GenesisKey())
}
