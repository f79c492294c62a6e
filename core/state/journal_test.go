package state

import (
	"errors"
	"math/big"
	"testing"

	"quickex/storage"
)

func TestJournalBuffersUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	base := NewManager(db)
	if err := base.RegisterToken("QXT", "", 0); err != nil {
		t.Fatalf("register: %v", err)
	}

	journal := NewJournal(db)
	m := NewManager(journal)
	if err := m.SetBalance(addr(0x01), "QXT", big.NewInt(5)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if got, _ := m.Balance(addr(0x01), "QXT"); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("overlay read should see write, got %s", got)
	}
	if got, _ := base.Balance(addr(0x01), "QXT"); got.Sign() != 0 {
		t.Fatalf("base should not see uncommitted write, got %s", got)
	}
	if journal.Dirty() != 1 {
		t.Fatalf("expected one dirty key, got %d", journal.Dirty())
	}
	if err := journal.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got, _ := base.Balance(addr(0x01), "QXT"); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("base should see committed write, got %s", got)
	}
}

func TestJournalDiscardAndDelete(t *testing.T) {
	db := storage.NewMemDB()
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	journal := NewJournal(db)
	if err := journal.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := journal.Get([]byte("k")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deleted key should be hidden, got %v", err)
	}
	if err := journal.Put([]byte("n"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	journal.Discard()
	if v, err := journal.Get([]byte("k")); err != nil || string(v) != "v" {
		t.Fatalf("discard should restore base view, got %q %v", v, err)
	}
	if _, err := db.Get([]byte("n")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("discarded write reached the database")
	}
	if err := journal.Commit(); err != nil {
		t.Fatalf("empty commit: %v", err)
	}
}
