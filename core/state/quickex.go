package state

import (
	"fmt"
	"math/big"

	"quickex/native/quickex"
)

type storedEscrow struct {
	Token     string
	Amount    *big.Int
	Owner     [20]byte
	Status    uint8
	CreatedAt uint64
	ExpiresAt uint64
}

func newStoredEscrow(e *quickex.EscrowEntry) *storedEscrow {
	return &storedEscrow{
		Token:     e.Token,
		Amount:    cloneAmount(e.Amount),
		Owner:     e.Owner,
		Status:    uint8(e.Status),
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
	}
}

func (s *storedEscrow) toEntry() (*quickex.EscrowEntry, error) {
	status := quickex.EscrowStatus(s.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("escrow: invalid stored status %d", s.Status)
	}
	return &quickex.EscrowEntry{
		Token:     s.Token,
		Amount:    cloneAmount(s.Amount),
		Owner:     s.Owner,
		Status:    status,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}, nil
}

// EscrowPut upserts the entry stored under commitment.
func (m *Manager) EscrowPut(commitment [32]byte, entry *quickex.EscrowEntry) error {
	if entry == nil {
		return fmt.Errorf("escrow: nil entry")
	}
	return m.putRLP(EscrowKey(commitment), newStoredEscrow(entry))
}

// EscrowGet returns a copy of the stored entry. ok is false when the
// commitment is unknown.
func (m *Manager) EscrowGet(commitment [32]byte) (*quickex.EscrowEntry, bool, error) {
	stored := new(storedEscrow)
	ok, err := m.getRLP(EscrowKey(commitment), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	entry, err := stored.toEntry()
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func (m *Manager) EscrowHas(commitment [32]byte) (bool, error) {
	return m.has(EscrowKey(commitment))
}

// EscrowDelete removes an entry. Only used to undo a deposit whose transfer
// failed.
func (m *Manager) EscrowDelete(commitment [32]byte) error {
	if m == nil || m.kv == nil {
		return fmt.Errorf("state: backend not configured")
	}
	return m.kv.Delete(EscrowKey(commitment))
}

// PrivacyFlag returns the account's privacy flag, false when never set.
func (m *Manager) PrivacyFlag(account [20]byte) (bool, error) {
	var enabled bool
	if _, err := m.getRLP(PrivacyFlagKey(account), &enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

func (m *Manager) SetPrivacyFlag(account [20]byte, enabled bool) error {
	return m.putRLP(PrivacyFlagKey(account), enabled)
}

// PrivacyLevel returns the legacy numeric level and whether one was set.
func (m *Manager) PrivacyLevel(account [20]byte) (uint32, bool, error) {
	var level uint32
	ok, err := m.getRLP(PrivacyLevelKey(account), &level)
	if err != nil || !ok {
		return 0, false, err
	}
	return level, true, nil
}

// SetPrivacyLevel stores level and prepends it to the account history.
func (m *Manager) SetPrivacyLevel(account [20]byte, level uint32) error {
	history, err := m.PrivacyHistory(account)
	if err != nil {
		return err
	}
	if err := m.putRLP(PrivacyLevelKey(account), level); err != nil {
		return err
	}
	history = append([]uint32{level}, history...)
	return m.putRLP(PrivacyHistoryKey(account), history)
}

// PrivacyHistory returns every level ever set for the account, newest first.
func (m *Manager) PrivacyHistory(account [20]byte) ([]uint32, error) {
	var history []uint32
	if _, err := m.getRLP(PrivacyHistoryKey(account), &history); err != nil {
		return nil, err
	}
	return history, nil
}

// Admin returns the configured admin, if any.
func (m *Manager) Admin() ([20]byte, bool, error) {
	var admin [20]byte
	ok, err := m.getRLP(AdminKey(), &admin)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	return admin, true, nil
}

func (m *Manager) SetAdmin(admin [20]byte) error {
	return m.putRLP(AdminKey(), admin)
}

// Paused reports the pause flag, false when never set.
func (m *Manager) Paused() (bool, error) {
	var paused bool
	if _, err := m.getRLP(PausedKey(), &paused); err != nil {
		return false, err
	}
	return paused, nil
}

func (m *Manager) SetPaused(paused bool) error {
	return m.putRLP(PausedKey(), paused)
}

func (m *Manager) CodeHash() ([32]byte, bool, error) {
	var hash [32]byte
	ok, err := m.getRLP(CodeHashKey(), &hash)
	if err != nil || !ok {
		return [32]byte{}, false, err
	}
	return hash, true, nil
}

func (m *Manager) SetCodeHash(hash [32]byte) error {
	return m.putRLP(CodeHashKey(), hash)
}

// NextLegacyEscrowID increments the legacy counter and returns the new value.
// The first id handed out is 1.
func (m *Manager) NextLegacyEscrowID() (uint64, error) {
	var counter uint64
	if _, err := m.getRLP(EscrowCounterKey(), &counter); err != nil {
		return 0, err
	}
	counter++
	if err := m.putRLP(EscrowCounterKey(), counter); err != nil {
		return 0, err
	}
	return counter, nil
}

func (m *Manager) LegacyEscrowPut(escrow *quickex.LegacyEscrow) error {
	if escrow == nil {
		return fmt.Errorf("legacy escrow: nil record")
	}
	return m.putRLP(LegacyEscrowKey(escrow.ID), escrow)
}

func (m *Manager) LegacyEscrowGet(id uint64) (*quickex.LegacyEscrow, bool, error) {
	escrow := new(quickex.LegacyEscrow)
	ok, err := m.getRLP(LegacyEscrowKey(id), escrow)
	if err != nil || !ok {
		return nil, false, err
	}
	return escrow, true, nil
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
