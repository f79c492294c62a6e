package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"quickex/storage"
)

var (
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	ErrUnknownToken        = errors.New("state: token not registered")
	ErrInvalidTransfer     = errors.New("state: transfer amount must be positive")
)

// Backend is the key-value surface the manager reads and writes. Get reports
// storage.ErrNotFound for absent keys. A Journal and every storage.Database
// satisfy it.
type Backend interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Manager provides typed access to contract and bank state on top of a
// Backend. Values are RLP encoded under keccak-hashed keys.
type Manager struct {
	kv Backend
}

// NewManager creates a state manager operating on the provided backend.
func NewManager(kv Backend) *Manager {
	return &Manager{kv: kv}
}

type TokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (m *Manager) getRaw(key []byte) ([]byte, bool, error) {
	if m == nil || m.kv == nil {
		return nil, false, fmt.Errorf("state: backend not configured")
	}
	data, err := m.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, len(data) > 0, nil
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	data, ok, err := m.getRaw(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	if m == nil || m.kv == nil {
		return fmt.Errorf("state: backend not configured")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.kv.Put(key, encoded)
}

func (m *Manager) has(key []byte) (bool, error) {
	_, ok, err := m.getRaw(key)
	return ok, err
}

func (m *Manager) loadTokenList() ([]string, error) {
	var list []string
	if _, err := m.getRLP(tokenListKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// RegisterToken records token metadata. Registering an existing symbol is a
// no-op so genesis can be replayed against an initialised database.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8) error {
	normalized := normalizeSymbol(symbol)
	if normalized == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if strings.Contains(normalized, ":") {
		return fmt.Errorf("token symbol %q must not contain ':'", normalized)
	}
	exists, err := m.has(TokenKey(normalized))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	meta := &TokenMetadata{Symbol: normalized, Name: strings.TrimSpace(name), Decimals: decimals}
	if err := m.putRLP(TokenKey(normalized), meta); err != nil {
		return err
	}
	list, err := m.loadTokenList()
	if err != nil {
		return err
	}
	list = append(list, normalized)
	sort.Strings(list)
	return m.putRLP(tokenListKey, list)
}

// Token returns the metadata of a registered token, or nil when unknown.
func (m *Manager) Token(symbol string) (*TokenMetadata, error) {
	meta := new(TokenMetadata)
	ok, err := m.getRLP(TokenKey(normalizeSymbol(symbol)), meta)
	if err != nil || !ok {
		return nil, err
	}
	return meta, nil
}

// TokenExists reports whether the token has been registered.
func (m *Manager) TokenExists(symbol string) bool {
	meta, err := m.Token(symbol)
	return err == nil && meta != nil
}

// TokenList returns all registered token symbols in sorted order.
func (m *Manager) TokenList() ([]string, error) {
	return m.loadTokenList()
}

// SetBalance stores an account balance for the provided token.
func (m *Manager) SetBalance(addr [20]byte, symbol string, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	normalized := normalizeSymbol(symbol)
	if !m.TokenExists(normalized) {
		return fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	return m.putRLP(BalanceKey(normalized, addr), amount)
}

// Balance retrieves a token balance for the provided account and token.
// Unknown accounts hold zero.
func (m *Manager) Balance(addr [20]byte, symbol string) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.getRLP(BalanceKey(normalizeSymbol(symbol), addr), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// Transfer moves amount of token from one account to another. Nothing is
// written when the sender cannot cover the amount.
func (m *Manager) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidTransfer
	}
	normalized := normalizeSymbol(symbol)
	if !m.TokenExists(normalized) {
		return fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	fromBal, err := m.Balance(from, normalized)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal, amount)
	}
	if from == to {
		return nil
	}
	toBal, err := m.Balance(to, normalized)
	if err != nil {
		return err
	}
	if err := m.putRLP(BalanceKey(normalized, from), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return m.putRLP(BalanceKey(normalized, to), new(big.Int).Add(toBal, amount))
}

// GenesisApplied reports whether genesis allocations were already written.
func (m *Manager) GenesisApplied() (bool, error) {
	return m.has(GenesisKey())
}

func (m *Manager) MarkGenesisApplied() error {
	return m.putRLP(GenesisKey(), true)
}
