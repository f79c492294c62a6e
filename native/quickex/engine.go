package quickex

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	qxerrors "quickex/core/errors"
	"quickex/core/events"
	"quickex/crypto"
)

var errNilState = errors.New("quickex engine: state not configured")

type escrowStore interface {
	EscrowPut(commitment [32]byte, entry *EscrowEntry) error
	EscrowGet(commitment [32]byte) (*EscrowEntry, bool, error)
	EscrowHas(commitment [32]byte) (bool, error)
	EscrowDelete(commitment [32]byte) error
}

type privacyStore interface {
	PrivacyFlag(account [20]byte) (bool, error)
	SetPrivacyFlag(account [20]byte, enabled bool) error
	PrivacyLevel(account [20]byte) (uint32, bool, error)
	SetPrivacyLevel(account [20]byte, level uint32) error
	PrivacyHistory(account [20]byte) ([]uint32, error)
}

type adminStore interface {
	Admin() ([20]byte, bool, error)
	SetAdmin(admin [20]byte) error
	Paused() (bool, error)
	SetPaused(paused bool) error
	CodeHash() ([32]byte, bool, error)
	SetCodeHash(hash [32]byte) error
	NextLegacyEscrowID() (uint64, error)
	LegacyEscrowPut(escrow *LegacyEscrow) error
	LegacyEscrowGet(id uint64) (*LegacyEscrow, bool, error)
}

type bank interface {
	Transfer(symbol string, from, to [20]byte, amount *big.Int) error
}

type engineState interface {
	escrowStore
	privacyStore
	adminStore
	bank
}

// Authorizer is the host's require_auth capability. RequireAuth fails unless
// the current invocation proved control of account.
type Authorizer interface {
	RequireAuth(account [20]byte) error
}

// AccountSet authorizes a fixed set of accounts, typically the signers of the
// request being executed.
type AccountSet map[[20]byte]struct{}

// NewAccountSet builds an authorizer for the supplied accounts.
func NewAccountSet(accounts ...[20]byte) AccountSet {
	set := make(AccountSet, len(accounts))
	for _, acct := range accounts {
		set[acct] = struct{}{}
	}
	return set
}

// RequireAuth implements Authorizer.
func (s AccountSet) RequireAuth(account [20]byte) error {
	if _, ok := s[account]; ok {
		return nil
	}
	return fmt.Errorf("%w: %s did not authorize the call", qxerrors.ErrUnauthorized, crypto.AccountAddress(account))
}

// Engine executes the escrow state machine against injected state. An engine
// serves a single invocation: the host builds one per call with the state
// overlay, authorizer and emitter for that call.
type Engine struct {
	state   engineState
	auth    Authorizer
	emitter events.Emitter
	nowFn   func() uint64
}

// NewEngine creates an engine with a no-op emitter and no authorized
// accounts.
func NewEngine() *Engine {
	return &Engine{
		auth:    AccountSet{},
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthorizer configures the require_auth capability. Passing nil denies
// every account.
func (e *Engine) SetAuthorizer(auth Authorizer) {
	if auth == nil {
		e.auth = AccountSet{}
		return
	}
	e.auth = auth
}

// SetNowFunc overrides the ledger clock. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

func (e *Engine) ensureState() error {
	if e == nil || e.state == nil {
		return qxerrors.Internal("engine", errNilState)
	}
	return nil
}

func (e *Engine) requireAuth(account [20]byte) error {
	if e.auth == nil {
		return qxerrors.ErrUnauthorized
	}
	return e.auth.RequireAuth(account)
}

func (e *Engine) requireNotPaused() error {
	paused, err := e.state.Paused()
	if err != nil {
		return qxerrors.Internal("load pause flag", err)
	}
	if paused {
		return qxerrors.ErrContractPaused
	}
	return nil
}

func (e *Engine) loadEscrow(commitment [32]byte) (*EscrowEntry, error) {
	entry, ok, err := e.state.EscrowGet(commitment)
	if err != nil {
		return nil, qxerrors.Internal("load escrow", err)
	}
	if !ok {
		return nil, qxerrors.ErrCommitmentNotFound
	}
	return entry, nil
}

// settle persists the terminal entry and pays out of custody. If the payout
// fails the previous entry is written back.
func (e *Engine) settle(commitment [32]byte, prev, next *EscrowEntry, to [20]byte) error {
	if err := e.state.EscrowPut(commitment, next); err != nil {
		return qxerrors.Internal("store escrow", err)
	}
	if err := e.state.Transfer(next.Token, CustodyAddress, to, next.Amount); err != nil {
		if restoreErr := e.state.EscrowPut(commitment, prev); restoreErr != nil {
			return qxerrors.Internal("release custody", errors.Join(err, restoreErr))
		}
		return qxerrors.Internal("release custody", err)
	}
	return nil
}

func positive(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}
