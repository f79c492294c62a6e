package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	qxerrors "quickex/core/errors"
	"quickex/core/events"
	"quickex/core/state"
	"quickex/core/types"
	"quickex/native/quickex"
	"quickex/storage"
)

// Node hosts the QuickEx module over a database. Every invocation runs alone
// against a journal overlay that is committed on success and discarded on any
// error, together with the events it produced.
type Node struct {
	db       storage.Database
	stateMu  sync.Mutex
	emitter  events.Emitter
	nowFn    func() uint64
	logger   *slog.Logger
	sequence atomic.Uint64
}

// NewNode wires a node over db with a wall clock and a no-op emitter.
func NewNode(db storage.Database) *Node {
	return &Node{
		db:      db,
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
		logger:  slog.Default(),
	}
}

// SetEmitter configures where committed events go. Passing nil discards them.
func (n *Node) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		n.emitter = events.NoopEmitter{}
		return
	}
	n.emitter = emitter
}

// SetNowFunc overrides the ledger clock.
func (n *Node) SetNowFunc(now func() uint64) {
	if now == nil {
		n.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	n.nowFn = now
}

func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger
}

func (n *Node) newEngine(manager *state.Manager, auth quickex.Authorizer, emitter events.Emitter, now uint64) *quickex.Engine {
	engine := quickex.NewEngine()
	engine.SetState(manager)
	engine.SetAuthorizer(auth)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() uint64 { return now })
	return engine
}

// Invoke runs fn as one transactional call. auth decides which accounts the
// call may act for. The ledger time is read once and shared by every check in
// the call.
func (n *Node) Invoke(ctx context.Context, auth quickex.Authorizer, fn func(*quickex.Engine) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	journal := state.NewJournal(n.db)
	buffer := &events.Buffer{}
	now := n.nowFn()
	engine := n.newEngine(state.NewManager(journal), auth, buffer, now)

	if err := fn(engine); err != nil {
		journal.Discard()
		buffer.Discard()
		return err
	}
	dirty := journal.Dirty()
	if err := journal.Commit(); err != nil {
		buffer.Discard()
		n.logger.Error("quickex commit failed", slog.Any("error", err), slog.Int("keys", dirty))
		return qxerrors.Internal("commit", err)
	}
	n.publish(buffer, now)
	return nil
}

// View runs fn against committed state. Nothing fn writes survives and no
// account is authorized.
func (n *Node) View(ctx context.Context, fn func(*quickex.Engine) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	journal := state.NewJournal(n.db)
	defer journal.Discard()
	engine := n.newEngine(state.NewManager(journal), nil, events.NoopEmitter{}, n.nowFn())
	return fn(engine)
}

// Balance returns the committed token balance of account.
func (n *Node) Balance(ctx context.Context, account [20]byte, token string) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return state.NewManager(n.db).Balance(account, token)
}

// Tokens lists the registered token symbols.
func (n *Node) Tokens(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return state.NewManager(n.db).TokenList()
}

type stampedEvent struct {
	inner    events.Event
	sequence uint64
	time     uint64
}

func (s stampedEvent) EventType() string { return s.inner.EventType() }

func (s stampedEvent) Event() *types.Event {
	evt := s.inner.Event()
	if evt == nil {
		return nil
	}
	evt.Sequence = s.sequence
	evt.Time = s.time
	return evt
}

func (n *Node) publish(buffer *events.Buffer, now uint64) {
	buffer.Flush(emitterFunc(func(evt events.Event) {
		n.emitter.Emit(stampedEvent{inner: evt, sequence: n.sequence.Add(1), time: now})
	}))
}

type emitterFunc func(events.Event)

func (f emitterFunc) Emit(evt events.Event) { f(evt) }

// GenesisToken registers a token at startup.
type GenesisToken struct {
	Symbol   string
	Name     string
	Decimals uint8
}

// GenesisBalance seeds an account balance at startup.
type GenesisBalance struct {
	Account [20]byte
	Token   string
	Amount  *big.Int
}

// Genesis is the initial state of a fresh database.
type Genesis struct {
	Tokens   []GenesisToken
	Balances []GenesisBalance
	Admin    *[20]byte
}

// ApplyGenesis registers tokens, seeds balances and installs the admin. It
// writes nothing when the database was already initialised, so restarts keep
// the live state. Tokens are always registered so new symbols can be added.
func (n *Node) ApplyGenesis(ctx context.Context, genesis Genesis) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	journal := state.NewJournal(n.db)
	manager := state.NewManager(journal)
	for _, token := range genesis.Tokens {
		if err := manager.RegisterToken(token.Symbol, token.Name, token.Decimals); err != nil {
			return false, fmt.Errorf("genesis: register %s: %w", token.Symbol, err)
		}
	}
	applied, err := manager.GenesisApplied()
	if err != nil {
		return false, err
	}
	if !applied {
		for _, bal := range genesis.Balances {
			if err := manager.SetBalance(bal.Account, bal.Token, bal.Amount); err != nil {
				return false, fmt.Errorf("genesis: balance: %w", err)
			}
		}
		if genesis.Admin != nil {
			engine := n.newEngine(manager, quickex.NewAccountSet(*genesis.Admin), events.NoopEmitter{}, n.nowFn())
			if err := engine.Initialize(*genesis.Admin); err != nil {
				return false, fmt.Errorf("genesis: initialize: %w", err)
			}
		}
		if err := manager.MarkGenesisApplied(); err != nil {
			return false, err
		}
	}
	if err := journal.Commit(); err != nil {
		return false, fmt.Errorf("genesis: commit: %w", err)
	}
	return !applied, nil
}
