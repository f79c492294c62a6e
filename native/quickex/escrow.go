package quickex

import (
	"errors"
	"math/big"
	"strings"

	"quickex/core/commitment"
	qxerrors "quickex/core/errors"
	"quickex/core/events"
)

// Deposit locks amount of token from owner into custody under the commitment
// derived from (owner, amount, salt). A timeout of zero produces an escrow
// that never expires and can only be withdrawn.
func (e *Engine) Deposit(token string, amount *big.Int, owner [20]byte, salt []byte, timeout uint64) ([32]byte, error) {
	if err := e.ensureState(); err != nil {
		return [32]byte{}, err
	}
	if err := e.requireNotPaused(); err != nil {
		return [32]byte{}, err
	}
	if !positive(amount) {
		return [32]byte{}, qxerrors.ErrInvalidAmount
	}
	if err := e.requireAuth(owner); err != nil {
		return [32]byte{}, err
	}
	c, err := commitment.Create(owner, amount, salt)
	if err != nil {
		return [32]byte{}, err
	}
	if err := e.openEscrow(c, token, amount, owner, timeout); err != nil {
		return [32]byte{}, err
	}
	return c, nil
}

// DepositWithCommitment locks funds under a commitment computed off-chain.
// The existing-commitment check runs before any funds move.
func (e *Engine) DepositWithCommitment(from [20]byte, token string, amount *big.Int, c [32]byte, timeout uint64) error {
	if err := e.ensureState(); err != nil {
		return err
	}
	if err := e.requireNotPaused(); err != nil {
		return err
	}
	if !positive(amount) {
		return qxerrors.ErrInvalidAmount
	}
	if err := e.requireAuth(from); err != nil {
		return err
	}
	return e.openEscrow(c, token, amount, from, timeout)
}

func (e *Engine) openEscrow(c [32]byte, token string, amount *big.Int, owner [20]byte, timeout uint64) error {
	exists, err := e.state.EscrowHas(c)
	if err != nil {
		return qxerrors.Internal("check commitment", err)
	}
	if exists {
		return qxerrors.ErrCommitmentAlreadyExists
	}
	now := e.now()
	var expiresAt uint64
	if timeout > 0 {
		expiresAt = saturatingAdd(now, timeout)
	}
	entry := &EscrowEntry{
		Token:     strings.ToUpper(strings.TrimSpace(token)),
		Amount:    cloneBigInt(amount),
		Owner:     owner,
		Status:    EscrowPending,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := e.state.EscrowPut(c, entry); err != nil {
		return qxerrors.Internal("store escrow", err)
	}
	if err := e.state.Transfer(entry.Token, owner, CustodyAddress, entry.Amount); err != nil {
		if undoErr := e.state.EscrowDelete(c); undoErr != nil {
			return qxerrors.Internal("lock funds", errors.Join(err, undoErr))
		}
		return qxerrors.Internal("lock funds", err)
	}
	private, err := e.state.PrivacyFlag(owner)
	if err != nil {
		return qxerrors.Internal("read privacy flag", err)
	}
	e.emit(events.QuickexDeposit{
		Commitment: c,
		Token:      entry.Token,
		Amount:     cloneBigInt(entry.Amount),
		ExpiresAt:  expiresAt,
		Private:    private,
	})
	return nil
}

// Withdraw releases the escrow behind (to, amount, salt) to to. It succeeds at
// most once per commitment and only before expiry.
func (e *Engine) Withdraw(amount *big.Int, to [20]byte, salt []byte) (bool, error) {
	if err := e.ensureState(); err != nil {
		return false, err
	}
	if err := e.requireNotPaused(); err != nil {
		return false, err
	}
	if !positive(amount) {
		return false, qxerrors.ErrInvalidAmount
	}
	if err := e.requireAuth(to); err != nil {
		return false, err
	}
	c, err := commitment.Create(to, amount, salt)
	if err != nil {
		return false, err
	}
	entry, err := e.loadEscrow(c)
	if err != nil {
		return false, err
	}
	if !entry.Status.Open() {
		return false, qxerrors.ErrAlreadySpent
	}
	// Expiry is reported ahead of an amount mismatch.
	if entry.Expired(e.now()) {
		return false, qxerrors.ErrEscrowExpired
	}
	if entry.Amount.Cmp(amount) != 0 {
		return false, qxerrors.ErrInvalidCommitment
	}
	next := entry.Clone()
	next.Status = EscrowSpent
	if err := e.settle(c, entry, next, to); err != nil {
		return false, err
	}
	e.emit(events.QuickexWithdrawToggled{
		Commitment: c,
		To:         to,
		Token:      next.Token,
		Amount:     cloneBigInt(next.Amount),
	})
	return true, nil
}

// Refund returns an expired escrow to its owner. It is available while the
// contract is paused.
func (e *Engine) Refund(c [32]byte, caller [20]byte) error {
	if err := e.ensureState(); err != nil {
		return err
	}
	if err := e.requireAuth(caller); err != nil {
		return err
	}
	entry, err := e.loadEscrow(c)
	if err != nil {
		return err
	}
	if !entry.Status.Open() {
		return qxerrors.ErrAlreadySpent
	}
	// Without an expiry there is no refund window, including for entries
	// still carrying the legacy Expired tag.
	if entry.Status == EscrowExpired && entry.ExpiresAt == 0 {
		return qxerrors.ErrAlreadySpent
	}
	// A non-owner probing an unexpired escrow learns only that it has not
	// expired.
	if !entry.Expired(e.now()) {
		return qxerrors.ErrEscrowNotExpired
	}
	if caller != entry.Owner {
		return qxerrors.ErrInvalidOwner
	}
	private, err := e.state.PrivacyFlag(entry.Owner)
	if err != nil {
		return qxerrors.Internal("read privacy flag", err)
	}
	next := entry.Clone()
	next.Status = EscrowRefunded
	if err := e.settle(c, entry, next, entry.Owner); err != nil {
		return err
	}
	e.emit(events.QuickexRefunded{
		Commitment: c,
		Owner:      entry.Owner,
		Token:      next.Token,
		Amount:     cloneBigInt(next.Amount),
		Private:    private,
	})
	return nil
}
