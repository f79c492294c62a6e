package quickex

import (
	"math/big"

	"quickex/core/commitment"
	qxerrors "quickex/core/errors"
)

// CreateCommitment exposes the commitment scheme without touching state.
func (e *Engine) CreateCommitment(owner [20]byte, amount *big.Int, salt []byte) ([32]byte, error) {
	return commitment.Create(owner, amount, salt)
}

// VerifyCommitment never fails; invalid inputs verify false.
func (e *Engine) VerifyCommitment(c [32]byte, owner [20]byte, amount *big.Int, salt []byte) bool {
	return commitment.Verify(c, owner, amount, salt)
}

// GetCommitmentState returns the stored status, ok=false when unknown.
func (e *Engine) GetCommitmentState(c [32]byte) (EscrowStatus, bool, error) {
	if err := e.ensureState(); err != nil {
		return 0, false, err
	}
	entry, ok, err := e.state.EscrowGet(c)
	if err != nil {
		return 0, false, qxerrors.Internal("load escrow", err)
	}
	if !ok {
		return 0, false, nil
	}
	return entry.Status, true, nil
}

// VerifyProofView reports whether (amount, salt, owner) opens a Pending escrow
// of exactly that amount. Expiry is not considered.
func (e *Engine) VerifyProofView(amount *big.Int, salt []byte, owner [20]byte) (bool, error) {
	if err := e.ensureState(); err != nil {
		return false, err
	}
	c, err := commitment.Create(owner, amount, salt)
	if err != nil {
		return false, nil
	}
	entry, ok, err := e.state.EscrowGet(c)
	if err != nil {
		return false, qxerrors.Internal("load escrow", err)
	}
	if !ok || entry.Status != EscrowPending {
		return false, nil
	}
	return entry.Amount.Cmp(amount) == 0, nil
}

func (e *Engine) HealthCheck() bool { return true }
