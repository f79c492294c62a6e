package quickex

import (
	qxerrors "quickex/core/errors"
	"quickex/core/events"
)

// SetPrivacy toggles the owner's privacy flag. Setting the value already in
// effect is rejected.
func (e *Engine) SetPrivacy(owner [20]byte, enabled bool) error {
	if err := e.ensureState(); err != nil {
		return err
	}
	if err := e.requireNotPaused(); err != nil {
		return err
	}
	if err := e.requireAuth(owner); err != nil {
		return err
	}
	current, err := e.state.PrivacyFlag(owner)
	if err != nil {
		return qxerrors.Internal("load privacy flag", err)
	}
	if current == enabled {
		return qxerrors.ErrPrivacyAlreadySet
	}
	if err := e.state.SetPrivacyFlag(owner, enabled); err != nil {
		return qxerrors.Internal("store privacy flag", err)
	}
	e.emit(events.QuickexPrivacyToggled{Account: owner, Enabled: enabled, At: e.now()})
	return nil
}

// GetPrivacy returns the owner's privacy flag, false when never set.
func (e *Engine) GetPrivacy(owner [20]byte) (bool, error) {
	if err := e.ensureState(); err != nil {
		return false, err
	}
	enabled, err := e.state.PrivacyFlag(owner)
	if err != nil {
		return false, qxerrors.Internal("load privacy flag", err)
	}
	return enabled, nil
}

// GetEscrowDetails projects the escrow for caller. The caller is asserted, not
// authenticated, so redaction is a presentation hint only. A nil view means the
// commitment is unknown.
func (e *Engine) GetEscrowDetails(c [32]byte, caller [20]byte) (*EscrowView, error) {
	if err := e.ensureState(); err != nil {
		return nil, err
	}
	entry, ok, err := e.state.EscrowGet(c)
	if err != nil {
		return nil, qxerrors.Internal("load escrow", err)
	}
	if !ok {
		return nil, nil
	}
	private, err := e.state.PrivacyFlag(entry.Owner)
	if err != nil {
		return nil, qxerrors.Internal("load privacy flag", err)
	}
	view := &EscrowView{
		Token:     entry.Token,
		Status:    entry.Status,
		CreatedAt: entry.CreatedAt,
		ExpiresAt: entry.ExpiresAt,
	}
	if private && caller != entry.Owner {
		return view, nil
	}
	owner := entry.Owner
	view.Owner = &owner
	view.Amount = cloneBigInt(entry.Amount)
	return view, nil
}
