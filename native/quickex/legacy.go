package quickex

import (
	qxerrors "quickex/core/errors"
	"quickex/core/events"
)

// EnablePrivacy stores a numeric privacy level for older clients. Levels are
// kept independently of the boolean flag used for redaction.
func (e *Engine) EnablePrivacy(account [20]byte, level uint32) error {
	if err := e.ensureState(); err != nil {
		return err
	}
	if level > MaxPrivacyLevel {
		return qxerrors.ErrInvalidPrivacyLevel
	}
	if err := e.requireAuth(account); err != nil {
		return err
	}
	if err := e.state.SetPrivacyLevel(account, level); err != nil {
		return qxerrors.Internal("store privacy level", err)
	}
	e.emit(events.QuickexPrivacyLevel{Account: account, Level: level})
	return nil
}

// PrivacyStatus returns the current legacy level, ok=false when never set.
func (e *Engine) PrivacyStatus(account [20]byte) (uint32, bool, error) {
	if err := e.ensureState(); err != nil {
		return 0, false, err
	}
	level, ok, err := e.state.PrivacyLevel(account)
	if err != nil {
		return 0, false, qxerrors.Internal("load privacy level", err)
	}
	return level, ok, nil
}

// PrivacyHistory returns all legacy levels, newest first.
func (e *Engine) PrivacyHistory(account [20]byte) ([]uint32, error) {
	if err := e.ensureState(); err != nil {
		return nil, err
	}
	history, err := e.state.PrivacyHistory(account)
	if err != nil {
		return nil, qxerrors.Internal("load privacy history", err)
	}
	return history, nil
}

// CreateEscrow records a bookkeeping-only escrow. No funds move.
func (e *Engine) CreateEscrow(from, to [20]byte, amount uint64) (uint64, error) {
	if err := e.ensureState(); err != nil {
		return 0, err
	}
	if err := e.requireAuth(from); err != nil {
		return 0, err
	}
	id, err := e.state.NextLegacyEscrowID()
	if err != nil {
		return 0, qxerrors.Internal("next escrow id", err)
	}
	record := &LegacyEscrow{ID: id, From: from, To: to, Amount: amount}
	if err := e.state.LegacyEscrowPut(record); err != nil {
		return 0, qxerrors.Internal("store legacy escrow", err)
	}
	e.emit(events.QuickexLegacyEscrow{ID: id, From: from, To: to, Amount: amount})
	return id, nil
}

// LegacyEscrow returns a bookkeeping escrow by id.
func (e *Engine) LegacyEscrow(id uint64) (*LegacyEscrow, bool, error) {
	if err := e.ensureState(); err != nil {
		return nil, false, err
	}
	record, ok, err := e.state.LegacyEscrowGet(id)
	if err != nil {
		return nil, false, qxerrors.Internal("load legacy escrow", err)
	}
	return record, ok, nil
}
