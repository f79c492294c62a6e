package quickex

import (
	qxerrors "quickex/core/errors"
	"quickex/core/events"
)

// Initialize installs the first admin and clears the pause flag. It can run
// only once.
func (e *Engine) Initialize(admin [20]byte) error {
	if err := e.ensureState(); err != nil {
		return err
	}
	if err := e.requireAuth(admin); err != nil {
		return err
	}
	_, exists, err := e.state.Admin()
	if err != nil {
		return qxerrors.Internal("load admin", err)
	}
	if exists {
		return qxerrors.ErrAlreadyInitialized
	}
	if err := e.state.SetAdmin(admin); err != nil {
		return qxerrors.Internal("store admin", err)
	}
	if err := e.state.SetPaused(false); err != nil {
		return qxerrors.Internal("store pause flag", err)
	}
	return nil
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	if err := e.requireAuth(caller); err != nil {
		return err
	}
	admin, ok, err := e.state.Admin()
	if err != nil {
		return qxerrors.Internal("load admin", err)
	}
	if !ok || admin != caller {
		return qxerrors.ErrUnauthorized
	}
	return nil
}

// SetPaused flips the pause gate. Admin only.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	if err := e.ensureState(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.state.SetPaused(paused); err != nil {
		return qxerrors.Internal("store pause flag", err)
	}
	e.emit(events.QuickexContractPaused{Admin: caller, Paused: paused, At: e.now()})
	return nil
}

// SetAdmin hands the admin role to next. The previous admin loses every
// privilege immediately.
func (e *Engine) SetAdmin(caller, next [20]byte) error {
	if err := e.ensureState(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.state.SetAdmin(next); err != nil {
		return qxerrors.Internal("store admin", err)
	}
	e.emit(events.QuickexAdminChanged{Previous: caller, Next: next, At: e.now()})
	return nil
}

// Upgrade records the hash of the code the host should run from now on.
func (e *Engine) Upgrade(caller [20]byte, codeHash [32]byte) error {
	if err := e.ensureState(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.state.SetCodeHash(codeHash); err != nil {
		return qxerrors.Internal("store code hash", err)
	}
	e.emit(events.QuickexContractUpgraded{Admin: caller, CodeHash: codeHash, At: e.now()})
	return nil
}

func (e *Engine) IsPaused() (bool, error) {
	if err := e.ensureState(); err != nil {
		return false, err
	}
	paused, err := e.state.Paused()
	if err != nil {
		return false, qxerrors.Internal("load pause flag", err)
	}
	return paused, nil
}

// GetAdmin returns the admin and whether one is configured.
func (e *Engine) GetAdmin() ([20]byte, bool, error) {
	if err := e.ensureState(); err != nil {
		return [20]byte{}, false, err
	}
	admin, ok, err := e.state.Admin()
	if err != nil {
		return [20]byte{}, false, qxerrors.Internal("load admin", err)
	}
	return admin, ok, nil
}

func (e *Engine) CodeHash() ([32]byte, bool, error) {
	if err := e.ensureState(); err != nil {
		return [32]byte{}, false, err
	}
	hash, ok, err := e.state.CodeHash()
	if err != nil {
		return [32]byte{}, false, qxerrors.Internal("load code hash", err)
	}
	return hash, ok, nil
}
