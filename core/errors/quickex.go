package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is the stable numeric identifier returned to callers. Codes are banded:
// 1xx validation, 2xx auth/admin, 3xx state/escrow/commitment, 9xx internal.
// Once assigned a code never changes meaning.
type Code uint32

const (
	CodeInvalidAmount       Code = 100
	CodeInvalidSalt         Code = 101
	CodeInvalidPrivacyLevel Code = 102

	CodeUnauthorized       Code = 200
	CodeAlreadyInitialized Code = 201

	CodeContractPaused          Code = 300
	CodePrivacyAlreadySet       Code = 301
	CodeCommitmentNotFound      Code = 302
	CodeCommitmentAlreadyExists Code = 303
	CodeAlreadySpent            Code = 304
	CodeInvalidCommitment       Code = 305
	CodeCommitmentMismatch      Code = 306
	CodeEscrowExpired           Code = 307
	CodeEscrowNotExpired        Code = 308
	CodeInvalidOwner            Code = 309

	CodeInternalError Code = 900
)

// Band groups codes by the action a caller should take.
type Band uint8

const (
	BandValidation Band = iota + 1
	BandAuth
	BandState
	BandInternal
)

// Band reports the band a code belongs to. Unknown codes are internal.
func (c Code) Band() Band {
	switch {
	case c >= 100 && c < 200:
		return BandValidation
	case c >= 200 && c < 300:
		return BandAuth
	case c >= 300 && c < 400:
		return BandState
	default:
		return BandInternal
	}
}

// Error is a contract error carrying its stable code. Values are used as
// sentinels and compared with errors.Is.
type Error struct {
	code Code
	name string
}

func newError(code Code, name string) *Error {
	return &Error{code: code, name: name}
}

func (e *Error) Error() string { return fmt.Sprintf("quickex: %s", e.name) }

// Code returns the stable numeric code.
func (e *Error) Code() Code { return e.code }

// Name returns the symbolic error name, e.g. "AlreadySpent".
func (e *Error) Name() string { return e.name }

var (
	ErrInvalidAmount       = newError(CodeInvalidAmount, "InvalidAmount")
	ErrInvalidSalt         = newError(CodeInvalidSalt, "InvalidSalt")
	ErrInvalidPrivacyLevel = newError(CodeInvalidPrivacyLevel, "InvalidPrivacyLevel")

	ErrUnauthorized       = newError(CodeUnauthorized, "Unauthorized")
	ErrAlreadyInitialized = newError(CodeAlreadyInitialized, "AlreadyInitialized")

	ErrContractPaused          = newError(CodeContractPaused, "ContractPaused")
	ErrPrivacyAlreadySet       = newError(CodePrivacyAlreadySet, "PrivacyAlreadySet")
	ErrCommitmentNotFound      = newError(CodeCommitmentNotFound, "CommitmentNotFound")
	ErrCommitmentAlreadyExists = newError(CodeCommitmentAlreadyExists, "CommitmentAlreadyExists")
	ErrAlreadySpent            = newError(CodeAlreadySpent, "AlreadySpent")
	ErrInvalidCommitment       = newError(CodeInvalidCommitment, "InvalidCommitment")
	ErrCommitmentMismatch      = newError(CodeCommitmentMismatch, "CommitmentMismatch")
	ErrEscrowExpired           = newError(CodeEscrowExpired, "EscrowExpired")
	ErrEscrowNotExpired        = newError(CodeEscrowNotExpired, "EscrowNotExpired")
	ErrInvalidOwner            = newError(CodeInvalidOwner, "InvalidOwner")

	ErrInternal = newError(CodeInternalError, "InternalError")
)

// All lists every defined error in code order.
func All() []*Error {
	return []*Error{
		ErrInvalidAmount, ErrInvalidSalt, ErrInvalidPrivacyLevel,
		ErrUnauthorized, ErrAlreadyInitialized,
		ErrContractPaused, ErrPrivacyAlreadySet, ErrCommitmentNotFound,
		ErrCommitmentAlreadyExists, ErrAlreadySpent, ErrInvalidCommitment,
		ErrCommitmentMismatch, ErrEscrowExpired, ErrEscrowNotExpired, ErrInvalidOwner,
		ErrInternal,
	}
}

// As extracts the contract error wrapped in err, if any.
func As(err error) (*Error, bool) {
	var target *Error
	if stderrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code carried by err. Errors without a contract code,
// such as storage failures, map to CodeInternalError. A nil error yields 0.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	if qe, ok := As(err); ok {
		return qe.code
	}
	return CodeInternalError
}

// Internal wraps an unexpected failure so it reports CodeInternalError while
// keeping the cause reachable through errors.Unwrap. ErrInternal is the first
// wrapped error, so the outer code wins in As and CodeOf. A cause that already
// carries a code anywhere in its chain is returned unchanged.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
