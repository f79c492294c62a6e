package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCanonicalCodeRanges(t *testing.T) {
	cases := map[*Error]Code{
		ErrInvalidAmount:           100,
		ErrInvalidSalt:             101,
		ErrInvalidPrivacyLevel:     102,
		ErrUnauthorized:            200,
		ErrAlreadyInitialized:      201,
		ErrContractPaused:          300,
		ErrPrivacyAlreadySet:       301,
		ErrCommitmentNotFound:      302,
		ErrCommitmentAlreadyExists: 303,
		ErrAlreadySpent:            304,
		ErrInvalidCommitment:       305,
		ErrCommitmentMismatch:      306,
		ErrEscrowExpired:           307,
		ErrEscrowNotExpired:        308,
		ErrInvalidOwner:            309,
		ErrInternal:                900,
	}
	for err, want := range cases {
		if err.Code() != want {
			t.Fatalf("%s: expected code %d, got %d", err.Name(), want, err.Code())
		}
	}
	if len(All()) != len(cases) {
		t.Fatalf("All() returned %d errors, expected %d", len(All()), len(cases))
	}
}

func TestBands(t *testing.T) {
	if CodeInvalidSalt.Band() != BandValidation {
		t.Fatalf("salt should be a validation error")
	}
	if CodeUnauthorized.Band() != BandAuth {
		t.Fatalf("unauthorized should be an auth error")
	}
	if CodeEscrowExpired.Band() != BandState {
		t.Fatalf("expiry should be in the state band")
	}
	if CodeInternalError.Band() != BandInternal {
		t.Fatalf("internal should be internal")
	}
}

func TestCodeOfWrapped(t *testing.T) {
	wrapped := fmt.Errorf("withdraw: %w", ErrAlreadySpent)
	if CodeOf(wrapped) != CodeAlreadySpent {
		t.Fatalf("expected wrapped code to survive, got %d", CodeOf(wrapped))
	}
	if !stderrors.Is(wrapped, ErrAlreadySpent) {
		t.Fatalf("expected errors.Is to match sentinel")
	}
	if CodeOf(nil) != 0 {
		t.Fatalf("nil error should have no code")
	}
	if CodeOf(stderrors.New("disk on fire")) != CodeInternalError {
		t.Fatalf("foreign errors should map to internal")
	}
}

func TestInternalKeepsCause(t *testing.T) {
	cause := stderrors.New("batch write failed")
	err := Internal("commit", cause)
	if !stderrors.Is(err, ErrInternal) || !stderrors.Is(err, cause) {
		t.Fatalf("expected both sentinel and cause to be reachable: %v", err)
	}
	if Internal("noop", ErrInvalidOwner) != ErrInvalidOwner {
		t.Fatalf("contract errors should pass through unchanged")
	}
	if Internal("nil", nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}

func TestInternalOuterCodeWins(t *testing.T) {
	err := Internal("load", fmt.Errorf("decode: %w", stderrors.New("short buffer")))
	qe, ok := As(err)
	if !ok || qe != ErrInternal {
		t.Fatalf("expected ErrInternal first in chain, got %v", qe)
	}
	if CodeOf(err) != CodeInternalError {
		t.Fatalf("unexpected code %d", CodeOf(err))
	}

	coded := fmt.Errorf("settle: %w", ErrAlreadySpent)
	if Internal("refund", coded) != coded {
		t.Fatalf("coded causes should pass through unchanged")
	}
	if CodeOf(coded) != ErrAlreadySpent.Code() {
		t.Fatalf("wrapped contract error lost its code: %d", CodeOf(coded))
	}
}
