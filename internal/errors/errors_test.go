package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapKeepsSentinelIdentity(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(ErrTransactionFailed, cause)

	if !stderrors.Is(err, ErrTransactionFailed) {
		t.Error("expected wrapped error to match its sentinel")
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected wrapped error to expose its cause")
	}
	if ErrTransactionFailed.Internal != nil {
		t.Error("sentinel must not be mutated by Wrap")
	}
}

func TestWithMessageAndFields(t *testing.T) {
	err := WithMessage(ErrHasDependents, "Wallet has dependent budget elements")
	if err.Message != "Wallet has dependent budget elements" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if err.Code != ErrHasDependents.Code || err.StatusCode != ErrHasDependents.StatusCode {
		t.Error("expected code and status to be copied from the sentinel")
	}

	verr := WithFields(ErrValidationFailed, map[string]string{"name": "required"})
	if verr.Fields["name"] != "required" {
		t.Errorf("expected name field message, got %v", verr.Fields)
	}
	if ErrValidationFailed.Fields != nil {
		t.Error("sentinel must not be mutated by WithFields")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not_found", ErrWalletNotFound, KindNotFound},
		{"conflict", WithMessage(ErrHasDependents, "x"), KindConflict},
		{"validation", ErrValidationFailed, KindValidation},
		{"transaction", Wrap(ErrTransactionFailed, fmt.Errorf("boom")), KindTransaction},
		{"wrapped_in_fmt", fmt.Errorf("ctx: %w", ErrUserNotFound), KindNotFound},
		{"plain_error", fmt.Errorf("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
