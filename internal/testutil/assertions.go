package testutil

import (
	"errors"
	"testing"

	apperrors "tradewarden/internal/errors"
)

// AssertAppError fails the test unless err is an *AppError carrying the
// given code. Wrapped AppErrors are unwrapped via errors.As.
func AssertAppError(t *testing.T, err error, code string) {
	t.Helper()

	if err == nil {
		t.Fatalf("want AppError %q, got nil", code)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("want *AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Errorf("want code %q, got %q (%s)", code, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test immediately if err is non-nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
