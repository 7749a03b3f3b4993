package apperr

import (
	"errors"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeUpstreamTimeout, http.StatusServiceUnavailable},
		{CodeUpstreamUnavail, http.StatusServiceUnavailable},
		{CodeStructuringFailed, http.StatusOK},
		{CodeInternal, http.StatusInternalServerError},
		{CodeRateLimited, http.StatusTooManyRequests},
		{Code("made_up_code"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		got := New(tc.code, "msg").Status()
		if got != tc.want {
			t.Errorf("Status() for %s = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestErrorMessageFallsBackToCode(t *testing.T) {
	e := New(CodeNotFound, "")
	if e.Error() != string(CodeNotFound) {
		t.Errorf("Error() = %q, want %q", e.Error(), CodeNotFound)
	}

	e2 := New(CodeNotFound, "entry not found")
	if e2.Error() != "entry not found" {
		t.Errorf("Error() = %q, want %q", e2.Error(), "entry not found")
	}
}

func TestWrapPreservesCauseWithoutLeakingIt(t *testing.T) {
	cause := errors.New("pq: connection refused")
	wrapped := Internal(cause)

	if wrapped.Error() == cause.Error() {
		t.Errorf("Internal() error text should not leak the cause, got %q", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Errorf("expected errors.Is to find the wrapped cause")
	}
	if wrapped.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", wrapped.Unwrap(), cause)
	}
}

func TestAsAndIs(t *testing.T) {
	err := Conflict("username already in use")

	extracted, ok := As(err)
	if !ok {
		t.Fatalf("As() returned ok=false for an *Error")
	}
	if extracted.Code != CodeConflict {
		t.Errorf("extracted code = %s, want %s", extracted.Code, CodeConflict)
	}

	if !Is(err, CodeConflict) {
		t.Errorf("Is(err, CodeConflict) = false, want true")
	}
	if Is(err, CodeNotFound) {
		t.Errorf("Is(err, CodeNotFound) = true, want false")
	}

	plain := errors.New("not an apperr")
	if _, ok := As(plain); ok {
		t.Errorf("As() on a plain error returned ok=true")
	}
	if Is(plain, CodeConflict) {
		t.Errorf("Is() on a plain error returned true")
	}
}

func TestAsUnwrapsThroughWrapping(t *testing.T) {
	inner := NotFound("draft not found")
	outer := errors.New("loading draft: " + inner.Error())
	if _, ok := As(outer); ok {
		t.Errorf("As() should not synthesize a match from string contents alone")
	}

	wrappedInner := errorsJoin(inner)
	extracted, ok := As(wrappedInner)
	if !ok {
		t.Fatalf("As() failed to find *Error wrapped via fmt.Errorf %%w-style chaining")
	}
	if extracted.Code != CodeNotFound {
		t.Errorf("extracted code = %s, want %s", extracted.Code, CodeNotFound)
	}
}

// errorsJoin mimics the %w-wrapping every call site actually uses
// (fmt.Errorf("...: %w", err)) without importing fmt just for this.
func errorsJoin(err error) error {
	return &wrapOnce{err}
}

type wrapOnce struct{ err error }

func (w *wrapOnce) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapOnce) Unwrap() error { return w.err }
