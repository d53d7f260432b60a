package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatus_KnownCodes(t *testing.T) {
	cases := map[Code]int{
		Validation:       http.StatusBadRequest,
		Unauthenticated:  http.StatusUnauthorized,
		Forbidden:        http.StatusForbidden,
		NotFound:         http.StatusNotFound,
		SLANotConfigured: http.StatusNotFound,
		Conflict:         http.StatusConflict,
		RateLimited:      http.StatusTooManyRequests,
		Internal:         http.StatusInternalServerError,
	}
	for code, want := range cases {
		e := New(code, "message")
		if got := e.HTTPStatus(); got != want {
			t.Errorf("%s: expected status %d, got %d", code, want, got)
		}
	}
}

func TestHTTPStatus_UnknownCodeDefaultsInternal(t *testing.T) {
	e := New(Code("NOT_REAL"), "oops")
	if got := e.HTTPStatus(); got != http.StatusInternalServerError {
		t.Errorf("expected 500 for unknown code, got %d", got)
	}
}

func TestWrap_UnwrapsCause(t *testing.T) {
	cause := errors.New("underlying failure")
	e := Wrap(Internal, "something broke", cause)

	if !errors.Is(e, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if e.Error() == "" {
		t.Error("expected a non-empty error string")
	}
}

func TestNewRateLimited_SetsRetryAfter(t *testing.T) {
	e := NewRateLimited(3600)
	if e.Code != RateLimited {
		t.Errorf("expected RateLimited code, got %s", e.Code)
	}
	if e.RetryAfter != 3600 {
		t.Errorf("expected retry_after 3600, got %d", e.RetryAfter)
	}
}

func TestConstructors_FormatMessages(t *testing.T) {
	e := NewNotFound("%s not found", "monitor")
	if e.Message != "monitor not found" {
		t.Errorf("unexpected message: %s", e.Message)
	}
	if e.Code != NotFound {
		t.Errorf("expected NotFound code, got %s", e.Code)
	}
}
