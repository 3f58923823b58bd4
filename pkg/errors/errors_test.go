package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("loading: %w", ErrCategoryNotFound), http.StatusNotFound},
		{ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("applying: %w", ErrInvalidFilter), http.StatusBadRequest},
		{ErrUnknownSort, http.StatusBadRequest},
		{ErrTooManySessions, http.StatusTooManyRequests},
		{ErrCatalogUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
		{New(ErrInvalidInput, http.StatusUnprocessableEntity, "bad body"), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		if got := HTTPStatusCode(tc.err); got != tc.want {
			t.Errorf("HTTPStatusCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("handler: %w", Newf(ErrInvalidFilter, http.StatusBadRequest, "option %q not offered", "x"))
	if !errors.Is(err, ErrInvalidFilter) {
		t.Error("expected AppError to unwrap to its sentinel")
	}
	if got := Message(err); got != `option "x" not offered` {
		t.Errorf("unexpected message %q", got)
	}
}

func TestMessageHidesInternalErrors(t *testing.T) {
	if got := Message(errors.New("pq: connection refused")); got != ErrInternal.Error() {
		t.Errorf("expected internal message, got %q", got)
	}
	if got := Message(ErrSessionNotFound); got != ErrSessionNotFound.Error() {
		t.Errorf("expected sentinel text, got %q", got)
	}
}
