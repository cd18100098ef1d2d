package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	sentinel := Conflict("already enrolled")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain error", errors.New("boom"), KindInternal},
		{"direct", Validation("title is required"), KindValidation},
		{"wrapped", fmt.Errorf("enroll: %w", sentinel), KindConflict},
		{"with cause", Wrap(KindUpstream, "provider failed", errors.New("eof")), KindUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindQuotaExhausted, http.StatusPaymentRequired},
		{KindUpstream, http.StatusBadGateway},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.kind.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestError_IsSentinel(t *testing.T) {
	sentinel := NotFound("certificate not found")
	err := fmt.Errorf("verify: %w", sentinel)

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should match the wrapped sentinel")
	}
	if errors.Is(err, NotFound("course not found")) {
		t.Error("errors.Is should not match a sentinel with a different message")
	}
}

func TestMessage_HidesInternal(t *testing.T) {
	if got := Message(errors.New("pq: relation does not exist")); got != "internal error" {
		t.Errorf("Message() = %q, want generic message", got)
	}
	if got := Message(ErrSignInRequired); got != "sign in required" {
		t.Errorf("Message() = %q, want %q", got, "sign in required")
	}
}
