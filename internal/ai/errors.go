package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/filmforge/academy/internal/platform/apperr"
)

var (
	// ErrRateLimited is returned when an upstream provider answers 429.
	ErrRateLimited = apperr.New(apperr.KindRateLimited, "AI rate limit reached, try again shortly")
	// ErrQuotaExhausted is returned when an upstream provider answers 402 or
	// the caller's token budget is spent.
	ErrQuotaExhausted = apperr.New(apperr.KindQuotaExhausted, "AI quota exhausted")
	// ErrUpstream is returned for every other provider failure.
	ErrUpstream = apperr.New(apperr.KindUpstream, "AI provider failed")
	// ErrNoProvider is returned when no provider is configured.
	ErrNoProvider = apperr.New(apperr.KindUpstream, "no AI provider configured")
)

const maxErrorBody = 512

// StatusError classifies a non-2xx provider response.
func StatusError(provider string, status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	cause := fmt.Errorf("%s api error (status %d): %s", provider, status, body)
	switch status {
	case http.StatusTooManyRequests:
		return apperr.Wrap(apperr.KindRateLimited, ErrRateLimited.Msg, cause)
	case http.StatusPaymentRequired:
		return apperr.Wrap(apperr.KindQuotaExhausted, ErrQuotaExhausted.Msg, cause)
	default:
		return apperr.Wrap(apperr.KindUpstream, ErrUpstream.Msg, cause)
	}
}

// upstream wraps transport and decoding failures as Upstream errors. Context
// cancellation passes through unchanged; an expired deadline is an Upstream
// failure like any other unanswered call.
func upstream(provider, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperr.Wrap(apperr.KindUpstream, ErrUpstream.Msg, fmt.Errorf("%s %s: %w", provider, op, err))
}
