package ai

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/filmforge/academy/internal/platform/apperr"
)

// Router tries registered providers in order until one succeeds.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the end of the fallback chain.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

// Complete routes a request to the first provider that answers.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var resp CompletionResponse
	err := r.try(ctx, req, func(name string, p Provider) error {
		var err error
		resp, err = p.Complete(ctx, req)
		if err == nil {
			slog.Debug("AI request completed",
				"provider", name,
				"task", req.Task.String(),
				"model", resp.Model,
				"input_tokens", resp.InputTokens,
				"output_tokens", resp.OutputTokens,
			)
		}
		return err
	})
	return resp, err
}

// StreamComplete falls back only on failures that happen before streaming
// starts.
func (r *Router) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	var ch <-chan StreamChunk
	err := r.try(ctx, req, func(_ string, p Provider) error {
		var err error
		ch, err = p.StreamComplete(ctx, req)
		return err
	})
	return ch, err
}

func (r *Router) try(ctx context.Context, req CompletionRequest, call func(string, Provider) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.fallback) == 0 {
		return ErrNoProvider
	}

	var best error
	for _, name := range r.fallback {
		err := call(name, r.providers[name])
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return upstream(name, "complete", ctxErr)
		}
		slog.Warn("AI provider failed, trying next",
			"provider", name,
			"task", req.Task.String(),
			"error", err,
		)
		if best == nil || rank(err) > rank(best) {
			best = err
		}
	}
	return best
}

// rank orders failure kinds from least to most specific.
func rank(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindQuotaExhausted:
		return 3
	case apperr.KindRateLimited:
		return 2
	case apperr.KindUpstream:
		return 1
	default:
		return 0
	}
}

// Models lists the models of every registered provider.
func (r *Router) Models() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ModelInfo
	for _, name := range r.fallback {
		out = append(out, r.providers[name].Models()...)
	}
	return out
}

// HealthCheck succeeds when any provider is healthy.
func (r *Router) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.fallback) == 0 {
		return ErrNoProvider
	}
	var errs []error
	for _, name := range r.fallback {
		err := r.providers[name].HealthCheck(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// Providers returns the registered provider names in fallback order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.fallback...)
}
