// Package studio implements the AI-backed production tools: script
// breakdown, call-sheet extraction, storyboard frames and the assistant chat.
package studio

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/filmforge/academy/internal/ai"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
)

// MaxInputRunes bounds pasted scripts and call-sheet text.
const MaxInputRunes = 200_000

var (
	ErrTextRequired   = apperr.Validation("text is required")
	ErrTextTooLong    = apperr.Validation("text is too long")
	ErrPromptRequired = apperr.Validation("prompt is required")
	ErrNoMessages     = apperr.Validation("at least one message is required")
	ErrUnknownStyle   = apperr.Validation("unknown frame style")
)

// Service runs studio tools against an AI provider.
type Service struct {
	llm     ai.Provider
	images  ai.ImageGenerator
	budget  ai.BudgetChecker
	timeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithBudget enforces per-user token budgets.
func WithBudget(b ai.BudgetChecker) Option {
	return func(s *Service) { s.budget = b }
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates a studio service. images may be nil when no image
// endpoint is configured.
func NewService(llm ai.Provider, images ai.ImageGenerator, opts ...Option) *Service {
	s := &Service{
		llm:     llm,
		images:  images,
		budget:  ai.UnlimitedBudget{},
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) begin(ctx context.Context, actor auth.Actor) error {
	if err := auth.Require(actor); err != nil {
		return err
	}
	if s.llm == nil {
		return ai.ErrNoProvider
	}
	return s.budget.Check(ctx, actor.UserID)
}

func (s *Service) record(ctx context.Context, actor auth.Actor, task ai.TaskType, tokens int) {
	if err := s.budget.Record(ctx, actor.UserID, tokens); err != nil {
		slog.Warn("failed to record AI token usage",
			"user_id", actor.UserID,
			"task", task.String(),
			"tokens", tokens,
			"error", err,
		)
	}
}

// completeJSON runs one JSON-mode completion and decodes the reply against
// schema into v.
func (s *Service) completeJSON(ctx context.Context, actor auth.Actor, task ai.TaskType, system, user string, schema *ai.Schema, v any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.llm.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Task:        task,
		JSON:        true,
		Temperature: 0.2,
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, task, resp.TotalTokens())
	return schema.Decode(resp.Content, v)
}

func cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrTextRequired
	}
	if utf8.RuneCountInString(text) > MaxInputRunes {
		return "", ErrTextTooLong
	}
	return text, nil
}
