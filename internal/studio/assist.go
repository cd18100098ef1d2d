package studio

import (
	"context"
	"strings"

	"github.com/filmforge/academy/internal/ai"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
)

// MaxAssistMessages bounds the conversation history sent upstream.
const MaxAssistMessages = 40

const assistPrompt = `You are FilmForge's production assistant. Help independent filmmakers with
screenwriting, scheduling, budgeting, shot planning and festival strategy. Be concrete and brief.`

// Assist streams an assistant reply to the conversation. Only user and
// assistant turns are accepted; the system prompt is fixed. The returned
// channel is closed after the final chunk.
func (s *Service) Assist(ctx context.Context, actor auth.Actor, messages []ai.Message) (<-chan ai.StreamChunk, error) {
	if err := s.begin(ctx, actor); err != nil {
		return nil, err
	}
	history, err := cleanHistory(messages)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	upstream, err := s.llm.StreamComplete(ctx, ai.CompletionRequest{
		Messages: append([]ai.Message{{Role: "system", Content: assistPrompt}}, history...),
		Task:     ai.TaskAssist,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan ai.StreamChunk)
	go func() {
		defer cancel()
		defer close(out)
		for c := range upstream {
			if c.Done {
				s.record(ctx, actor, ai.TaskAssist, c.InputTokens+c.OutputTokens)
			}
			select {
			case out <- c:
			case <-ctx.Done():
				// Drain so the provider goroutine can exit.
				for range upstream {
				}
				return
			}
		}
	}()
	return out, nil
}

func cleanHistory(messages []ai.Message) ([]ai.Message, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}
	if len(messages) > MaxAssistMessages {
		messages = messages[len(messages)-MaxAssistMessages:]
	}

	out := make([]ai.Message, 0, len(messages))
	total := 0
	for _, m := range messages {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "assistant" {
			return nil, apperr.Validation("message role must be user or assistant")
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		total += len(content)
		out = append(out, ai.Message{Role: role, Content: content})
	}
	if len(out) == 0 || out[len(out)-1].Role != "user" {
		return nil, apperr.Validation("conversation must end with a user message")
	}
	if total > MaxInputRunes*4 {
		return nil, ErrTextTooLong
	}
	return out, nil
}
