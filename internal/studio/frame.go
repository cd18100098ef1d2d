package studio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/filmforge/academy/internal/ai"
	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/auth"
)

// ErrNoImageProvider is returned when frames are requested but no image
// endpoint is configured.
var ErrNoImageProvider = apperr.New(apperr.KindUpstream, "image generation is not configured")

// frameStyles maps accepted style names to prompt suffixes.
var frameStyles = map[string]string{
	"":           "cinematic storyboard frame",
	"cinematic":  "cinematic still, anamorphic lens, film grain",
	"noir":       "black and white film noir, hard shadows, high contrast",
	"sketch":     "pencil storyboard sketch, loose lines, grayscale",
	"comic":      "comic panel, inked outlines, flat colors",
	"watercolor": "watercolor concept art, soft edges",
}

// Frame is a generated storyboard frame.
type Frame struct {
	ImageURL      string `json:"image_url"`
	RevisedPrompt string `json:"revised_prompt"`
	Style         string `json:"style"`
	StyleNotes    string `json:"style_notes"`
}

const styleNotesPrompt = `You are a director of photography. In at most three short sentences,
describe the shot size, lens, lighting and color palette that this storyboard frame calls for.
Plain text only.`

// GenerateFrame renders a storyboard frame. Style notes come from a second
// completion; if that call fails the frame is still returned without notes.
func (s *Service) GenerateFrame(ctx context.Context, actor auth.Actor, prompt, style string) (Frame, error) {
	if err := s.begin(ctx, actor); err != nil {
		return Frame{}, err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Frame{}, ErrPromptRequired
	}
	style = strings.ToLower(strings.TrimSpace(style))
	suffix, ok := frameStyles[style]
	if !ok {
		return Frame{}, ErrUnknownStyle
	}
	if s.images == nil {
		return Frame{}, ErrNoImageProvider
	}

	imgCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	img, err := s.images.Generate(imgCtx, ai.ImageRequest{Prompt: fmt.Sprintf("%s. %s", prompt, suffix)})
	if err != nil {
		return Frame{}, err
	}

	frame := Frame{ImageURL: img.URL, RevisedPrompt: img.RevisedPrompt, Style: style}
	frame.StyleNotes = s.styleNotes(ctx, actor, img.RevisedPrompt)
	return frame, nil
}

func (s *Service) styleNotes(ctx context.Context, actor auth.Actor, prompt string) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.llm.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: styleNotesPrompt},
			{Role: "user", Content: prompt},
		},
		Task:      ai.TaskStyleAnalysis,
		MaxTokens: 200,
	})
	if err != nil {
		slog.Warn("style analysis failed, returning frame without notes",
			"user_id", actor.UserID,
			"error", err,
		)
		return ""
	}
	s.record(ctx, actor, ai.TaskStyleAnalysis, resp.TotalTokens())
	return strings.TrimSpace(resp.Content)
}
