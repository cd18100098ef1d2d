// Package ai provides a provider-agnostic AI gateway used by the studio tools.
package ai

import "context"

// TaskType defines the kind of AI task for routing and accounting.
type TaskType int

const (
	TaskAssist TaskType = iota
	TaskScriptAnalysis
	TaskCallSheet
	TaskStyleAnalysis
	TaskFrame
)

func (t TaskType) String() string {
	switch t {
	case TaskAssist:
		return "assist"
	case TaskScriptAnalysis:
		return "script_analysis"
	case TaskCallSheet:
		return "call_sheet"
	case TaskStyleAnalysis:
		return "style_analysis"
	case TaskFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
	// JSON asks the provider for a single JSON object when it supports it.
	JSON bool `json:"json,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// StreamChunk represents a streaming response chunk. The final chunk has
// Done set and carries token usage when the provider reports it.
type StreamChunk struct {
	Content      string
	Done         bool
	Error        error
	InputTokens  int
	OutputTokens int
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}
