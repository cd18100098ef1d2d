package ai

import (
	"context"
	"sync"
)

// MockProvider is a test double for AI providers. Replies are served in
// order; the last one repeats.
type MockProvider struct {
	Replies []string
	Err     error
	// Chunks, when set, is what StreamComplete emits.
	Chunks []string

	mu       sync.Mutex
	calls    int
	Requests []CompletionRequest
}

// NewMockProvider creates a MockProvider that returns the given replies.
func NewMockProvider(replies ...string) *MockProvider {
	return &MockProvider{Replies: replies}
}

// LastRequest returns the most recent request, if any.
func (m *MockProvider) LastRequest() (CompletionRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return CompletionRequest{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

// Calls returns how many completions were requested.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) next(req CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	i := m.calls
	m.calls++
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Replies) == 0 {
		return "", nil
	}
	if i >= len(m.Replies) {
		i = len(m.Replies) - 1
	}
	return m.Replies[i], nil
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	reply, err := m.next(req)
	if err != nil {
		return CompletionResponse{}, err
	}
	return CompletionResponse{
		Content:      reply,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(reply),
	}, nil
}

func (m *MockProvider) StreamComplete(_ context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	reply, err := m.next(req)
	if err != nil {
		return nil, err
	}
	chunks := m.Chunks
	if chunks == nil {
		chunks = []string{reply}
	}

	ch := make(chan StreamChunk, len(chunks)+1)
	out := 0
	for _, c := range chunks {
		ch <- StreamChunk{Content: c}
		out += len(c)
	}
	ch <- StreamChunk{Done: true, InputTokens: 10, OutputTokens: out}
	close(ch)
	return ch, nil
}

func (m *MockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "mock", Name: "Mock Model", MaxTokens: 4096, Description: "Test mock"},
	}
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}

// MockImages is a test double for ImageGenerator.
type MockImages struct {
	Image Image
	Err   error

	mu      sync.Mutex
	Prompts []string
}

func (m *MockImages) Generate(_ context.Context, req ImageRequest) (Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, req.Prompt)
	if m.Err != nil {
		return Image{}, m.Err
	}
	img := m.Image
	if img.RevisedPrompt == "" {
		img.RevisedPrompt = req.Prompt
	}
	return img, nil
}
