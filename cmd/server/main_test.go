package main

import (
	"bytes"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/filmforge/academy/internal/ai"
	"github.com/filmforge/academy/internal/platform/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantDebug bool
		wantJSON  bool
	}{
		{"json info by default", config.LogConfig{Level: "info", Format: "json"}, false, true},
		{"debug enables debug", config.LogConfig{Level: "DEBUG", Format: "json"}, true, true},
		{"text format", config.LogConfig{Level: "warn", Format: "text"}, false, false},
		{"unknown level falls back to info", config.LogConfig{Level: "loud", Format: "json"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(tt.cfg, &buf)

			logger.Debug("debug line")
			logger.Error("error line")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.HasPrefix(out, "{"); got != tt.wantJSON {
				t.Errorf("json output = %v, want %v (%q)", got, tt.wantJSON, out)
			}
			if !logger.Enabled(t.Context(), slog.LevelError) {
				t.Error("error level should always be enabled")
			}
		})
	}
}

func TestBuildProviders(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.AIConfig
		wantAny   bool
		wantNames []string
	}{
		{
			name: "nothing configured",
			cfg:  config.AIConfig{Timeout: time.Second},
		},
		{
			name: "keys and ollama",
			cfg: config.AIConfig{
				OpenAI:    config.OpenAIConfig{APIKey: "sk-test"},
				Anthropic: config.AnthropicConfig{APIKey: "sk-ant-test"},
				Ollama:    config.OllamaConfig{Enabled: true, URL: "http://localhost:11434/v1"},
				Timeout:   time.Second,
			},
			wantAny:   true,
			wantNames: []string{"openai", "anthropic", "ollama"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := buildProviders(tt.cfg)
			if err != nil {
				t.Fatalf("buildProviders() error = %v", err)
			}
			if router.HasProvider() != tt.wantAny {
				t.Errorf("HasProvider() = %v, want %v", router.HasProvider(), tt.wantAny)
			}
			if got := router.Providers(); !slices.Equal(got, tt.wantNames) {
				t.Errorf("Providers() = %v, want %v", got, tt.wantNames)
			}
		})
	}
}

func TestBuildImages(t *testing.T) {
	if g := buildImages(config.AIConfig{}); g != nil {
		t.Errorf("buildImages() without key = %v, want nil", g)
	}
	if g := buildImages(config.AIConfig{Images: config.ImagesConfig{APIKey: "k", BaseURL: "https://img.example"}, Timeout: time.Second}); g == nil {
		t.Error("buildImages() with key = nil")
	}
}

func TestNewBudget(t *testing.T) {
	if _, ok := newBudget(0, nil).(ai.UnlimitedBudget); !ok {
		t.Error("zero limit should be unlimited")
	}
	if _, ok := newBudget(1000, nil).(*ai.InMemoryBudget); !ok {
		t.Error("no cache should fall back to the in-memory budget")
	}
}
