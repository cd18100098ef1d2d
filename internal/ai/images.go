package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ImageRequest asks for one generated frame.
type ImageRequest struct {
	Prompt string
	Size   string
}

// Image is a generated frame.
type Image struct {
	URL           string `json:"url"`
	RevisedPrompt string `json:"revised_prompt"`
}

// ImageGenerator produces still frames from prompts.
type ImageGenerator interface {
	Generate(ctx context.Context, req ImageRequest) (Image, error)
}

// ImageProvider calls an OpenAI-compatible images endpoint.
type ImageProvider struct {
	client *resty.Client
	model  string
}

// ImageOption configures an ImageProvider.
type ImageOption func(*ImageProvider)

// WithImageModel sets the model name sent with each request.
func WithImageModel(model string) ImageOption {
	return func(p *ImageProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithImageTimeout bounds each request.
func WithImageTimeout(d time.Duration) ImageOption {
	return func(p *ImageProvider) {
		p.client.SetTimeout(d)
	}
}

// NewImageProvider creates an image provider rooted at baseURL.
func NewImageProvider(baseURL, apiKey string, opts ...ImageOption) *ImageProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	p := &ImageProvider{client: client, model: "gpt-image-1"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// Generate requests a single image. Providers that answer with inline base64
// yield a data URL.
func (p *ImageProvider) Generate(ctx context.Context, req ImageRequest) (Image, error) {
	size := req.Size
	if size == "" {
		size = "1536x1024"
	}

	var out imageResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(imageRequest{Model: p.model, Prompt: req.Prompt, N: 1, Size: size}).
		SetResult(&out).
		Post("/images/generations")
	if err != nil {
		return Image{}, upstream("images", "send request", err)
	}
	if resp.IsError() {
		return Image{}, StatusError("images", resp.StatusCode(), resp.Body())
	}
	if len(out.Data) == 0 {
		return Image{}, upstream("images", "decode response", fmt.Errorf("no images in response"))
	}

	d := out.Data[0]
	img := Image{URL: d.URL, RevisedPrompt: d.RevisedPrompt}
	if img.URL == "" && d.B64JSON != "" {
		img.URL = "data:image/png;base64," + d.B64JSON
	}
	if img.URL == "" {
		return Image{}, upstream("images", "decode response", fmt.Errorf("image has no url"))
	}
	if img.RevisedPrompt == "" {
		img.RevisedPrompt = req.Prompt
	}
	return img, nil
}
