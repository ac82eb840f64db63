package ai

import (
	"context"

	"google.golang.org/genai"

	"pricewise/pkg/errors"
)

// GeminiCompleter calls the Gemini API through the genai SDK.
type GeminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiCompleter(ctx context.Context, apiKey, model string, temperature float64) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gemini API key is required")
	}
	if model == "" {
		model = defaultModel(ProviderNameGoogle)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}

	return &GeminiCompleter{client: client, model: model, temperature: float32(temperature)}, nil
}

func (c *GeminiCompleter) Complete(ctx context.Context, prompt, systemContext string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if systemContext != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemContext, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", errors.Wrap(err, "gemini generate content")
	}

	text := resp.Text()
	if text == "" {
		return "", errors.Wrap(errors.ErrExternal, "gemini returned empty content")
	}
	return text, nil
}

func (c *GeminiCompleter) Provider() ProviderName { return ProviderNameGoogle }
func (c *GeminiCompleter) Model() string          { return c.model }
