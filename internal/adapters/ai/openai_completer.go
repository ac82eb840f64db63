package ai

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"pricewise/pkg/errors"
)

// OpenAICompleter talks to any OpenAI-compatible chat completions API.
// DeepSeek is served by the same client with a different base URL.
type OpenAICompleter struct {
	client      openai.Client
	provider    ProviderName
	model       string
	temperature float64
}

// NewOpenAICompleter builds a completer for OpenAI or DeepSeek.
func NewOpenAICompleter(provider ProviderName, apiKey, model string, temperature float64) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s API key is required", provider)
	}
	if model == "" {
		model = defaultModel(provider)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if provider == ProviderNameDeepSeek {
		opts = append(opts, option.WithBaseURL(deepSeekBaseURL))
	}

	return &OpenAICompleter{
		client:      openai.NewClient(opts...),
		provider:    provider,
		model:       model,
		temperature: temperature,
	}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt, systemContext string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemContext != "" {
		messages = append(messages, openai.SystemMessage(systemContext))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", errors.Wrapf(err, "%s chat completion", c.provider)
	}
	if len(resp.Choices) == 0 {
		return "", errors.Wrapf(errors.ErrExternal, "%s returned no choices", c.provider)
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAICompleter) Provider() ProviderName { return c.provider }
func (c *OpenAICompleter) Model() string          { return c.model }
