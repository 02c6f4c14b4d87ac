package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider calls the OpenAI Chat Completions API.
type OpenAIProvider struct {
	Base
	client openai.Client
}

// NewOpenAI creates a new OpenAI provider. The optional baseURL parameter
// allows overriding the API endpoint (pass "" for the default). An empty
// apiKey is accepted; Complete then fails with ErrMissingAPIKey.
func NewOpenAI(apiKey string, baseURL string) (*OpenAIProvider, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// The router owns the time budget; SDK retries would overrun it.
		option.WithMaxRetries(0),
	}
	resolvedBase := "https://api.openai.com/v1"
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
		resolvedBase = baseURL
	}
	client := openai.NewClient(opts...)
	return &OpenAIProvider{
		Base:   Base{name: NameOpenAI, apiKey: apiKey, baseURL: resolvedBase},
		client: client,
	}, nil
}

// Complete sends prompt as a single user message.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt, model string) (*Completion, error) {
	if !p.HasCredential() {
		return nil, missingKey("OPENAI_API_KEY")
	}

	params := openai.ChatCompletionNewParams{
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Model:     model,
		MaxTokens: openai.Int(DefaultMaxTokens),
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{Provider: p.name, StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &Completion{
		Output:   completion.Choices[0].Message.Content,
		Provider: p.name,
		Model:    model,
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}
