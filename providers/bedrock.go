package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockInvoker is the subset of the Bedrock runtime client the provider
// uses. *bedrockruntime.Client satisfies it.
type BedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockOptions configures NewBedrock. Static credentials are optional;
// when AccessKeyID is empty the default AWS credential chain is used.
type BedrockOptions struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// BedrockProvider runs Anthropic Claude models through the Bedrock runtime
// InvokeModel API. Model identifiers are Bedrock model IDs, e.g.
// "anthropic.claude-3-haiku-20240307-v1:0".
type BedrockProvider struct {
	Base
	client BedrockInvoker
}

// NewBedrock creates a new AWS Bedrock provider. Region defaults to
// us-east-1.
func NewBedrock(ctx context.Context, opts BedrockOptions) (*BedrockProvider, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewBedrockWithClient(bedrockruntime.NewFromConfig(cfg), region), nil
}

// NewBedrockWithClient wraps an existing invoker.
func NewBedrockWithClient(client BedrockInvoker, region string) *BedrockProvider {
	return &BedrockProvider{
		Base:   Base{name: NameBedrock, baseURL: fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", region)},
		client: client,
	}
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockAnthropicRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockAnthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends prompt as a single user message.
func (p *BedrockProvider) Complete(ctx context.Context, prompt, model string) (*Completion, error) {
	if !strings.HasPrefix(model, "anthropic.") {
		return nil, fmt.Errorf("unsupported Bedrock model %q: only anthropic.* models are routed", model)
	}

	body, err := json.Marshal(bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        DefaultMaxTokens,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		var respErr interface{ HTTPStatusCode() int }
		if errors.As(err, &respErr) {
			return nil, &APIError{Provider: p.name, StatusCode: respErr.HTTPStatusCode(), Message: err.Error()}
		}
		return nil, fmt.Errorf("bedrock invoke failed: %w", err)
	}

	var resp bedrockAnthropicResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	return &Completion{
		Output:   text.String(),
		Provider: p.name,
		Model:    model,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
