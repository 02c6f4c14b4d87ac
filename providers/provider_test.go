package providers

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestStub_Complete(t *testing.T) {
	tests := []struct {
		name       string
		provider   string
		prompt     string
		wantOutput string
		wantUsage  Usage
	}{
		{
			name:       "openai short prompt",
			provider:   NameOpenAI,
			prompt:     "Contact me at ***@*** or ***-***-****",
			wantOutput: "[openai-stub] Contact me at ***@*** or ***-***-****...",
			wantUsage:  Usage{PromptTokens: 9, CompletionTokens: 20, TotalTokens: 29},
		},
		{
			name:       "anthropic truncates to 40 chars",
			provider:   NameAnthropic,
			prompt:     strings.Repeat("abcdefghij", 5),
			wantOutput: "[anthropic-stub] " + strings.Repeat("abcdefghij", 4) + "...",
			wantUsage:  Usage{PromptTokens: 12, CompletionTokens: 25, TotalTokens: 37},
		},
		{
			name:       "truncation counts characters not bytes",
			provider:   NameBedrock,
			prompt:     strings.Repeat("é", 41),
			wantOutput: "[bedrock-stub] " + strings.Repeat("é", 40) + "...",
			wantUsage:  Usage{PromptTokens: 10, CompletionTokens: 25, TotalTokens: 35},
		},
		{
			name:       "empty prompt",
			provider:   NameOpenAI,
			prompt:     "",
			wantOutput: "[openai-stub] ...",
			wantUsage:  Usage{PromptTokens: 0, CompletionTokens: 20, TotalTokens: 20},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStub(tt.provider).Complete(context.Background(), tt.prompt, "gpt-4o-mini")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Output != tt.wantOutput {
				t.Errorf("output = %q, want %q", got.Output, tt.wantOutput)
			}
			if got.Usage != tt.wantUsage {
				t.Errorf("usage = %+v, want %+v", got.Usage, tt.wantUsage)
			}
			if got.Provider != tt.provider || got.Model != "gpt-4o-mini" {
				t.Errorf("completion attributed to %s/%s", got.Provider, got.Model)
			}
		})
	}
}

func TestStub_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStub(NameOpenAI).Complete(ctx, "hi", "m"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAPIError(t *testing.T) {
	err := error(&APIError{Provider: NameOpenAI, StatusCode: 429, Message: "slow down"})
	if err.Error() != "HTTP 429: slow down" {
		t.Errorf("Error() = %q", err.Error())
	}
	if got := (&APIError{StatusCode: 500}).Error(); got != "HTTP 500" {
		t.Errorf("Error() = %q", got)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 429 {
		t.Error("expected errors.As to find *APIError")
	}
}

func TestMissingKey(t *testing.T) {
	err := missingKey("OPENAI_API_KEY")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatal("expected ErrMissingAPIKey")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("error should name the env var: %q", err)
	}
}
