package providers

import (
	"context"
	"unicode/utf8"
)

const stubEchoRunes = 40

// Stub is a deterministic backend that never touches the network. Output is
// "[<name>-stub] <first 40 chars of prompt>..." and usage is derived from the
// prompt length.
type Stub struct {
	name             string
	completionTokens int
}

// NewStub returns a stub registered under name. The openai stub reports 20
// completion tokens; every other name reports 25.
func NewStub(name string) *Stub {
	tokens := 25
	if name == NameOpenAI {
		tokens = 20
	}
	return &Stub{name: name, completionTokens: tokens}
}

// Name returns the provider name.
func (s *Stub) Name() string { return s.name }

// Complete returns the canned completion. It honours ctx cancellation so
// timeouts behave the same in stub and live mode.
func (s *Stub) Complete(ctx context.Context, prompt, model string) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	promptTokens := utf8.RuneCountInString(prompt) / 4
	return &Completion{
		Output:   "[" + s.name + "-stub] " + truncateRunes(prompt, stubEchoRunes) + "...",
		Provider: s.name,
		Model:    model,
		Usage: Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: s.completionTokens,
			TotalTokens:      promptTokens + s.completionTokens,
		},
	}, nil
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
