// Package providers defines the completion backend capability the router
// calls once it has picked a model, plus the stub and live implementations.
//
// Every backend implements Provider. The router looks a backend up by the
// provider name in a Decision and never branches on provider identity
// beyond that lookup.
package providers

import (
	"context"
	"errors"
	"fmt"
)

// Provider names used by the built-in backends.
const (
	NameOpenAI    = "openai"
	NameAnthropic = "anthropic"
	NameBedrock   = "bedrock"
)

// DefaultMaxTokens caps output for live completions.
const DefaultMaxTokens = 100

// Provider is a completion backend.
//
// Complete must honour ctx: return promptly once it is done. The router
// stops waiting at its deadline regardless, but a call that keeps running
// still holds its connection and goroutine until it returns.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt, model string) (*Completion, error)
}

// Completion is the result of a single completion call.
type Completion struct {
	Output   string `json:"output"`
	Usage    Usage  `json:"usage"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Usage carries token consumption as reported by the backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrMissingAPIKey is returned by live backends constructed without a
// credential. The wrapping error names the environment variable.
var ErrMissingAPIKey = errors.New("api key not set")

// APIError is a non-success response from a backend API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func missingKey(envVar string) error {
	return fmt.Errorf("%w: %s", ErrMissingAPIKey, envVar)
}
