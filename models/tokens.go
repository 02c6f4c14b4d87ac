package models

import "unicode/utf8"

// TokenEstimator approximates how many tokens a text will consume.
// Implementations must be safe for concurrent use.
type TokenEstimator interface {
	Estimate(text string) int
}

// NaiveEstimator assumes roughly four characters per token. It stands in for
// a real tokenizer; swap it via the router options when billing accuracy
// matters.
type NaiveEstimator struct{}

// Estimate implements TokenEstimator.
func (NaiveEstimator) Estimate(text string) int { return EstimateTokens(text) }

// EstimateTokens returns 0 for empty text, otherwise max(1, chars/4) where
// chars counts Unicode code points.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return max(1, utf8.RuneCountInString(text)/4)
}
