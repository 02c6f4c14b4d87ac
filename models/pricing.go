// Package models holds the per-model price table and the token estimator
// used to produce cost estimates for a routing decision.
//
// The default price table is embedded in the binary (prices.json). Operators
// may replace it at startup with LoadPriceTable; after that the table is
// read-only and safe for concurrent use.
package models

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed prices.json
var bundledPrices []byte

var (
	thousand = decimal.NewFromInt(1000)
	hundred  = decimal.NewFromInt(100)
)

// Price holds USD prices per 1,000 tokens. Values are decimals so repeated
// aggregation never accumulates binary floating-point drift.
type Price struct {
	PromptPer1K     decimal.Decimal `json:"prompt_per_1k" yaml:"prompt_per_1k"`
	CompletionPer1K decimal.Decimal `json:"completion_per_1k" yaml:"completion_per_1k"`
}

// PriceTable maps a model identifier (e.g. "gpt-4o-mini") to its price.
type PriceTable map[string]Price

// DefaultPriceTable returns a fresh copy of the embedded price table.
func DefaultPriceTable() PriceTable {
	t, err := parsePrices(bundledPrices, ".json")
	if err != nil {
		// prices.json ships with the binary; a parse failure is a build defect.
		panic(fmt.Sprintf("embedded prices.json: %v", err))
	}
	return t
}

// LoadPriceTable reads a price table from a .json, .yaml or .yml file.
func LoadPriceTable(path string) (PriceTable, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading price table: %w", err)
	}
	return parsePrices(data, strings.ToLower(filepath.Ext(path)))
}

func parsePrices(data []byte, ext string) (PriceTable, error) {
	var t PriceTable
	switch ext {
	case ".yaml", ".yml":
		// yaml.v3 cannot decode into decimal.Decimal directly; go through strings.
		var raw map[string]map[string]string
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing YAML price table: %w", err)
		}
		t = make(PriceTable, len(raw))
		for model, fields := range raw {
			p, err := priceFromStrings(fields)
			if err != nil {
				return nil, fmt.Errorf("price for %q: %w", model, err)
			}
			t[model] = p
		}
	case ".json":
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parsing JSON price table: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported price table extension %q: use .json, .yaml, or .yml", ext)
	}
	for model, p := range t {
		if p.PromptPer1K.IsNegative() || p.CompletionPer1K.IsNegative() {
			return nil, fmt.Errorf("price for %q is negative", model)
		}
	}
	return t, nil
}

func priceFromStrings(fields map[string]string) (Price, error) {
	prompt, err := decimal.NewFromString(fields["prompt_per_1k"])
	if err != nil {
		return Price{}, fmt.Errorf("prompt_per_1k: %w", err)
	}
	completion, err := decimal.NewFromString(fields["completion_per_1k"])
	if err != nil {
		return Price{}, fmt.Errorf("completion_per_1k: %w", err)
	}
	return Price{PromptPer1K: prompt, CompletionPer1K: completion}, nil
}

// CostCents returns the exact estimated cost in US cents:
//
//	((promptTokens/1000)*PromptPer1K + (outputTokens/1000)*CompletionPer1K) * 100
//
// Models missing from the table are unbillable and cost exactly zero.
func (t PriceTable) CostCents(model string, promptTokens, outputTokens int) decimal.Decimal {
	p, ok := t[model]
	if !ok {
		return decimal.Zero
	}
	prompt := decimal.NewFromInt(int64(promptTokens)).Div(thousand).Mul(p.PromptPer1K)
	output := decimal.NewFromInt(int64(outputTokens)).Div(thousand).Mul(p.CompletionPer1K)
	return prompt.Add(output).Mul(hundred)
}

// EstimateCostCents is CostCents converted to float64 for reporting.
func (t PriceTable) EstimateCostCents(model string, promptTokens, outputTokens int) float64 {
	return t.CostCents(model, promptTokens, outputTokens).InexactFloat64()
}

// Models returns the model identifiers present in the table.
func (t PriceTable) Models() []string {
	out := make([]string, 0, len(t))
	for m := range t {
		out = append(out, m)
	}
	return out
}
