package models

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultPriceTable(t *testing.T) {
	table := DefaultPriceTable()
	for _, m := range []string{"gpt-4o-mini", "gpt-4o", "claude-3-haiku", "claude-3-opus"} {
		if _, ok := table[m]; !ok {
			t.Errorf("default table missing %s", m)
		}
	}
	if got := table["gpt-4o-mini"].PromptPer1K.String(); got != "0.15" {
		t.Errorf("gpt-4o-mini prompt price = %s, want 0.15", got)
	}
}

func TestCostCents(t *testing.T) {
	table := DefaultPriceTable()

	tests := []struct {
		name   string
		model  string
		prompt int
		output int
		want   string
	}{
		{"zero tokens", "gpt-4o-mini", 0, 0, "0"},
		{"prompt only", "gpt-4o-mini", 1000, 0, "15"},
		{"output only", "gpt-4o-mini", 0, 1000, "60"},
		{"mixed", "gpt-4o-mini", 9, 13, "0.915"},
		{"opus", "claude-3-opus", 200, 80, "900"},
		{"unknown model", "llama-unknown", 5000, 5000, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.CostCents(tt.model, tt.prompt, tt.output)
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("CostCents(%s, %d, %d) = %s, want %s", tt.model, tt.prompt, tt.output, got, want)
			}
		})
	}
}

func TestEstimateCostCents_UnknownModelIsExactlyZero(t *testing.T) {
	table := DefaultPriceTable()
	if got := table.EstimateCostCents("not-a-model", 123456, 654321); got != 0.0 {
		t.Errorf("expected 0.0 for unknown model, got %v", got)
	}
}

func TestCostCents_Monotonic(t *testing.T) {
	table := DefaultPriceTable()
	for _, model := range table.Models() {
		prev := decimal.Zero
		for p := 0; p <= 2000; p += 97 {
			c := table.CostCents(model, p, 50)
			if c.LessThan(prev) {
				t.Fatalf("%s: cost decreased as prompt tokens grew (%d): %s < %s", model, p, c, prev)
			}
			prev = c
		}
		prev = decimal.Zero
		for o := 0; o <= 2000; o += 89 {
			c := table.CostCents(model, 50, o)
			if c.LessThan(prev) {
				t.Fatalf("%s: cost decreased as output tokens grew (%d): %s < %s", model, o, c, prev)
			}
			prev = c
		}
	}
}

func TestCostCents_AggregationHasNoDrift(t *testing.T) {
	table := DefaultPriceTable()
	// 0.12 cents per iteration for 10,000 iterations must be exactly 1,200 cents.
	total := decimal.Zero
	for i := 0; i < 10000; i++ {
		total = total.Add(table.CostCents("gpt-4o-mini", 0, 1)) // 0.06 cents
		total = total.Add(table.CostCents("gpt-4o-mini", 4, 0)) // 0.06 cents
	}
	if want := decimal.RequireFromString("1200"); !total.Equal(want) {
		t.Errorf("aggregated cost = %s, want %s", total, want)
	}
}

func TestLoadPriceTable(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "prices.yaml")
		data := "custom-model:\n  prompt_per_1k: \"1.5\"\n  completion_per_1k: \"2\"\n"
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
		table, err := LoadPriceTable(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := table.CostCents("custom-model", 1000, 1000)
		if !got.Equal(decimal.NewFromInt(350)) {
			t.Errorf("cost = %s, want 350", got)
		}
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "prices.json")
		data := `{"m": {"prompt_per_1k": 0.5, "completion_per_1k": "0.25"}}`
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
		table, err := LoadPriceTable(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := table["m"]; !ok {
			t.Error("expected model m")
		}
	})

	t.Run("negative price", func(t *testing.T) {
		path := filepath.Join(dir, "neg.json")
		data := `{"m": {"prompt_per_1k": "-1", "completion_per_1k": "0"}}`
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadPriceTable(path); err == nil || !strings.Contains(err.Error(), "negative") {
			t.Errorf("expected negative price error, got %v", err)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "prices.toml")
		if err := os.WriteFile(path, []byte(""), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadPriceTable(path); err == nil {
			t.Error("expected error for .toml")
		}
	})
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{strings.Repeat("x", 100), 25},
		{strings.Repeat("x", 7), 1},
		{strings.Repeat("x", 8), 2},
		{"héllo wörld!", 3},
	}
	var est TokenEstimator = NaiveEstimator{}
	for _, tt := range tests {
		if got := est.Estimate(tt.text); got != tt.want {
			t.Errorf("Estimate(len=%d) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}
