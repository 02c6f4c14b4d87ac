package policy

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		in   string
		want Condition
	}{
		{"safety == 'strict'", SafetyEquals{Level: SafetyStrict}},
		{`safety == "standard"`, SafetyEquals{Level: SafetyStandard}},
		{"safety==strict", SafetyEquals{Level: SafetyStrict}},
		{"latency_sla_ms <= 1000", LatencyAtMost{Ms: 1000}},
		{"  latency_sla_ms<=0 ", LatencyAtMost{Ms: 0}},
		{"budget_cents <= 3", BudgetAtMost{Cents: 3}},
		{"budget_cents <= 2.5", BudgetAtMost{Cents: 2.5}},
	}
	for _, tt := range tests {
		got, err := ParseCondition(tt.in)
		if err != nil {
			t.Errorf("ParseCondition(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCondition(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestParseCondition_Errors(t *testing.T) {
	for _, in := range []string{
		"",
		"latency_sla_ms",
		"safety <= 'strict'",
		"safety == 'paranoid'",
		"latency_sla_ms == 1000",
		"latency_sla_ms <= fast",
		"latency_sla_ms <= -1",
		"budget_cents <= cheap",
		"region == 'eu'",
	} {
		if _, err := ParseCondition(in); err == nil {
			t.Errorf("ParseCondition(%q): expected error", in)
		}
	}
}

func TestConditionRendering(t *testing.T) {
	c := BudgetAtMost{Cents: 2.5}
	if c.Label() != "budget<=2.5" || c.String() != "budget_cents <= 2.5" {
		t.Errorf("got %q / %q", c.Label(), c.String())
	}
	s := SafetyEquals{Level: SafetyStrict}
	if s.headline() != "safety:strict→guards" {
		t.Errorf("headline = %q", s.headline())
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{"prefer: gpt-4o-mini", PreferModel{ID: "gpt-4o-mini"}},
		{"fallback:claude-3-haiku", FallbackModel{ID: "claude-3-haiku"}},
		{"avoid:  claude-3-opus ", AvoidModel{ID: "claude-3-opus"}},
	}
	for _, tt := range tests {
		got, err := ParseAction(tt.in)
		if err != nil {
			t.Errorf("ParseAction(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAction(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"prefer gpt-4o", "use: gpt-4o", "prefer:", "prefer:   "} {
		if _, err := ParseAction(in); err == nil {
			t.Errorf("ParseAction(%q): expected error", in)
		}
	}
}

func TestParse_MissingProfiles(t *testing.T) {
	for _, doc := range []string{"", "rules: []", "profiles:", "profiles: {}", "[]"} {
		_, err := Parse([]byte(doc))
		if doc == "[]" {
			if err == nil {
				t.Errorf("Parse(%q): expected error", doc)
			}
			continue
		}
		if !errors.Is(err, ErrMissingProfiles) {
			t.Errorf("Parse(%q) = %v, want ErrMissingProfiles", doc, err)
		}
	}
}

func TestParse_RuleErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"bad condition",
			"profiles:\n  p:\n    rules:\n      - if: \"region == 'eu'\"\n",
			`profile "p" rule 0`,
		},
		{
			"bad action",
			"profiles:\n  p:\n    rules:\n      - if: \"budget_cents <= 3\"\n      - if: \"budget_cents <= 1\"\n        then: [\"drop: x\"]\n",
			`profile "p" rule 1`,
		},
		{
			"both if and default",
			"profiles:\n  p:\n    rules:\n      - if: \"budget_cents <= 3\"\n        default: []\n",
			"both",
		},
		{
			"empty rule",
			"profiles:\n  p:\n    rules:\n      - {}\n",
			"needs 'if' or 'default'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParse_JSONDocument(t *testing.T) {
	doc := mustParse(t, `{"profiles": {"p": {"rules": [{"if": "safety == 'strict'"}, {"default": []}]}}}`)
	p := doc.Profiles["p"]
	if len(p.Rules) != 2 || !p.Rules[1].IsDefault() || p.Rules[0].IsDefault() {
		t.Fatalf("unexpected rules: %+v", p.Rules)
	}
	b, err := json.Marshal(p.Rules[1])
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"default":[]}` {
		t.Errorf("default rule JSON = %s", b)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "policy.toml")
		if err := os.WriteFile(path, []byte("profiles = {}"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFile(path); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(dir, "nope.yaml")); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("missing profiles", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		if err := os.WriteFile(path, []byte("version: 1\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFile(path); !errors.Is(err, ErrMissingProfiles) {
			t.Fatalf("expected ErrMissingProfiles, got %v", err)
		}
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "policy.json")
		if err := os.WriteFile(path, []byte(`{"profiles": {"a": {"rules": []}}}`), 0o600); err != nil {
			t.Fatal(err)
		}
		doc, err := LoadFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := doc.Profiles["a"]; !ok {
			t.Error("expected profile a")
		}
	})
}

func TestConstraints(t *testing.T) {
	var c Constraints
	if err := json.Unmarshal([]byte(`{"safety":"strict"}`), &c); err != nil {
		t.Fatal(err)
	}
	if c.LatencySLAMs != DefaultLatencySLAMs || c.BudgetCents != DefaultBudgetCents || c.Safety != SafetyStrict {
		t.Errorf("partial constraints = %+v", c)
	}

	c = Constraints{LatencySLAMs: 10, BudgetCents: 1}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Safety != SafetyStandard {
		t.Errorf("empty safety should normalize to standard, got %q", c.Safety)
	}

	for _, bad := range []Constraints{
		{LatencySLAMs: -1, Safety: SafetyStandard},
		{BudgetCents: -0.5, Safety: SafetyStandard},
		{Safety: "lax"},
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("Validate(%+v): expected error", bad)
		}
	}
}
