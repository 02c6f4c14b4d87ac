package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Condition is a rule predicate over Constraints. The set of variants is
// closed: SafetyEquals, LatencyAtMost and BudgetAtMost.
type Condition interface {
	// Matches reports whether the predicate holds for c.
	Matches(c Constraints) bool
	// Label is the short trace prefix, e.g. "sla<=1000".
	Label() string
	// String renders the condition in policy-document syntax.
	String() string

	headline() string
}

// SafetyEquals matches when the requested safety level equals Level.
type SafetyEquals struct {
	Level Safety
}

func (s SafetyEquals) Matches(c Constraints) bool { return c.Safety == s.Level }
func (s SafetyEquals) Label() string              { return "safety:" + string(s.Level) }
func (s SafetyEquals) String() string             { return fmt.Sprintf("safety == '%s'", s.Level) }
func (s SafetyEquals) headline() string           { return s.Label() + "→guards" }

// LatencyAtMost matches when the latency SLA is at most Ms milliseconds.
type LatencyAtMost struct {
	Ms int
}

func (l LatencyAtMost) Matches(c Constraints) bool { return c.LatencySLAMs <= l.Ms }
func (l LatencyAtMost) Label() string              { return "sla<=" + strconv.Itoa(l.Ms) }
func (l LatencyAtMost) String() string             { return "latency_sla_ms <= " + strconv.Itoa(l.Ms) }
func (l LatencyAtMost) headline() string           { return l.Label() }

// BudgetAtMost matches when the budget is at most Cents.
type BudgetAtMost struct {
	Cents float64
}

func (b BudgetAtMost) Matches(c Constraints) bool { return c.BudgetCents <= b.Cents }
func (b BudgetAtMost) Label() string              { return "budget<=" + formatCents(b.Cents) }
func (b BudgetAtMost) String() string             { return "budget_cents <= " + formatCents(b.Cents) }
func (b BudgetAtMost) headline() string           { return b.Label() }

func formatCents(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

var conditionPattern = regexp.MustCompile(`^\s*([a-z_]+)\s*(==|<=)\s*(.+?)\s*$`)

// ParseCondition parses the document syntax of a rule predicate:
//
//	safety == 'strict'
//	latency_sla_ms <= 1000
//	budget_cents <= 3
func ParseCondition(s string) (Condition, error) {
	m := conditionPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("malformed condition %q: want <field> <op> <value>", s)
	}
	field, op, value := m[1], m[2], m[3]

	switch field {
	case "safety":
		if op != "==" {
			return nil, fmt.Errorf("condition %q: safety only supports ==", s)
		}
		level, err := ParseSafety(unquote(value))
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", s, err)
		}
		return SafetyEquals{Level: level}, nil
	case "latency_sla_ms":
		if op != "<=" {
			return nil, fmt.Errorf("condition %q: latency_sla_ms only supports <=", s)
		}
		ms, err := strconv.Atoi(value)
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("condition %q: latency must be a non-negative integer", s)
		}
		return LatencyAtMost{Ms: ms}, nil
	case "budget_cents":
		if op != "<=" {
			return nil, fmt.Errorf("condition %q: budget_cents only supports <=", s)
		}
		cents, err := strconv.ParseFloat(value, 64)
		if err != nil || cents < 0 {
			return nil, fmt.Errorf("condition %q: budget must be a non-negative number", s)
		}
		return BudgetAtMost{Cents: cents}, nil
	default:
		return nil, fmt.Errorf("condition %q: unknown field %q", s, field)
	}
}

// unquote strips one pair of matching single or double quotes. A bare
// word is returned as is.
func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '\'' && v[len(v)-1] == '\'') || (v[0] == '"' && v[len(v)-1] == '"') {
			return v[1 : len(v)-1]
		}
	}
	return strings.TrimSpace(v)
}
