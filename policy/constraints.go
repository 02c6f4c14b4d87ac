package policy

import (
	"encoding/json"
	"fmt"
)

// Safety is the caller-requested safety level.
type Safety string

// Safety levels accepted in constraints and in safety conditions.
const (
	SafetyStandard Safety = "standard"
	SafetyStrict   Safety = "strict"
)

// ParseSafety validates s. The empty string maps to SafetyStandard.
func ParseSafety(s string) (Safety, error) {
	switch Safety(s) {
	case "", SafetyStandard:
		return SafetyStandard, nil
	case SafetyStrict:
		return SafetyStrict, nil
	default:
		return "", fmt.Errorf("unknown safety level %q: use standard or strict", s)
	}
}

// Default constraint values applied to fields a caller leaves out.
const (
	DefaultLatencySLAMs = 1200
	DefaultBudgetCents  = 5.0
)

// Constraints are the per-request inputs rules are evaluated against.
type Constraints struct {
	LatencySLAMs int     `json:"latency_sla_ms" yaml:"latency_sla_ms"`
	BudgetCents  float64 `json:"budget_cents" yaml:"budget_cents"`
	Safety       Safety  `json:"safety" yaml:"safety"`
}

// DefaultConstraints returns 1200ms / 5.0 cents / standard.
func DefaultConstraints() Constraints {
	return Constraints{
		LatencySLAMs: DefaultLatencySLAMs,
		BudgetCents:  DefaultBudgetCents,
		Safety:       SafetyStandard,
	}
}

// UnmarshalJSON fills omitted fields with their defaults, so a partial
// object such as {"safety":"strict"} keeps the default SLA and budget.
func (c *Constraints) UnmarshalJSON(data []byte) error {
	type plain Constraints
	v := plain(DefaultConstraints())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Constraints(v)
	return nil
}

// Validate reports negative thresholds and unknown safety levels. An empty
// safety level is normalized to standard.
func (c *Constraints) Validate() error {
	if c.LatencySLAMs < 0 {
		return fmt.Errorf("latency_sla_ms must be >= 0, got %d", c.LatencySLAMs)
	}
	if c.BudgetCents < 0 {
		return fmt.Errorf("budget_cents must be >= 0, got %v", c.BudgetCents)
	}
	s, err := ParseSafety(string(c.Safety))
	if err != nil {
		return err
	}
	c.Safety = s
	return nil
}
