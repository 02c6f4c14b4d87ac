package policyrouter

import (
	"encoding/json"
	"errors"

	"github.com/ferro-labs/policy-router/policy"
)

// Request errors. Both are client errors: the caller sent a request that
// cannot be routed at all.
var (
	ErrTaskRequired       = errors.New("task is required")
	ErrInvalidConstraints = errors.New("invalid constraints")
)

// Request is a task to route.
type Request struct {
	Task   string         `json:"task"`
	Inputs map[string]any `json:"inputs,omitempty"`
	// Constraints defaults to policy.DefaultConstraints when nil.
	Constraints *policy.Constraints `json:"constraints,omitempty"`
	// Profile defaults to the router's default profile when empty.
	Profile  string         `json:"profile,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Schema returns the JSON Schema supplied under metadata.schema, or nil.
// Empty values (null, "", false, 0, {} and []) mean no schema was given.
func (r Request) Schema() any {
	s, ok := r.Metadata["schema"]
	if !ok || emptySchema(s) {
		return nil
	}
	return s
}

func emptySchema(s any) bool {
	switch v := s.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case float64:
		return v == 0
	case int:
		return v == 0
	case json.Number:
		f, err := v.Float64()
		return err == nil && f == 0
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case json.RawMessage:
		return len(v) == 0
	case []byte:
		return len(v) == 0
	}
	return false
}

// RouteResult is the response to a routed task. It is never stored.
type RouteResult struct {
	Decision       policy.Decision `json:"decision"`
	Metrics        RouteMetrics    `json:"metrics"`
	PolicyPath     []string        `json:"policy_path"`
	Output         string          `json:"output"`
	DebugSanitized string          `json:"debug_sanitized"`
	Validation     *Validation     `json:"validation"`
	TraceID        string          `json:"trace_id"`
}

// RouteMetrics are the measured latency and the estimated usage of a route.
type RouteMetrics struct {
	LatencyMs    int64   `json:"latency_ms"`
	TokensPrompt int     `json:"tokens_prompt"`
	TokensOutput int     `json:"tokens_output"`
	CostCents    float64 `json:"cost_cents"`
}

// Validation reports the post-guards. DenyHits is always set; OK, Errors
// and CheckedKeys only when a schema was supplied.
type Validation struct {
	OK          *bool
	Errors      []string
	CheckedKeys []string
	DenyHits    []string
}

// Validated reports whether schema validation ran.
func (v *Validation) Validated() bool { return v != nil && v.OK != nil }

// MarshalJSON omits the schema fields when no schema was checked.
func (v Validation) MarshalJSON() ([]byte, error) {
	hits := v.DenyHits
	if hits == nil {
		hits = []string{}
	}
	if v.OK == nil {
		return json.Marshal(struct {
			DenyHits []string `json:"deny_hits"`
		}{hits})
	}
	errs := v.Errors
	if errs == nil {
		errs = []string{}
	}
	return json.Marshal(struct {
		OK          bool     `json:"ok"`
		Errors      []string `json:"errors"`
		CheckedKeys []string `json:"checked_keys"`
		DenyHits    []string `json:"deny_hits"`
	}{*v.OK, errs, v.CheckedKeys, hits})
}

// UnmarshalJSON accepts what MarshalJSON produces.
func (v *Validation) UnmarshalJSON(data []byte) error {
	var raw struct {
		OK          *bool    `json:"ok"`
		Errors      []string `json:"errors"`
		CheckedKeys []string `json:"checked_keys"`
		DenyHits    []string `json:"deny_hits"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = Validation{OK: raw.OK, Errors: raw.Errors, CheckedKeys: raw.CheckedKeys, DenyHits: raw.DenyHits}
	return nil
}
