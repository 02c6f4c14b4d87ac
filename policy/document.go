// Package policy loads declarative routing profiles and evaluates them
// against per-request constraints.
//
// A policy document is parsed once. Conditions and actions are decoded into
// closed variant sets at parse time, so an Engine never interprets strings
// while serving requests. Documents are immutable after Parse returns.
package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Baseline provider and model used when a profile does not name its own.
const (
	BaselineProvider = "openai"
	BaselineModel    = "gpt-4o-mini"
)

// ErrMissingProfiles is returned when a document has no "profiles" mapping.
var ErrMissingProfiles = errors.New("invalid policy document: missing 'profiles'")

// Document is a named collection of profiles.
type Document struct {
	Profiles map[string]*Profile
}

// Profile is an ordered rule list plus the provider/model a decision starts
// from.
type Profile struct {
	Name         string `json:"name"`
	Provider     string `json:"provider"`
	DefaultModel string `json:"default_model"`
	Rules        []Rule `json:"rules"`
}

// Rule is either conditional (Condition != nil) or a default rule.
type Rule struct {
	Condition Condition
	Actions   []Action
}

// IsDefault reports whether r is a default (catch-all) rule.
func (r Rule) IsDefault() bool { return r.Condition == nil }

// MarshalJSON renders the rule back in document syntax:
// {"if": "...", "then": [...]} or {"default": [...]}. Comparison operators
// are kept literal rather than HTML-escaped.
func (r Rule) MarshalJSON() ([]byte, error) {
	acts := actionStrings(r.Actions)
	var v any
	if r.IsDefault() {
		v = map[string][]string{"default": acts}
	} else {
		out := map[string]any{"if": r.Condition.String()}
		if len(acts) > 0 {
			out["then"] = acts
		}
		v = out
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ProfileNames returns the profile names in sorted order.
func (d *Document) ProfileNames() []string {
	names := make([]string, 0, len(d.Profiles))
	for name := range d.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type rawDocument struct {
	Profiles map[string]*rawProfile `yaml:"profiles"`
}

type rawProfile struct {
	Provider     string    `yaml:"provider"`
	DefaultModel string    `yaml:"default_model"`
	Rules        []rawRule `yaml:"rules"`
}

type rawRule struct {
	If      *string   `yaml:"if"`
	Then    []string  `yaml:"then"`
	Default *[]string `yaml:"default"`
}

// Parse decodes a YAML or JSON policy document. JSON is accepted because it
// is a subset of YAML.
func Parse(data []byte) (*Document, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing policy document: %w", err)
	}
	if len(raw.Profiles) == 0 {
		return nil, ErrMissingProfiles
	}

	doc := &Document{Profiles: make(map[string]*Profile, len(raw.Profiles))}
	for name, rp := range raw.Profiles {
		p, err := buildProfile(name, rp)
		if err != nil {
			return nil, err
		}
		doc.Profiles[name] = p
	}
	return doc, nil
}

func buildProfile(name string, rp *rawProfile) (*Profile, error) {
	p := &Profile{Name: name, Provider: BaselineProvider, DefaultModel: BaselineModel, Rules: []Rule{}}
	if rp == nil {
		return p, nil
	}
	if rp.Provider != "" {
		p.Provider = rp.Provider
	}
	if rp.DefaultModel != "" {
		p.DefaultModel = rp.DefaultModel
	}

	for i, rr := range rp.Rules {
		r, err := buildRule(rr)
		if err != nil {
			return nil, fmt.Errorf("profile %q rule %d: %w", name, i, err)
		}
		p.Rules = append(p.Rules, r)
	}
	return p, nil
}

func buildRule(rr rawRule) (Rule, error) {
	switch {
	case rr.If != nil && rr.Default != nil:
		return Rule{}, errors.New("rule cannot have both 'if' and 'default'")
	case rr.If != nil:
		cond, err := ParseCondition(*rr.If)
		if err != nil {
			return Rule{}, err
		}
		acts, err := parseActions(rr.Then)
		if err != nil {
			return Rule{}, err
		}
		return Rule{Condition: cond, Actions: acts}, nil
	case rr.Default != nil:
		if len(rr.Then) > 0 {
			return Rule{}, errors.New("default rule cannot have 'then'")
		}
		acts, err := parseActions(*rr.Default)
		if err != nil {
			return Rule{}, err
		}
		return Rule{Actions: acts}, nil
	default:
		return Rule{}, errors.New("rule needs 'if' or 'default'")
	}
}

func parseActions(in []string) ([]Action, error) {
	out := make([]Action, 0, len(in))
	for _, s := range in {
		a, err := ParseAction(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
