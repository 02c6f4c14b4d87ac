package policy

import "strings"

// FallbackTrace is appended when no rule contributed a trace entry.
const FallbackTrace = "default: prefer fast-cheap-safe"

// Decision is the outcome of evaluating one profile.
type Decision struct {
	Provider   string   `json:"provider"`
	Model      string   `json:"model"`
	PolicyPath []string `json:"-"`
}

// Engine evaluates profiles from a single immutable Document. It is safe
// for concurrent use.
type Engine struct {
	doc *Document
}

// NewEngine returns an engine over doc. A nil doc behaves as a document
// with no profiles.
func NewEngine(doc *Document) *Engine {
	if doc == nil {
		doc = &Document{}
	}
	return &Engine{doc: doc}
}

// Profiles returns the loaded profile names, sorted.
func (e *Engine) Profiles() []string { return e.doc.ProfileNames() }

// Profile returns the named profile.
func (e *Engine) Profile(name string) (*Profile, bool) {
	p, ok := e.doc.Profiles[name]
	return p, ok
}

// Evaluate runs the named profile's rules against c.
//
// Conditional rules run in declared order; every match appends trace
// entries and a prefer action overwrites the model, so the last matching
// prefer wins. Default rules run afterwards and only while the trace is
// still empty. An unknown profile has no rules. The returned path is never
// empty.
func (e *Engine) Evaluate(profile string, c Constraints) Decision {
	p, ok := e.doc.Profiles[profile]
	if !ok {
		p = &Profile{Name: profile, Provider: BaselineProvider, DefaultModel: BaselineModel}
	}

	model := p.DefaultModel
	var trace []string
	var defaults []Rule

	for _, r := range p.Rules {
		if r.IsDefault() {
			defaults = append(defaults, r)
			continue
		}
		if !r.Condition.Matches(c) {
			continue
		}
		if !hasPrefer(r.Actions) {
			trace = append(trace, r.Condition.headline())
		}
		for _, a := range r.Actions {
			switch a := a.(type) {
			case PreferModel:
				model = a.ID
				trace = append(trace, r.Condition.Label()+"→prefer "+a.ID)
			case FallbackModel, AvoidModel:
				trace = append(trace, a.String())
			}
		}
	}

	for _, r := range defaults {
		if len(trace) > 0 {
			break
		}
		for _, a := range r.Actions {
			if pm, ok := a.(PreferModel); ok {
				model = pm.ID
			}
		}
		trace = append(trace, "default: "+strings.Join(actionStrings(r.Actions), ", "))
	}

	if len(trace) == 0 {
		trace = append(trace, FallbackTrace)
	}

	return Decision{Provider: p.Provider, Model: model, PolicyPath: trace}
}

func hasPrefer(actions []Action) bool {
	for _, a := range actions {
		if _, ok := a.(PreferModel); ok {
			return true
		}
	}
	return false
}
