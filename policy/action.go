package policy

import (
	"fmt"
	"strings"
)

// Action is one step of a rule's action list. The set of variants is
// closed: PreferModel, FallbackModel and AvoidModel.
type Action interface {
	// Model is the model identifier the action names.
	Model() string
	// String renders the action in policy-document syntax, e.g. "prefer: gpt-4o".
	String() string

	isAction()
}

// PreferModel selects Model for the decision. The last matching prefer wins.
type PreferModel struct{ ID string }

// FallbackModel is an advisory annotation; it never changes the decision.
type FallbackModel struct{ ID string }

// AvoidModel is an advisory annotation; it never changes the decision.
type AvoidModel struct{ ID string }

func (a PreferModel) Model() string  { return a.ID }
func (a PreferModel) String() string { return "prefer: " + a.ID }
func (PreferModel) isAction()        {}

func (a FallbackModel) Model() string  { return a.ID }
func (a FallbackModel) String() string { return "fallback: " + a.ID }
func (FallbackModel) isAction()        {}

func (a AvoidModel) Model() string  { return a.ID }
func (a AvoidModel) String() string { return "avoid: " + a.ID }
func (AvoidModel) isAction()        {}

// ParseAction parses "<verb>: <model>" with verb prefer, fallback or avoid.
func ParseAction(s string) (Action, error) {
	verb, model, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("malformed action %q: want <verb>: <model>", s)
	}
	verb = strings.TrimSpace(verb)
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("action %q: model is empty", s)
	}
	switch verb {
	case "prefer":
		return PreferModel{ID: model}, nil
	case "fallback":
		return FallbackModel{ID: model}, nil
	case "avoid":
		return AvoidModel{ID: model}, nil
	default:
		return nil, fmt.Errorf("action %q: unknown verb %q", s, verb)
	}
}

func actionStrings(actions []Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.String()
	}
	return out
}
