package metadata

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// TransitionFrom handles both a single state and a list of states for the
// "from" side of a transition.
type TransitionFrom []string

func (t *TransitionFrom) UnmarshalJSON(data []byte) error {
	// Try string first
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = []string{single}
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*t = arr
	return nil
}

func (t TransitionFrom) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

func (t *TransitionFrom) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*t = []string{single}
		return nil
	}
	var arr []string
	if err := node.Decode(&arr); err != nil {
		return err
	}
	*t = arr
	return nil
}

// Contains reports whether state is one of the transition's sources.
func (t TransitionFrom) Contains(state string) bool {
	for _, s := range t {
		if s == state {
			return true
		}
	}
	return false
}

// Transition is one allowed edge of a status flow. Roles limits who may take
// the edge (empty means any authenticated user); Guard is an optional boolean
// expression over {record, old, action} that must hold.
type Transition struct {
	From  TransitionFrom `json:"from" yaml:"from"`
	To    string         `json:"to" yaml:"to"`
	Roles []string       `json:"roles,omitempty" yaml:"roles,omitempty"`
	Guard string         `json:"guard,omitempty" yaml:"guard,omitempty"`

	// CompiledGuard holds the compiled guard expression (not serialized).
	CompiledGuard any `json:"-" yaml:"-"`
}

// StatusFlow declares the lifecycle of an entity's status field: the value
// stamped on create and the edges a status change may follow.
type StatusFlow struct {
	Field       string       `json:"field" yaml:"field"`
	Initial     string       `json:"initial" yaml:"initial"`
	Transitions []Transition `json:"transitions" yaml:"transitions"`
}

// Find returns the transition covering from→to, or nil when the edge does
// not exist.
func (f *StatusFlow) Find(from, to string) *Transition {
	for i := range f.Transitions {
		t := &f.Transitions[i]
		if t.To == to && t.From.Contains(from) {
			return t
		}
	}
	return nil
}

// TargetsFrom lists the states reachable from the given state.
func (f *StatusFlow) TargetsFrom(state string) []string {
	var targets []string
	for i := range f.Transitions {
		if f.Transitions[i].From.Contains(state) {
			targets = append(targets, f.Transitions[i].To)
		}
	}
	return targets
}
