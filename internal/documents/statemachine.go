package documents

import (
	"fmt"
	"slices"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Rule declares that Action is legal from every status in From. To lists the
// possible resulting statuses, the first being the default; an empty To
// keeps the current status.
type Rule[S ~string, A ~string] struct {
	From   []S
	Action A
	To     []S
}

// Machine is an explicit (status, action) -> status table for one document type.
type Machine[S ~string, A ~string] struct {
	document string
	states   []S
	edges    map[S]map[A][]S
}

// NewMachine builds a transition table. It panics on rules that reference
// undeclared statuses since tables are package-level constants.
func NewMachine[S ~string, A ~string](document string, states []S, rules ...Rule[S, A]) *Machine[S, A] {
	m := &Machine[S, A]{
		document: document,
		states:   slices.Clone(states),
		edges:    make(map[S]map[A][]S, len(states)),
	}
	for _, rule := range rules {
		for _, to := range rule.To {
			if !slices.Contains(states, to) {
				panic(fmt.Sprintf("documents: %s rule %s targets unknown status %q", document, rule.Action, to))
			}
		}
		for _, from := range rule.From {
			if !slices.Contains(states, from) {
				panic(fmt.Sprintf("documents: %s rule %s starts from unknown status %q", document, rule.Action, from))
			}
			if m.edges[from] == nil {
				m.edges[from] = make(map[A][]S)
			}
			m.edges[from][rule.Action] = slices.Clone(rule.To)
		}
	}
	return m
}

// Document returns the document type name the table guards.
func (m *Machine[S, A]) Document() string { return m.document }

// States returns every declared status.
func (m *Machine[S, A]) States() []S { return slices.Clone(m.states) }

// Valid reports whether s is a declared status.
func (m *Machine[S, A]) Valid(s S) bool { return slices.Contains(m.states, s) }

// Can reports whether action is legal from status.
func (m *Machine[S, A]) Can(from S, action A) bool {
	_, ok := m.edges[from][action]
	return ok
}

// Terminal reports whether no action leaves status.
func (m *Machine[S, A]) Terminal(s S) bool {
	return len(m.edges[s]) == 0
}

// Allowed lists the legal actions from status in lexical order.
func (m *Machine[S, A]) Allowed(from S) []A {
	actions := make([]A, 0, len(m.edges[from]))
	for action := range m.edges[from] {
		actions = append(actions, action)
	}
	slices.Sort(actions)
	return actions
}

// Transition validates action against from and returns the resulting status.
// outcome selects among several declared targets.
func (m *Machine[S, A]) Transition(from S, action A, outcome ...S) (S, error) {
	targets, ok := m.edges[from][action]
	if !ok {
		return from, &shared.IllegalTransitionError{Document: m.document, Action: string(action), Status: string(from)}
	}
	if len(targets) == 0 {
		return from, nil
	}
	if len(outcome) == 0 {
		return targets[0], nil
	}
	if !slices.Contains(targets, outcome[0]) {
		return from, fmt.Errorf("documents: %s action %s cannot lead to %s", m.document, action, outcome[0])
	}
	return outcome[0], nil
}

// Recorder observes transition attempts.
type Recorder interface {
	RecordTransition(document, action string, err error)
}

// Record reports the outcome of a whole action, side effects included, to
// rec when it is set.
func (m *Machine[S, A]) Record(rec Recorder, action A, err error) {
	if rec != nil {
		rec.RecordTransition(m.document, string(action), err)
	}
}
