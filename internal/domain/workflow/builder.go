package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc decides whether a configured transition may be taken
type GuardFunc func(ctx context.Context) bool

// Builder collects transitions and produces independent state machines
type Builder interface {
	// Configure returns the configuration for transitions leaving state
	Configure(state State) StateConfiguration

	// Build creates a machine positioned at initialState
	Build(initialState State) StateMachine
}

// StateConfiguration configures transitions leaving one state
type StateConfiguration interface {
	// Permit allows trigger to move to toState
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf allows trigger to move to toState when guard passes
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type edge struct {
	to    State
	guard GuardFunc
}

// table maps from-state to trigger to candidate edges, tried in order
type table map[State]map[Trigger][]edge

type builder struct {
	edges table
}

type stateConfig struct {
	from  State
	edges table
}

type machine struct {
	current State
	edges   table
}

// NewBuilder creates an empty builder
func NewBuilder() Builder {
	return &builder{edges: make(table)}
}

// Configure returns the configuration for transitions leaving state
func (b *builder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if _, ok := b.edges[state]; !ok {
		b.edges[state] = make(map[Trigger][]edge)
	}
	return &stateConfig{from: state, edges: b.edges}
}

// Build creates a machine with its own copy of the transition table
func (b *builder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	edges := make(table, len(b.edges))
	for from, byTrigger := range b.edges {
		copied := make(map[Trigger][]edge, len(byTrigger))
		for trigger, candidates := range byTrigger {
			copied[trigger] = append([]edge(nil), candidates...)
		}
		edges[from] = copied
	}

	return &machine{current: initialState, edges: edges}
}

// Permit allows trigger to move to toState
func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

// PermitIf allows trigger to move to toState when guard passes
func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	c.edges[c.from][trigger] = append(c.edges[c.from][trigger], edge{to: toState, guard: guard})
	return c
}

// State returns the current state
func (m *machine) State() State {
	return m.current
}

// CanFire returns true if any transition exists for trigger. Guards are not evaluated.
func (m *machine) CanFire(trigger Trigger) bool {
	return len(m.edges[m.current][trigger]) > 0
}

// Fire takes the first transition whose guard passes
func (m *machine) Fire(ctx context.Context, trigger Trigger) (Transition, error) {
	candidates := m.edges[m.current][trigger]
	if len(candidates) == 0 {
		return Transition{}, fmt.Errorf("%w: cannot %s a %s timesheet", ErrInvalidTransition, trigger, m.current)
	}

	for _, e := range candidates {
		if e.guard == nil || e.guard(ctx) {
			t := Transition{Trigger: trigger, From: m.current, To: e.to}
			m.current = e.to
			return t, nil
		}
	}

	return Transition{}, fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns the configured triggers for the current state, sorted
func (m *machine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.edges[m.current]))
	for trigger, candidates := range m.edges[m.current] {
		if len(candidates) > 0 {
			triggers = append(triggers, trigger)
		}
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
