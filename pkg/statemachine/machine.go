// Package statemachine validates status transitions for persisted entities and
// applies the timestamp side effects bound to each target state.
package statemachine

import (
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/devicetrade-backend/pkg/errors"
)

// Hook runs after a transition into its target state is accepted.
type Hook func(at time.Time)

// Definition describes the adjacency table of one entity lifecycle.
type Definition[S ~string] struct {
	Name        string
	Transitions map[S][]S
	Terminal    []S
}

// Machine is an immutable, validated transition table.
type Machine[S ~string] struct {
	name     string
	edges    map[S]map[S]struct{}
	order    map[S][]S
	terminal map[S]struct{}
}

// TransitionDetails is attached to INVALID_STATE errors.
type TransitionDetails struct {
	Entity string `json:"entity"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// New builds a Machine, panicking on a table that marks a state terminal yet lists exits for it.
func New[S ~string](def Definition[S]) *Machine[S] {
	m := &Machine[S]{
		name:     def.Name,
		edges:    make(map[S]map[S]struct{}, len(def.Transitions)),
		order:    make(map[S][]S, len(def.Transitions)),
		terminal: make(map[S]struct{}, len(def.Terminal)),
	}
	for _, s := range def.Terminal {
		m.terminal[s] = struct{}{}
	}
	for from, targets := range def.Transitions {
		if _, ok := m.terminal[from]; ok && len(targets) > 0 {
			panic(fmt.Sprintf("statemachine %s: terminal state %s has outgoing transitions", def.Name, from))
		}
		set := make(map[S]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		m.edges[from] = set
		m.order[from] = append([]S(nil), targets...)
	}
	return m
}

// Name returns the entity name used in error messages.
func (m *Machine[S]) Name() string {
	return m.name
}

// Can reports whether from -> to is listed in the table.
func (m *Machine[S]) Can(from, to S) bool {
	targets, ok := m.edges[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Allowed lists the states reachable from the given one.
func (m *Machine[S]) Allowed(from S) []S {
	return append([]S(nil), m.order[from]...)
}

// IsTerminal reports whether no transition may leave s.
func (m *Machine[S]) IsTerminal(s S) bool {
	if _, ok := m.terminal[s]; ok {
		return true
	}
	return len(m.edges[s]) == 0
}

// Validate returns an INVALID_STATE error naming both states when from -> to is not allowed.
func (m *Machine[S]) Validate(from, to S) error {
	if m.Can(from, to) {
		return nil
	}
	return pkgerrors.New(
		pkgerrors.CodeInvalidState,
		fmt.Sprintf("%s cannot transition from %s to %s", m.name, from, to),
	).WithDetails(TransitionDetails{Entity: m.name, From: string(from), To: string(to)})
}

// Hooks maps a target state to the side effects applied when entering it.
type Hooks[S ~string] map[S][]Hook

// On appends a hook for the target state and returns the receiver for chaining.
func (h Hooks[S]) On(to S, hook Hook) Hooks[S] {
	h[to] = append(h[to], hook)
	return h
}

// Apply validates from -> to and then runs the hooks registered for to.
func (m *Machine[S]) Apply(from, to S, at time.Time, hooks Hooks[S]) error {
	if err := m.Validate(from, to); err != nil {
		return err
	}
	for _, hook := range hooks[to] {
		hook(at)
	}
	return nil
}

// SetTime returns a hook that stores the transition time into dst.
func SetTime(dst **time.Time) Hook {
	return func(at time.Time) {
		t := at.UTC()
		*dst = &t
	}
}
