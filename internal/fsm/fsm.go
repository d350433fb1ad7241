// Package fsm validates lifecycle transitions against static tables.
package fsm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidTransition is matched by every *InvalidTransitionError.
var ErrInvalidTransition = errors.New("invalid state transition")

// InvalidTransitionError reports a rejected transition together with the
// targets that would have been accepted from the current status.
type InvalidTransitionError struct {
	Entity  string
	Current string
	Target  string
	Valid   []string
}

func (e *InvalidTransitionError) Error() string {
	valid := "none"
	if len(e.Valid) > 0 {
		valid = strings.Join(e.Valid, ", ")
	}
	return fmt.Sprintf("invalid %s status transition %s -> %s (allowed: %s)", e.Entity, e.Current, e.Target, valid)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Table maps a status to the statuses reachable from it in one step.
// Statuses with no entry or an empty entry are terminal.
type Table[S ~string] map[S][]S

// Machine is an immutable transition validator for one entity kind.
type Machine[S ~string] struct {
	entity  string
	table   map[S]map[S]struct{}
	allowed map[S][]string
	known   map[S]struct{}
}

// New builds a Machine from a table. Every status named as a source or a
// target becomes a known status. A status listed as its own target is
// dropped so self-transitions are always rejected.
func New[S ~string](entity string, t Table[S]) Machine[S] {
	m := Machine[S]{
		entity:  entity,
		table:   make(map[S]map[S]struct{}, len(t)),
		allowed: make(map[S][]string, len(t)),
		known:   make(map[S]struct{}),
	}
	for from, targets := range t {
		m.known[from] = struct{}{}
		set := make(map[S]struct{}, len(targets))
		names := make([]string, 0, len(targets))
		for _, to := range targets {
			m.known[to] = struct{}{}
			if to == from {
				continue
			}
			if _, dup := set[to]; dup {
				continue
			}
			set[to] = struct{}{}
			names = append(names, string(to))
		}
		sort.Strings(names)
		m.table[from] = set
		m.allowed[from] = names
	}
	return m
}

// Entity returns the entity kind this machine validates.
func (m Machine[S]) Entity() string { return m.entity }

// Transition checks that target is reachable from current in one step and
// returns current as the previous status. It has no side effects; the
// caller applies target.
func (m Machine[S]) Transition(current, target S) (S, error) {
	if _, ok := m.known[target]; ok {
		if _, ok := m.table[current][target]; ok {
			return current, nil
		}
	}
	return current, &InvalidTransitionError{
		Entity:  m.entity,
		Current: string(current),
		Target:  string(target),
		Valid:   m.Allowed(current),
	}
}

// Allowed returns the sorted targets reachable from current. The result is
// a fresh slice and never nil.
func (m Machine[S]) Allowed(current S) []string {
	src := m.allowed[current]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// CanTransition reports whether Transition would accept the pair.
func (m Machine[S]) CanTransition(current, target S) bool {
	_, err := m.Transition(current, target)
	return err == nil
}

// Terminal reports whether no transition leaves s.
func (m Machine[S]) Terminal(s S) bool {
	return len(m.table[s]) == 0
}

// Known reports whether s appears anywhere in the table.
func (m Machine[S]) Known(s S) bool {
	_, ok := m.known[s]
	return ok
}

// Statuses lists every known status in sorted order.
func (m Machine[S]) Statuses() []S {
	out := make([]S, 0, len(m.known))
	for s := range m.known {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
