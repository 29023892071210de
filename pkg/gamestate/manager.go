// Package gamestate owns the canonical mutable variable store for one play
// session. A Manager applies effects with range clamping, fires change
// listeners synchronously, and produces snapshots for the external session
// store.
//
// A Manager is not safe for concurrent mutation. The owning session must
// serialize calls, typically by allowing one in-flight turn at a time.
package gamestate

import (
	"github.com/fablekit/fablekit/pkg/world"
)

// Listener observes one applied change. Listeners run synchronously on the
// mutating goroutine and must not mutate the manager from the callback;
// there is no re-entrancy guard.
type Listener func(variableID string, oldValue, newValue any)

// Manager wraps one GameState and the world definition it belongs to.
type Manager struct {
	def       *world.WorldDefinition
	state     *world.GameState
	listeners map[int]Listener
	nextID    int
}

// NewManager creates a manager with a fresh state built from the world's
// variable defaults.
func NewManager(def *world.WorldDefinition) *Manager {
	return &Manager{
		def:       def,
		state:     world.NewGameState(def),
		listeners: map[int]Listener{},
	}
}

// NewManagerWithState resumes a manager from a persisted snapshot.
func NewManagerWithState(def *world.WorldDefinition, state *world.GameState) *Manager {
	m := NewManager(def)
	if state != nil {
		m.state = state.Clone()
	}
	return m
}

// State exposes the live state for read paths (matching, assembly, rules).
// Callers must not mutate it directly.
func (m *Manager) State() *world.GameState {
	return m.state
}

// Get returns the current value of a variable.
func (m *Manager) Get(variableID string) (any, bool) {
	v, ok := m.state.Variables[variableID]
	return v, ok
}

// Set assigns a value through the effect pipeline, so range clamping and
// listener notification behave exactly as for model-driven effects.
func (m *Manager) Set(variableID string, value any) {
	m.ApplyEffects([]world.Effect{{
		VariableID: variableID,
		Operation:  world.OpSet,
		Value:      value,
	}})
}

// ApplyEffects applies effects in the order supplied. Writes to unknown
// variable ids are ignored; type-mismatched operations are no-ops and fire
// no listener. Numeric results are clamped into the variable's [min, max].
func (m *Manager) ApplyEffects(effects []world.Effect) {
	for _, eff := range effects {
		v := m.def.Variable(eff.VariableID)
		if v == nil {
			continue
		}
		old := m.state.Variables[eff.VariableID]
		next, changed := world.ApplyEffect(old, v, eff)
		if !changed {
			continue
		}
		m.state.Variables[eff.VariableID] = next
		for _, l := range m.listeners {
			l(eff.VariableID, old, next)
		}
	}
}

// Subscribe registers a change listener and returns its removal func.
func (m *Manager) Subscribe(l Listener) (unsubscribe func()) {
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return func() { delete(m.listeners, id) }
}

// IncrementTurn advances the per-session turn counter.
func (m *Manager) IncrementTurn() {
	m.state.TurnCount++
}

// TurnCount returns the current turn counter.
func (m *Manager) TurnCount() int {
	return m.state.TurnCount
}

// SetMetadata stores a free-form metadata value (timestamps, last messages)
// consumed by macros and the session layer.
func (m *Manager) SetMetadata(key string, value any) {
	m.state.Metadata[key] = value
}

// Metadata returns a free-form metadata value.
func (m *Manager) Metadata(key string) (any, bool) {
	v, ok := m.state.Metadata[key]
	return v, ok
}

// Snapshot returns a copy of the state for persistence round-trips.
func (m *Manager) Snapshot() *world.GameState {
	return m.state.Clone()
}

// LoadSnapshot replaces the live state with a copy of the snapshot.
// No listeners fire; this is restoration, not mutation.
func (m *Manager) LoadSnapshot(s *world.GameState) {
	if s == nil {
		return
	}
	m.state = s.Clone()
}

// Restart rebuilds the state from variable defaults, discarding the session.
// This is the only path that reconstructs state from the definition after
// creation.
func (m *Manager) Restart() {
	m.state = world.NewGameState(m.def)
}
