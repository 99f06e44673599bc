// Package fsm provides a small guarded state machine used by the session
// controllers.
package fsm

// Machine tracks a current state and only allows transitions listed in its
// table. It is not safe for concurrent use; callers guard it with their own
// mutex.
type Machine[S comparable] struct {
	current     S
	transitions map[S][]S
	onEnter     map[S]func()
	onExit      map[S]func()
}

// New creates a machine in state initial with the given transition table.
func New[S comparable](initial S, transitions map[S][]S) *Machine[S] {
	return &Machine[S]{
		current:     initial,
		transitions: transitions,
		onEnter:     make(map[S]func()),
		onExit:      make(map[S]func()),
	}
}

// Can reports whether a transition to the given state is allowed.
func (m *Machine[S]) Can(to S) bool {
	for _, s := range m.transitions[m.current] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves to the given state if allowed and runs the exit and
// enter hooks.
func (m *Machine[S]) Transition(to S) bool {
	if !m.Can(to) {
		return false
	}

	if fn := m.onExit[m.current]; fn != nil {
		fn()
	}
	m.current = to
	if fn := m.onEnter[to]; fn != nil {
		fn()
	}
	return true
}

// Reset forces the machine into state s without consulting the table. Hooks
// for s still run. Used for unconditional stops.
func (m *Machine[S]) Reset(s S) {
	if m.current == s {
		return
	}
	if fn := m.onExit[m.current]; fn != nil {
		fn()
	}
	m.current = s
	if fn := m.onEnter[s]; fn != nil {
		fn()
	}
}

// Current returns the current state.
func (m *Machine[S]) Current() S {
	return m.current
}

// OnEnter registers a callback for entering a state.
func (m *Machine[S]) OnEnter(state S, fn func()) {
	m.onEnter[state] = fn
}

// OnExit registers a callback for exiting a state.
func (m *Machine[S]) OnExit(state S, fn func()) {
	m.onExit[state] = fn
}
