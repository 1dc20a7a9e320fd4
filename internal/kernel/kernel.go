// Package kernel defines the contract shared by the pure computational
// algorithms that nodes orchestrate.
//
// A kernel is a function of (inputs, params, state) that returns the next
// state and the outputs. It performs no I/O, knows nothing about the graph and
// keeps no hidden state: randomness, if any, lives in the state value and is
// threaded through explicitly. Identical arguments always produce identical
// results.
//
// State values must be plain data (numbers, arrays, structs of those) so that
// assigning them copies them. Cell holds a node's committed state next to the
// tentative state computed during a timestep.
package kernel

// Func is the kernel signature.
type Func[I, P, S, O any] func(in I, params P, state S) (S, O, error)

// Cell holds a committed state and, while a timestep is in progress, the
// tentative state computed from it.
type Cell[S any] struct {
	committed S
	pending   S
	staged    bool
}

// NewCell returns a cell whose committed state is initial.
func NewCell[S any](initial S) *Cell[S] {
	return &Cell[S]{committed: initial}
}

// State returns the committed state.
func (c *Cell[S]) State() S {
	return c.committed
}

// Stage records the tentative next state. Staging twice in one timestep
// replaces the earlier tentative state.
func (c *Cell[S]) Stage(next S) {
	c.pending = next
	c.staged = true
}

// Staged reports whether a tentative state is waiting for Commit.
func (c *Cell[S]) Staged() bool {
	return c.staged
}

// Commit promotes the tentative state. Without a staged state it does nothing.
func (c *Cell[S]) Commit() {
	if !c.staged {
		return
	}
	c.committed = c.pending
	c.Discard()
}

// Discard drops the tentative state.
func (c *Cell[S]) Discard() {
	var zero S
	c.pending = zero
	c.staged = false
}

// Run calls fn with the committed state and stages the result. The committed
// state is untouched until Commit.
func Run[I, P, S, O any](c *Cell[S], fn func(I, P, S) (S, O, error), in I, params P) (O, error) {
	next, out, err := fn(in, params, c.State())
	if err != nil {
		var zero O
		return zero, err
	}
	c.Stage(next)
	return out, nil
}
