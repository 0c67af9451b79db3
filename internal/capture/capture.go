// Package capture implements the operand capture pass: every leaf and every
// truth-valued node of a condition gets a memoization cell, so the condition
// can be inspected twice (once for truth, once for failure rendering) while
// its effects occur exactly once. Cells are scoped to a single runtime check
// and are never shared across checks or goroutines.
package capture

import (
	"errors"
	"fmt"

	"assertlens/internal/expr"
)

// ErrCapture marks a condition that cannot be safely captured: mismatched
// operand kinds, a non-boolean operand under a logical operator, or an
// operator/kind pairing with no defined evaluation. These are transform-time
// failures; evaluation itself cannot fail once Wrap succeeds.
var ErrCapture = errors.New("capture failure")

// Cell is one per-operand storage slot: an explicit guard flag plus the
// cached value. The guard starts false and is cleared again by Reset before
// every evaluation; it is never assumed zero from surrounding memory.
type Cell struct {
	set bool
	val expr.Value
}

// Filled reports whether the operand was evaluated during the current check.
func (c *Cell) Filled() bool { return c.set }

// Value returns the cached value. Reading a cell whose operand short-circuit
// rules guarantee was not evaluated is a bug in the transformer, not a
// recoverable condition.
func (c *Cell) Value() expr.Value {
	if !c.set {
		panic("assertlens: read of unevaluated operand")
	}
	return c.val
}

// Truth returns the cached value as a truth flag.
func (c *Cell) Truth() bool { return c.Value().Bool }

func (c *Cell) fill(v expr.Value) {
	c.val = v
	c.set = true
}

// Captured is one condition after the capture pass: the original tree plus
// a cell bank, with one cell for every leaf and every truth-valued node.
// Arithmetic nodes carry no cell; rendering shows their leaves, never a
// recomputed intermediate.
type Captured struct {
	root  *expr.Node
	cells []Cell
	ids   map[*expr.Node]int
}

// Wrap applies the capture pass transitively to every node of root. It
// validates operand kinds bottom-up and fails with ErrCapture when the
// condition cannot be evaluated under the engine's value model; the original
// tree is left untouched either way.
func Wrap(root *expr.Node) (*Captured, error) {
	c := &Captured{root: root, ids: make(map[*expr.Node]int)}
	if _, err := c.plan(root); err != nil {
		return nil, err
	}
	c.cells = make([]Cell, len(c.ids))
	c.Reset()
	return c, nil
}

// plan validates the subtree and assigns cell slots in source order.
// It returns the subtree's result kind.
func (c *Captured) plan(n *expr.Node) (expr.ValueKind, error) {
	switch n.Kind() {
	case expr.KindLeaf:
		c.assign(n)
		return n.ValueKind(), nil

	case expr.KindArith:
		lk, err := c.plan(n.Left())
		if err != nil {
			return 0, err
		}
		rk, err := c.plan(n.Right())
		if err != nil {
			return 0, err
		}
		if lk != rk {
			return 0, fmt.Errorf("%w: %s operands have kinds %s and %s", ErrCapture, expr.Glyph(n.Op()), lk, rk)
		}
		if lk == expr.ValueBool ||
			(lk == expr.ValueString && n.Op() != expr.OpAdd) ||
			(lk == expr.ValueFloat && n.Op() == expr.OpMod) {
			return 0, fmt.Errorf("%w: operator %s undefined for %s operands", ErrCapture, expr.Glyph(n.Op()), lk)
		}
		return lk, nil

	case expr.KindCompare:
		lk, err := c.plan(n.Left())
		if err != nil {
			return 0, err
		}
		rk, err := c.plan(n.Right())
		if err != nil {
			return 0, err
		}
		if lk != rk {
			return 0, fmt.Errorf("%w: comparing %s against %s", ErrCapture, lk, rk)
		}
		if lk == expr.ValueBool && n.Op() != expr.OpEq && n.Op() != expr.OpNe {
			return 0, fmt.Errorf("%w: ordering comparison on bool operands", ErrCapture)
		}
		c.assign(n)
		return expr.ValueBool, nil

	case expr.KindAnd, expr.KindOr:
		lk, err := c.plan(n.Left())
		if err != nil {
			return 0, err
		}
		rk, err := c.plan(n.Right())
		if err != nil {
			return 0, err
		}
		if lk != expr.ValueBool || rk != expr.ValueBool {
			return 0, fmt.Errorf("%w: non-boolean operand under %s", ErrCapture, expr.Glyph(n.Op()))
		}
		c.assign(n)
		return expr.ValueBool, nil
	}
	return 0, fmt.Errorf("%w: unknown node kind %s", ErrCapture, n.Kind())
}

func (c *Captured) assign(n *expr.Node) {
	if _, ok := c.ids[n]; !ok {
		c.ids[n] = len(c.ids)
	}
}

// Root returns the captured condition.
func (c *Captured) Root() *expr.Node { return c.root }

// NumCells returns the size of the cell bank.
func (c *Captured) NumCells() int { return len(c.cells) }

// ID returns the cell slot assigned to a node. Arithmetic nodes have none.
func (c *Captured) ID(n *expr.Node) (int, bool) {
	id, ok := c.ids[n]
	return id, ok
}

// Cell returns the cell at slot id.
func (c *Captured) Cell(id int) *Cell { return &c.cells[id] }

// Reset explicitly clears every guard flag. Eval calls it first, so one
// Captured may serve repeated checks of the same condition; values from a
// previous check never leak into the next.
func (c *Captured) Reset() {
	for i := range c.cells {
		c.cells[i] = Cell{}
	}
}
