package capture

import (
	"fmt"

	"assertlens/internal/expr"
)

// Eval evaluates the captured condition once, with exact short-circuit
// semantics, filling cells as operands are reached. Operands behind an
// untaken short-circuit branch keep an empty cell; nothing later may read
// them. Requires every leaf to carry a thunk (library mode).
func (c *Captured) Eval() bool {
	c.Reset()
	return c.evalBool(c.root)
}

// MissingThunks returns the display text of leaves that cannot be evaluated
// in library mode. Engines check this before the first Eval so the failure
// stays at transform time.
func (c *Captured) MissingThunks() []string {
	var missing []string
	expr.Walk(c.root, func(n *expr.Node) bool {
		if n.Kind() == expr.KindLeaf && !n.HasThunk() {
			missing = append(missing, n.Source())
		}
		return true
	})
	return missing
}

func (c *Captured) evalBool(n *expr.Node) bool {
	switch n.Kind() {
	case expr.KindAnd:
		res := false
		if c.evalBool(n.Left()) {
			res = c.evalBool(n.Right())
		}
		c.cellOf(n).fill(expr.BoolValue(res))
		return res

	case expr.KindOr:
		res := true
		if !c.evalBool(n.Left()) {
			res = c.evalBool(n.Right())
		}
		c.cellOf(n).fill(expr.BoolValue(res))
		return res

	case expr.KindCompare:
		l := c.evalValue(n.Left())
		r := c.evalValue(n.Right())
		res := compare(n.Op(), l, r)
		c.cellOf(n).fill(expr.BoolValue(res))
		return res

	default: // boolean leaf
		return c.evalValue(n).Bool
	}
}

func (c *Captured) evalValue(n *expr.Node) expr.Value {
	switch n.Kind() {
	case expr.KindLeaf:
		v := n.EvalLeaf()
		c.cellOf(n).fill(v)
		return v
	case expr.KindArith:
		l := c.evalValue(n.Left())
		r := c.evalValue(n.Right())
		return arith(n.Op(), l, r)
	default:
		// nested boolean value (e.g. (a && b) == true is bound as a
		// comparison of bool operands, which Wrap rejects; logical nodes
		// only appear in boolean position)
		return expr.BoolValue(c.evalBool(n))
	}
}

func (c *Captured) cellOf(n *expr.Node) *Cell {
	id, ok := c.ids[n]
	if !ok {
		panic(fmt.Sprintf("assertlens: no capture cell for %s node", n.Kind()))
	}
	return &c.cells[id]
}

// compare applies a comparison operator to two values of the same kind.
// Wrap has already validated the pairing.
func compare(op expr.Op, l, r expr.Value) bool {
	switch l.Kind {
	case expr.ValueInt:
		return cmpOrdered(op, l.Int, r.Int)
	case expr.ValueUint:
		return cmpOrdered(op, l.Uint, r.Uint)
	case expr.ValueFloat:
		return cmpOrdered(op, l.Float, r.Float)
	case expr.ValueString:
		return cmpOrdered(op, l.Str, r.Str)
	case expr.ValueBool:
		if op == expr.OpNe {
			return l.Bool != r.Bool
		}
		return l.Bool == r.Bool
	}
	return false
}

func cmpOrdered[T int64 | uint64 | float64 | string](op expr.Op, l, r T) bool {
	switch op {
	case expr.OpEq:
		return l == r
	case expr.OpNe:
		return l != r
	case expr.OpLt:
		return l < r
	case expr.OpLe:
		return l <= r
	case expr.OpGt:
		return l > r
	case expr.OpGe:
		return l >= r
	}
	return false
}

// arith applies an arithmetic operator to two values of the same kind.
// Division by zero panics exactly as it would in the uninstrumented
// condition; instrumentation does not mask it.
func arith(op expr.Op, l, r expr.Value) expr.Value {
	switch l.Kind {
	case expr.ValueInt:
		return expr.IntValue(arithInt(op, l.Int, r.Int))
	case expr.ValueUint:
		return expr.UintValue(arithInt(op, l.Uint, r.Uint))
	case expr.ValueFloat:
		switch op {
		case expr.OpAdd:
			return expr.FloatValue(l.Float + r.Float)
		case expr.OpSub:
			return expr.FloatValue(l.Float - r.Float)
		case expr.OpMul:
			return expr.FloatValue(l.Float * r.Float)
		case expr.OpDiv:
			return expr.FloatValue(l.Float / r.Float)
		}
	case expr.ValueString:
		// Wrap only admits + for strings.
		return expr.StringValue(l.Str + r.Str)
	}
	panic(fmt.Sprintf("assertlens: operator %s undefined for %s", expr.Glyph(op), l.Kind))
}

func arithInt[T int64 | uint64](op expr.Op, l, r T) T {
	switch op {
	case expr.OpAdd:
		return l + r
	case expr.OpSub:
		return l - r
	case expr.OpMul:
		return l * r
	case expr.OpDiv:
		return l / r
	case expr.OpMod:
		return l % r
	}
	panic("assertlens: unrecognized arithmetic operator")
}
