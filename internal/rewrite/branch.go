// Package rewrite holds the recursive core of assertlens: given a captured
// condition, it builds the failure-path program whose control flow mirrors
// short-circuit evaluation exactly. The program is expressed as a small
// branch IR that the library engine executes directly and the go/ast host
// adapter lowers to generated statements; both consume the same Build
// output, so the two modes cannot drift apart.
package rewrite

import (
	"fmt"

	"assertlens/internal/capture"
	"assertlens/internal/expr"
)

// Step is one node of the failure-path program.
type Step interface {
	step()
}

// Seq runs steps in order.
type Seq []Step

// Frag appends a literal fragment to the diagnostic.
type Frag string

// Value appends the cached value of one capture cell, rendered with the
// verb matching its declared kind.
type Value struct {
	Cell int
	Kind expr.ValueKind
}

// Truth branches at runtime on the cached truth value of one capture cell.
// The cell is always one that short-circuit rules guarantee was filled
// before the failure path runs.
type Truth struct {
	Cell int
	Then Step
	Else Step
}

func (Seq) step()   {}
func (Frag) step()  {}
func (Value) step() {}
func (Truth) step() {}

// Build walks the captured condition and emits its failure-path program.
//
// The branch taken at each logical node is driven solely by already-captured
// values, never by re-evaluating an operand:
//
//   - AND branches on the left operand's cached truth. Left false: only the
//     left side is rendered; the right operand was never evaluated and is
//     never referenced. Left true: the right side is rendered inside the
//     continuation wrapper "(...) && (" ... ")".
//   - OR branches on the whole node's cached truth. True: the assertion did
//     not fail here, render nothing. False: both operands were evaluated
//     (the right is visited exactly when the left is false), render
//     "(" left ") || (" right ")".
//   - Recognized binary operators always render when reached: left operand,
//     glyph, right operand.
//   - Leaves render as one placeholder.
//
// Nested content is always parenthesized by its wrapper; precedence in the
// rendered text is resolved by over-parenthesizing, consistently.
func Build(c *capture.Captured) Step {
	return build(c, c.Root())
}

func build(c *capture.Captured, n *expr.Node) Step {
	switch expr.Classify(n) {
	case expr.ClassAnd:
		return Truth{
			Cell: cellOf(c, n.Left()),
			Then: Seq{Frag("(...) && ("), build(c, n.Right()), Frag(")")},
			Else: build(c, n.Left()),
		}

	case expr.ClassOr:
		return Truth{
			Cell: cellOf(c, n),
			Then: Seq{},
			Else: Seq{
				Frag("("), build(c, n.Left()),
				Frag(") || ("), build(c, n.Right()),
				Frag(")"),
			},
		}

	case expr.ClassBinary:
		return Seq{
			build(c, n.Left()),
			Frag(" " + expr.Glyph(n.Op()) + " "),
			build(c, n.Right()),
		}

	default:
		return Value{Cell: cellOf(c, n), Kind: n.ValueKind()}
	}
}

func cellOf(c *capture.Captured, n *expr.Node) int {
	id, ok := c.ID(n)
	if !ok {
		panic(fmt.Sprintf("assertlens: %s node has no capture cell", n.Kind()))
	}
	return id
}
