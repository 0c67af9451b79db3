// Package expr defines the immutable expression tree that the assertlens
// engine instruments. Conditions are rebuilt bottom-up into this vocabulary
// by a host adapter (see internal/goast) or constructed directly by library
// callers; nodes are never mutated after construction, so a tree can be
// walked by the capture, transform, and render passes without aliasing
// concerns.
package expr

import "fmt"

// Kind discriminates the node variants.
type Kind int

const (
	KindLeaf    Kind = iota // opaque value-producing unit
	KindCompare             // ==, !=, <, <=, >, >=
	KindArith               // +, -, *, /, %
	KindAnd                 // short-circuit logical AND
	KindOr                  // short-circuit logical OR
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindCompare:
		return "compare"
	case KindArith:
		return "arith"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Op identifies a recognized operator.
type Op int

const (
	OpNone Op = iota
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
)

// ValueKind is the declared runtime kind of a leaf. It selects both the
// capture slot and the format verb used when the leaf is rendered.
type ValueKind int

const (
	ValueInt ValueKind = iota
	ValueUint
	ValueFloat
	ValueBool
	ValueString
)

// Verb returns the fmt verb matching the value kind.
func (k ValueKind) Verb() string {
	switch k {
	case ValueUint, ValueInt:
		return "%d"
	case ValueFloat:
		return "%g"
	case ValueBool:
		return "%t"
	case ValueString:
		return "%q"
	}
	return "%v"
}

func (k ValueKind) String() string {
	switch k {
	case ValueInt:
		return "int"
	case ValueUint:
		return "uint"
	case ValueFloat:
		return "float"
	case ValueBool:
		return "bool"
	case ValueString:
		return "string"
	}
	return fmt.Sprintf("valuekind(%d)", int(k))
}

// Value is one captured leaf result. Only the slot matching Kind is valid.
type Value struct {
	Kind  ValueKind
	Int   int64
	Uint  uint64
	Float float64
	Bool  bool
	Str   string
}

// IntValue wraps an int64.
func IntValue(v int64) Value { return Value{Kind: ValueInt, Int: v} }

// UintValue wraps a uint64.
func UintValue(v uint64) Value { return Value{Kind: ValueUint, Uint: v} }

// FloatValue wraps a float64.
func FloatValue(v float64) Value { return Value{Kind: ValueFloat, Float: v} }

// BoolValue wraps a bool.
func BoolValue(v bool) Value { return Value{Kind: ValueBool, Bool: v} }

// StringValue wraps a string.
func StringValue(v string) Value { return Value{Kind: ValueString, Str: v} }

// Any returns the value as an interface suitable for a fmt argument list.
func (v Value) Any() any {
	switch v.Kind {
	case ValueInt:
		return v.Int
	case ValueUint:
		return v.Uint
	case ValueFloat:
		return v.Float
	case ValueBool:
		return v.Bool
	case ValueString:
		return v.Str
	}
	return nil
}

// Thunk produces a leaf's runtime value. In library mode every leaf carries
// one; in host-adapter mode leaves carry source text only and the thunk is
// nil (evaluation happens in the instrumented program, not here).
type Thunk func() Value

// Node is one immutable expression node. The zero value is not a valid node;
// use the constructors.
type Node struct {
	kind  Kind
	op    Op
	left  *Node
	right *Node

	// leaf fields
	source    string
	valueKind ValueKind
	thunk     Thunk
}

// Leaf builds an opaque value-producing node. source is the display text
// used when reconstructing the expression for humans (scan listings, error
// messages); it is never re-parsed.
func Leaf(source string, vk ValueKind, thunk Thunk) *Node {
	return &Node{kind: KindLeaf, source: source, valueKind: vk, thunk: thunk}
}

// Compare builds a comparison node. op must be one of OpEq..OpGe.
func Compare(op Op, left, right *Node) *Node {
	return &Node{kind: KindCompare, op: op, left: left, right: right}
}

// Arith builds an arithmetic node. op must be one of OpAdd..OpMod.
func Arith(op Op, left, right *Node) *Node {
	return &Node{kind: KindArith, op: op, left: left, right: right}
}

// And builds a short-circuit logical AND node.
func And(left, right *Node) *Node {
	return &Node{kind: KindAnd, op: OpAnd, left: left, right: right}
}

// Or builds a short-circuit logical OR node.
func Or(left, right *Node) *Node {
	return &Node{kind: KindOr, op: OpOr, left: left, right: right}
}

// Kind returns the node variant.
func (n *Node) Kind() Kind { return n.kind }

// Op returns the node operator (OpNone for leaves).
func (n *Node) Op() Op { return n.op }

// Left returns the left operand (nil for leaves).
func (n *Node) Left() *Node { return n.left }

// Right returns the right operand (nil for leaves).
func (n *Node) Right() *Node { return n.right }

// Source returns a leaf's display text.
func (n *Node) Source() string { return n.source }

// ValueKind returns a leaf's declared value kind.
func (n *Node) ValueKind() ValueKind { return n.valueKind }

// HasThunk reports whether a leaf can be evaluated in library mode.
func (n *Node) HasThunk() bool { return n.thunk != nil }

// EvalLeaf runs a leaf's thunk. Callers must route this through a capture
// cell; the engine never calls it twice for one check.
func (n *Node) EvalLeaf() Value { return n.thunk() }

// String reconstructs the expression in display form, fully parenthesized
// the same way rendered diagnostics are.
func (n *Node) String() string {
	switch n.kind {
	case KindLeaf:
		return n.source
	case KindAnd, KindOr:
		return fmt.Sprintf("(%s) %s (%s)", n.left, Glyph(n.op), n.right)
	default:
		return fmt.Sprintf("%s %s %s", n.left, Glyph(n.op), n.right)
	}
}

// Walk visits the tree in source (left-to-right, depth-first) order.
// Returning false from fn stops the walk.
func Walk(n *Node, fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if n.left != nil && !Walk(n.left, fn) {
		return false
	}
	if !fn(n) {
		return false
	}
	if n.right != nil && !Walk(n.right, fn) {
		return false
	}
	return true
}
