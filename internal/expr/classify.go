package expr

// Class is the classifier's verdict for one node. The transformer branches
// on this, never on Kind directly, so extending the operator table does not
// touch the recursion.
type Class int

const (
	ClassAnd Class = iota
	ClassOr
	ClassBinary // recognized non-logical binary operator
	ClassLeaf
)

func (c Class) String() string {
	switch c {
	case ClassAnd:
		return "and"
	case ClassOr:
		return "or"
	case ClassBinary:
		return "binary"
	case ClassLeaf:
		return "leaf"
	}
	return "class(?)"
}

// opGlyphs is the fixed operator table. Operators absent from it are never
// decomposed: the whole node is treated as a leaf and rendered with one
// placeholder. Extending support for a new operator means adding a row here
// and teaching the host adapter to bind it.
var opGlyphs = map[Op]string{
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
	OpAnd: "&&",
	OpOr:  "||",
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpMod: "%",
}

// Glyph returns the display text for a recognized operator, or "" if the
// operator is not in the table.
func Glyph(op Op) string { return opGlyphs[op] }

// Recognized reports whether op has a table entry.
func Recognized(op Op) bool {
	_, ok := opGlyphs[op]
	return ok
}

// Classify categorizes a node for the transformer. Leaves, and any binary
// node whose operator fell out of the table during binding, classify as
// ClassLeaf.
func Classify(n *Node) Class {
	switch n.Kind() {
	case KindAnd:
		return ClassAnd
	case KindOr:
		return ClassOr
	case KindCompare, KindArith:
		if Recognized(n.Op()) {
			return ClassBinary
		}
		return ClassLeaf
	default:
		return ClassLeaf
	}
}

// Boolean reports whether the node produces a truth value: logical and
// comparison nodes always do; a leaf does when its declared kind is bool.
func Boolean(n *Node) bool {
	switch n.Kind() {
	case KindAnd, KindOr, KindCompare:
		return true
	case KindLeaf:
		return n.ValueKind() == ValueBool
	}
	return false
}
