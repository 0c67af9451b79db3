package goast

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/printer"
	"go/token"
	"go/types"

	"assertlens/internal/capture"
	"assertlens/internal/expr"
)

// tokenOps maps Go binary operators onto the engine's operator table. Any
// operator outside this map leaves the whole subtree opaque: it becomes one
// leaf with one placeholder, the classifier's deliberate extensibility
// boundary.
var tokenOps = map[token.Token]struct {
	op   expr.Op
	kind expr.Kind
}{
	token.LAND: {expr.OpAnd, expr.KindAnd},
	token.LOR:  {expr.OpOr, expr.KindOr},
	token.EQL:  {expr.OpEq, expr.KindCompare},
	token.NEQ:  {expr.OpNe, expr.KindCompare},
	token.LSS:  {expr.OpLt, expr.KindCompare},
	token.LEQ:  {expr.OpLe, expr.KindCompare},
	token.GTR:  {expr.OpGt, expr.KindCompare},
	token.GEQ:  {expr.OpGe, expr.KindCompare},
	token.ADD:  {expr.OpAdd, expr.KindArith},
	token.SUB:  {expr.OpSub, expr.KindArith},
	token.MUL:  {expr.OpMul, expr.KindArith},
	token.QUO:  {expr.OpDiv, expr.KindArith},
	token.REM:  {expr.OpMod, expr.KindArith},
}

// Binding is one condition translated into the engine's vocabulary, with
// each leaf mapped back to the original Go sub-expression it stands for.
type Binding struct {
	Root      *expr.Node
	leaves    map[*expr.Node]ast.Expr
	leafTypes map[*expr.Node]types.Type
}

// LeafExpr returns the original Go expression behind a leaf.
func (b *Binding) LeafExpr(n *expr.Node) ast.Expr { return b.leaves[n] }

// LeafType returns a leaf's resolved static type, or nil when binding fell
// back to heuristics for it.
func (b *Binding) LeafType(n *expr.Node) types.Type { return b.leafTypes[n] }

type binder struct {
	fset      *token.FileSet
	info      *types.Info // nil when typed binding is off or failed
	leaves    map[*expr.Node]ast.Expr
	leafTypes map[*expr.Node]types.Type
}

// Bind converts a condition expression into an engine tree. It fails with
// capture.ErrCapture when a leaf cannot be wrapped under the engine's value
// model; the failure is occurrence-local and the original code stays as is.
func Bind(fset *token.FileSet, cond ast.Expr, info *types.Info) (*Binding, error) {
	b := &binder{
		fset:      fset,
		info:      info,
		leaves:    make(map[*expr.Node]ast.Expr),
		leafTypes: make(map[*expr.Node]types.Type),
	}
	root, err := b.bind(cond, true)
	if err != nil {
		return nil, err
	}
	return &Binding{Root: root, leaves: b.leaves, leafTypes: b.leafTypes}, nil
}

// bind translates one expression. boolCtx reports whether the surrounding
// position requires a truth value (operand of &&/||, or the condition root).
func (b *binder) bind(e ast.Expr, boolCtx bool) (*expr.Node, error) {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return b.bind(e.X, boolCtx)

	case *ast.BinaryExpr:
		m, ok := tokenOps[e.Op]
		if !ok {
			return b.bindLeaf(e, boolCtx)
		}
		switch m.kind {
		case expr.KindAnd, expr.KindOr:
			left, err := b.bind(e.X, true)
			if err != nil {
				return nil, err
			}
			right, err := b.bind(e.Y, true)
			if err != nil {
				return nil, err
			}
			if m.kind == expr.KindAnd {
				return expr.And(left, right), nil
			}
			return expr.Or(left, right), nil

		case expr.KindCompare:
			left, err := b.bind(e.X, false)
			if err != nil {
				return nil, err
			}
			right, err := b.bind(e.Y, false)
			if err != nil {
				return nil, err
			}
			left, right = b.reconcileLeafKinds(left, right)
			return expr.Compare(m.op, left, right), nil

		default:
			left, err := b.bind(e.X, false)
			if err != nil {
				return nil, err
			}
			right, err := b.bind(e.Y, false)
			if err != nil {
				return nil, err
			}
			left, right = b.reconcileLeafKinds(left, right)
			return expr.Arith(m.op, left, right), nil
		}

	default:
		return b.bindLeaf(e, boolCtx)
	}
}

// bindLeaf wraps an opaque sub-expression as a single value-producing unit.
func (b *binder) bindLeaf(e ast.Expr, boolCtx bool) (*expr.Node, error) {
	if err := leafSafe(e); err != nil {
		return nil, err
	}
	kind, err := b.leafKind(e, boolCtx)
	if err != nil {
		return nil, err
	}
	n := expr.Leaf(exprString(b.fset, e), kind, nil)
	b.leaves[n] = e
	if b.info != nil {
		if tv, ok := b.info.Types[e]; ok && tv.Type != nil {
			b.leafTypes[n] = types.Default(tv.Type)
		}
	}
	return n, nil
}

// leafSafe rejects sub-expressions that cannot be routed through a capture
// cell without changing meaning.
func leafSafe(e ast.Expr) error {
	var bad error
	ast.Inspect(e, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.FuncLit:
			bad = fmt.Errorf("%w: function literal operand", capture.ErrCapture)
			return false
		case *ast.CompositeLit:
			bad = fmt.Errorf("%w: composite literal operand", capture.ErrCapture)
			return false
		}
		return true
	})
	return bad
}

// leafKind resolves the leaf's value kind: precise when type information is
// available; otherwise literal heuristics, then the documented
// integer-ordinal default.
func (b *binder) leafKind(e ast.Expr, boolCtx bool) (expr.ValueKind, error) {
	if b.info != nil {
		if tv, ok := b.info.Types[e]; ok && tv.Type != nil {
			return kindOfType(tv.Type, e)
		}
	}

	switch e := e.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case token.INT, token.CHAR:
			return expr.ValueInt, nil
		case token.FLOAT:
			return expr.ValueFloat, nil
		case token.STRING:
			return expr.ValueString, nil
		}
	case *ast.Ident:
		if e.Name == "true" || e.Name == "false" {
			return expr.ValueBool, nil
		}
	}
	if boolCtx {
		return expr.ValueBool, nil
	}
	return expr.ValueInt, nil
}

// kindOfType maps a resolved Go type to a capture kind. Non-ordinal types
// cannot be captured: the occurrence is skipped, never mis-rendered.
func kindOfType(t types.Type, e ast.Expr) (expr.ValueKind, error) {
	basic, ok := t.Underlying().(*types.Basic)
	if !ok {
		return 0, fmt.Errorf("%w: operand type %s is not ordinally printable", capture.ErrCapture, t)
	}
	info := basic.Info()
	switch {
	case info&types.IsBoolean != 0:
		return expr.ValueBool, nil
	case info&types.IsUnsigned != 0:
		return expr.ValueUint, nil
	case info&types.IsInteger != 0:
		return expr.ValueInt, nil
	case info&types.IsFloat != 0:
		return expr.ValueFloat, nil
	case info&types.IsString != 0:
		return expr.ValueString, nil
	}
	return 0, fmt.Errorf("%w: operand type %s is not ordinally printable", capture.ErrCapture, t)
}

// reconcileLeafKinds aligns a heuristically-defaulted leaf with a sibling
// whose kind came from a literal, so `s == "x"` binds both sides as strings
// even without type information. Only direct leaf operands are adjusted;
// typed binding makes this moot. Nodes are immutable, so an adjusted leaf
// is rebuilt and returned in place of the old one.
func (b *binder) reconcileLeafKinds(left, right *expr.Node) (*expr.Node, *expr.Node) {
	if b.info != nil || left.Kind() != expr.KindLeaf || right.Kind() != expr.KindLeaf {
		return left, right
	}
	lLit := isLiteralish(b.leaves[left])
	rLit := isLiteralish(b.leaves[right])
	switch {
	case lLit && !rLit && right.ValueKind() != left.ValueKind():
		right = b.retype(right, left.ValueKind())
	case rLit && !lLit && left.ValueKind() != right.ValueKind():
		left = b.retype(left, right.ValueKind())
	}
	return left, right
}

// retype rebuilds a leaf with a different kind, carrying over its source
// mapping.
func (b *binder) retype(n *expr.Node, kind expr.ValueKind) *expr.Node {
	e := b.leaves[n]
	delete(b.leaves, n)
	repl := expr.Leaf(n.Source(), kind, nil)
	b.leaves[repl] = e
	if t, ok := b.leafTypes[n]; ok {
		delete(b.leafTypes, n)
		b.leafTypes[repl] = t
	}
	return repl
}

func isLiteralish(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.BasicLit:
		return true
	case *ast.Ident:
		return e.Name == "true" || e.Name == "false"
	}
	return false
}

// exprString renders a sub-expression back to display text.
func exprString(fset *token.FileSet, e ast.Expr) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, e); err != nil {
		return fmt.Sprintf("<expr@%v>", fset.Position(e.Pos()))
	}
	return buf.String()
}
