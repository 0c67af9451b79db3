package goast

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"strings"

	"assertlens/internal/capture"
	"assertlens/internal/config"
	"assertlens/internal/expr"
	"assertlens/internal/rewrite"
)

// RuntimeImportPath is the support package every instrumented file imports.
const RuntimeImportPath = "assertlens/pkg/assertrt"

const runtimePkg = "assertrt"

// Generated identifiers. Prefixed to stay out of the way of user code; each
// replacement block opens its own scope, so sites never collide.
const (
	cellsVar = "__alc"
	recVar   = "__alr"
)

var opTokens = map[expr.Op]token.Token{
	expr.OpEq:  token.EQL,
	expr.OpNe:  token.NEQ,
	expr.OpLt:  token.LSS,
	expr.OpLe:  token.LEQ,
	expr.OpGt:  token.GTR,
	expr.OpGe:  token.GEQ,
	expr.OpAnd: token.LAND,
	expr.OpOr:  token.LOR,
	expr.OpAdd: token.ADD,
	expr.OpSub: token.SUB,
	expr.OpMul: token.MUL,
	expr.OpDiv: token.QUO,
	expr.OpMod: token.REM,
}

type lowerer struct {
	binding *Binding
	cap     *capture.Captured
	cfg     *config.Config
}

// lowerSite produces the replacement statement for one assertion site: a
// block holding the explicitly initialized cell bank and the instrumented
// conditional whose failure branch carries the lowered diagnostic program.
func lowerSite(site Site, binding *Binding, cap *capture.Captured, program rewrite.Step, cfg *config.Config) ast.Stmt {
	lw := &lowerer{binding: binding, cap: cap, cfg: cfg}

	cells := &ast.AssignStmt{
		Lhs: []ast.Expr{ast.NewIdent(cellsVar)},
		Tok: token.DEFINE,
		Rhs: []ast.Expr{
			callExpr(sel(runtimePkg, "NewCheck"), intLit(cap.NumCells())),
		},
	}

	failure := []ast.Stmt{
		&ast.AssignStmt{
			Lhs: []ast.Expr{ast.NewIdent(recVar)},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{
				callExpr(sel(runtimePkg, "NewRecorder"), intLit(cfg.RenderLimit)),
			},
		},
	}
	failure = append(failure, lw.lowerStep(program)...)
	failure = append(failure, exprStmt(callExpr(sel(recVar, "Emit"), lw.reportExpr())))
	if preserved := lw.preservedFailure(site); preserved != nil {
		failure = append(failure, preserved)
	}

	check := &ast.IfStmt{
		Cond: &ast.UnaryExpr{
			Op: token.NOT,
			X:  &ast.ParenExpr{X: lw.lowerCond(binding.Root)},
		},
		Body: &ast.BlockStmt{List: failure},
	}

	return &ast.BlockStmt{List: []ast.Stmt{cells, check}}
}

// lowerCond rewrites the condition so every leaf and every truth-valued
// node routes through its capture cell. The rewritten expression preserves
// source evaluation order and short-circuit behavior exactly: Put calls sit
// where the original sub-expressions sat, so an operand behind an untaken
// branch is never reached.
func (lw *lowerer) lowerCond(n *expr.Node) ast.Expr {
	switch n.Kind() {
	case expr.KindLeaf:
		orig := lw.binding.LeafExpr(n)
		switch n.ValueKind() {
		case expr.ValueUint:
			return lw.numericCapture("PutUint", "uint64", n, orig)
		case expr.ValueFloat:
			return lw.numericCapture("PutFloat", "float64", n, orig)
		case expr.ValueBool:
			return lw.putCall("PutBool", n, lw.carrierConv("bool", n, orig))
		case expr.ValueString:
			return lw.putCall("PutStr", n, lw.carrierConv("string", n, orig))
		default:
			return lw.numericCapture("PutInt", "int64", n, orig)
		}

	case expr.KindArith:
		return &ast.ParenExpr{X: &ast.BinaryExpr{
			X:  lw.lowerCond(n.Left()),
			Op: opTokens[n.Op()],
			Y:  lw.lowerCond(n.Right()),
		}}

	default: // compare, and, or: truth-valued, captured whole
		inner := &ast.BinaryExpr{
			X:  lw.lowerCond(n.Left()),
			Op: opTokens[n.Op()],
			Y:  lw.lowerCond(n.Right()),
		}
		return lw.putCall("PutBool", n, &ast.ParenExpr{X: inner})
	}
}

// numericCapture routes a numeric leaf through the wide carrier type of its
// cell and converts the pass-through result back to the operand's own type.
// The back-conversion keeps surrounding arithmetic in the source type, so
// narrow-integer wrapping and float rounding stay exactly as written. When
// the leaf's type never resolved the capture stays in the carrier type;
// lowerable has already rejected any site where that could change a result.
func (lw *lowerer) numericCapture(fn, carrier string, n *expr.Node, orig ast.Expr) ast.Expr {
	call := lw.putCall(fn, n, conv(carrier, orig))
	if name, ok := basicTypeName(lw.binding.LeafType(n)); ok && name != carrier {
		return conv(name, call)
	}
	return call
}

// carrierConv converts a bool or string leaf of a defined type down to the
// predeclared type its cell carries. Leaves already of the predeclared type
// pass through untouched.
func (lw *lowerer) carrierConv(carrier string, n *expr.Node, orig ast.Expr) ast.Expr {
	t := lw.binding.LeafType(n)
	if t == nil {
		return orig
	}
	if _, isBasic := t.(*types.Basic); isBasic {
		return orig
	}
	return conv(carrier, orig)
}

func basicTypeName(t types.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	basic, ok := t.Underlying().(*types.Basic)
	if !ok {
		return "", false
	}
	return basic.Name(), true
}

// lowerable reports whether a bound condition can be instrumented without
// changing its value. Numeric operands of +, -, *, / and % must carry a
// resolved static type: with the type unknown the capture would compute in
// the wide carrier type, where narrow-integer results stop wrapping. Such
// a site is skipped rather than widened.
func lowerable(b *Binding) error {
	return checkArithOperands(b.Root, false, b)
}

func checkArithOperands(n *expr.Node, underArith bool, b *Binding) error {
	if n == nil {
		return nil
	}
	if n.Kind() == expr.KindLeaf {
		if underArith && numericValueKind(n.ValueKind()) && b.LeafType(n) == nil {
			return fmt.Errorf("%w: arithmetic operand %q has unresolved type", capture.ErrCapture, n.Source())
		}
		return nil
	}
	under := underArith || n.Kind() == expr.KindArith
	if err := checkArithOperands(n.Left(), under, b); err != nil {
		return err
	}
	return checkArithOperands(n.Right(), under, b)
}

func numericValueKind(k expr.ValueKind) bool {
	switch k {
	case expr.ValueInt, expr.ValueUint, expr.ValueFloat:
		return true
	}
	return false
}

// lowerStep lowers the failure-path program to recorder calls and branches
// on cached truth values. An empty then-branch (an OR that held) inverts
// the test instead of emitting an empty block.
func (lw *lowerer) lowerStep(s rewrite.Step) []ast.Stmt {
	switch s := s.(type) {
	case rewrite.Seq:
		var stmts []ast.Stmt
		for _, sub := range s {
			stmts = append(stmts, lw.lowerStep(sub)...)
		}
		return stmts

	case rewrite.Frag:
		return []ast.Stmt{exprStmt(callExpr(sel(recVar, "Frag"), strLit(string(s))))}

	case rewrite.Value:
		var method string
		switch s.Kind {
		case expr.ValueUint:
			method = "UintArg"
		case expr.ValueFloat:
			method = "FloatArg"
		case expr.ValueBool:
			method = "BoolArg"
		case expr.ValueString:
			method = "StrArg"
		default:
			method = "IntArg"
		}
		return []ast.Stmt{exprStmt(callExpr(sel(recVar, method), cellAddr(s.Cell)))}

	case rewrite.Truth:
		thenStmts := lw.lowerStep(s.Then)
		elseStmts := lw.lowerStep(s.Else)
		truth := callExpr(&ast.SelectorExpr{X: cellIndex(s.Cell), Sel: ast.NewIdent("Truth")})
		switch {
		case len(thenStmts) == 0 && len(elseStmts) == 0:
			return nil
		case len(thenStmts) == 0:
			return []ast.Stmt{&ast.IfStmt{
				Cond: &ast.UnaryExpr{Op: token.NOT, X: truth},
				Body: &ast.BlockStmt{List: elseStmts},
			}}
		case len(elseStmts) == 0:
			return []ast.Stmt{&ast.IfStmt{
				Cond: truth,
				Body: &ast.BlockStmt{List: thenStmts},
			}}
		default:
			return []ast.Stmt{&ast.IfStmt{
				Cond: truth,
				Body: &ast.BlockStmt{List: thenStmts},
				Else: &ast.BlockStmt{List: elseStmts},
			}}
		}
	}
	panic(fmt.Sprintf("assertlens: unknown branch step %T", s))
}

// preservedFailure returns the statement appended after the diagnostic so
// the assertion still aborts, or nil when configured to replace the failure
// branch outright.
func (lw *lowerer) preservedFailure(site Site) ast.Stmt {
	if !lw.cfg.PreserveFailure {
		return nil
	}
	if site.Form == FormIfFail {
		return site.FailStmt
	}
	return exprStmt(callExpr(nameExpr(site.AssertIdent), ast.NewIdent("false")))
}

// reportExpr resolves the diagnostic routine reference baked into the
// generated Emit call. Custom routines are wrapped in a literal so
// printf-style functions with return values (fmt.Printf and friends) fit
// the Emit signature.
func (lw *lowerer) reportExpr() ast.Expr {
	r := lw.cfg.Report
	if r.Func == "" {
		return sel(runtimePkg, "Report")
	}

	var target ast.Expr
	if r.Import == "" {
		target = nameExpr(r.Func)
	} else {
		pkg := r.Import
		if i := strings.LastIndex(pkg, "/"); i >= 0 {
			pkg = pkg[i+1:]
		}
		target = sel(pkg, r.Func)
	}

	forward := &ast.CallExpr{
		Fun:      target,
		Args:     []ast.Expr{ast.NewIdent("format"), ast.NewIdent("args")},
		Ellipsis: token.Pos(1), // forward args...
	}
	return &ast.FuncLit{
		Type: &ast.FuncType{
			Params: &ast.FieldList{List: []*ast.Field{
				{Names: []*ast.Ident{ast.NewIdent("format")}, Type: ast.NewIdent("string")},
				{Names: []*ast.Ident{ast.NewIdent("args")}, Type: &ast.Ellipsis{Elt: ast.NewIdent("any")}},
			}},
		},
		Body: &ast.BlockStmt{List: []ast.Stmt{exprStmt(forward)}},
	}
}

func (lw *lowerer) putCall(fn string, n *expr.Node, arg ast.Expr) ast.Expr {
	id, ok := lw.cap.ID(n)
	if !ok {
		panic(fmt.Sprintf("assertlens: %s node has no capture cell", n.Kind()))
	}
	return callExpr(sel(runtimePkg, fn), cellAddr(id), arg)
}

// AST construction helpers.

func cellIndex(id int) ast.Expr {
	return &ast.IndexExpr{X: ast.NewIdent(cellsVar), Index: intLit(id)}
}

func cellAddr(id int) ast.Expr {
	return &ast.UnaryExpr{Op: token.AND, X: cellIndex(id)}
}

func sel(pkg, name string) ast.Expr {
	return &ast.SelectorExpr{X: ast.NewIdent(pkg), Sel: ast.NewIdent(name)}
}

// nameExpr builds a reference from a display name, resolving one "pkg.Func"
// level if present.
func nameExpr(name string) ast.Expr {
	if i := strings.Index(name, "."); i >= 0 {
		return sel(name[:i], name[i+1:])
	}
	return ast.NewIdent(name)
}

func callExpr(fn ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Fun: fn, Args: args}
}

func conv(typ string, e ast.Expr) ast.Expr {
	return callExpr(ast.NewIdent(typ), e)
}

func exprStmt(e ast.Expr) ast.Stmt {
	return &ast.ExprStmt{X: e}
}

func intLit(v int) ast.Expr {
	return &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(v)}
}

func strLit(s string) ast.Expr {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}
