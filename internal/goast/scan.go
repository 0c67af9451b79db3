// Package goast adapts the assertlens engine to Go source: it locates
// assertion call-sites in a parsed file, binds their conditions into the
// engine's expression vocabulary, and lowers the engine's failure-path
// program back to go/ast statements spliced over the original failure
// branch. Nothing else in the file is touched.
package goast

import (
	"go/ast"
	"go/token"

	"assertlens/internal/logging"
)

// Form identifies the shape of a recognized assertion region.
type Form int

const (
	// FormAssertCall is an expression statement `assert(cond)` whose callee
	// matches a configured assert helper.
	FormAssertCall Form = iota
	// FormIfFail is `if !cond { failCall(...) }` with a single-statement
	// body calling a configured failure function.
	FormIfFail
)

func (f Form) String() string {
	if f == FormAssertCall {
		return "assert-call"
	}
	return "if-fail"
}

// Site is one assertion occurrence: the condition subtree plus the splice
// point (the statement to replace inside its enclosing block).
type Site struct {
	Form  Form
	Pos   token.Position
	Cond  ast.Expr
	Block *ast.BlockStmt // enclosing block
	Index int            // index of the statement within Block.List

	// AssertIdent is the assert helper name (FormAssertCall only).
	AssertIdent string
	// FailStmt is the original failure-branch statement (FormIfFail only).
	FailStmt ast.Stmt
}

// Skip records an occurrence-local refusal: the site stays untouched and
// the reason surfaces as a warning.
type Skip struct {
	Pos    token.Position
	Reason string
}

// FindSites scans a file for assertion regions matching the configured
// shapes. Candidate sites that resemble an assertion but do not match the
// expected layout are returned as skips (UnsupportedShape), never rewritten.
func FindSites(fset *token.FileSet, file *ast.File, assertFuncs, failCalls []string) ([]Site, []Skip) {
	timer := logging.StartTimer(logging.CategoryScan, "FindSites")
	defer timer.Stop()

	asserts := toSet(assertFuncs)
	fails := toSet(failCalls)

	var sites []Site
	var skips []Skip

	ast.Inspect(file, func(n ast.Node) bool {
		block, ok := n.(*ast.BlockStmt)
		if !ok {
			return true
		}
		for i, stmt := range block.List {
			switch s := stmt.(type) {
			case *ast.ExprStmt:
				call, ok := s.X.(*ast.CallExpr)
				if !ok {
					continue
				}
				name, ok := calleeName(call)
				if !ok || !asserts[name] {
					continue
				}
				if len(call.Args) != 1 {
					skips = append(skips, Skip{
						Pos:    fset.Position(call.Pos()),
						Reason: "assert helper called with more than one argument",
					})
					continue
				}
				sites = append(sites, Site{
					Form:        FormAssertCall,
					Pos:         fset.Position(call.Pos()),
					Cond:        call.Args[0],
					Block:       block,
					Index:       i,
					AssertIdent: name,
				})

			case *ast.IfStmt:
				failStmt, ok := singleFailStmt(s, fails)
				if !ok {
					continue
				}
				neg, ok := s.Cond.(*ast.UnaryExpr)
				if !ok || neg.Op != token.NOT {
					// an ordinary guard clause, not an assertion region
					continue
				}
				if s.Init != nil || s.Else != nil {
					skips = append(skips, Skip{
						Pos:    fset.Position(s.Pos()),
						Reason: "failure branch has an init clause or else branch",
					})
					continue
				}
				sites = append(sites, Site{
					Form:     FormIfFail,
					Pos:      fset.Position(s.Pos()),
					Cond:     neg.X,
					Block:    block,
					Index:    i,
					FailStmt: failStmt,
				})
			}
		}
		return true
	})

	logging.ScanDebug("FindSites: %d sites, %d skips", len(sites), len(skips))
	return sites, skips
}

// singleFailStmt reports whether the if body is exactly one call to a
// configured failure function, returning that statement.
func singleFailStmt(s *ast.IfStmt, fails map[string]bool) (ast.Stmt, bool) {
	if s.Body == nil || len(s.Body.List) != 1 {
		return nil, false
	}
	es, ok := s.Body.List[0].(*ast.ExprStmt)
	if !ok {
		return nil, false
	}
	call, ok := es.X.(*ast.CallExpr)
	if !ok {
		return nil, false
	}
	name, ok := calleeName(call)
	if !ok || !fails[name] {
		return nil, false
	}
	return es, true
}

// calleeName resolves a call's target to a display name: plain identifier
// or pkg.Func selector.
func calleeName(call *ast.CallExpr) (string, bool) {
	switch fn := call.Fun.(type) {
	case *ast.Ident:
		return fn.Name, true
	case *ast.SelectorExpr:
		if x, ok := fn.X.(*ast.Ident); ok {
			return x.Name + "." + fn.Sel.Name, true
		}
	}
	return "", false
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
