package goast

import (
	"go/ast"
	"go/importer"
	"go/token"
	"go/types"

	"assertlens/internal/logging"
)

// typeInfo type-checks a single file against the standard importer and
// returns whatever expression types could be resolved. Type checking a lone
// file of a larger package routinely reports errors; partial results are
// still useful, so errors only downgrade binding to heuristics for the
// expressions they cover.
func typeInfo(fset *token.FileSet, file *ast.File) *types.Info {
	info := &types.Info{
		Types: make(map[ast.Expr]types.TypeAndValue),
	}
	var firstErr error
	conf := types.Config{
		Importer: importer.Default(),
		Error: func(err error) {
			if firstErr == nil {
				firstErr = err
			}
		},
	}
	_, err := conf.Check(file.Name.Name, fset, []*ast.File{file}, info)
	if err != nil || firstErr != nil {
		if firstErr == nil {
			firstErr = err
		}
		logging.RewriteDebug("typeInfo: partial type information: %v", firstErr)
	}
	return info
}
