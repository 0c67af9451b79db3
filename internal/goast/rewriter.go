package goast

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"assertlens/internal/capture"
	"assertlens/internal/config"
	"assertlens/internal/logging"
	"assertlens/internal/rewrite"
)

// SiteOutcome records what happened at one assertion site. Failures are
// occurrence-local: a site that cannot be instrumented is left untouched
// and reported here while the rest of the file proceeds.
type SiteOutcome struct {
	Pos          token.Position
	Source       string
	Instrumented bool
	Reason       string
}

// Report summarizes one file rewrite.
type Report struct {
	File         string
	Output       string
	Instrumented int
	Skipped      int
	Outcomes     []SiteOutcome
}

// Rewriter instruments assertion sites in Go source files.
type Rewriter struct {
	cfg *config.Config
}

func NewRewriter(cfg *config.Config) *Rewriter {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Rewriter{cfg: cfg}
}

// RewriteFile reads path, instruments it, and writes the result next to the
// original under the configured suffix, or back over the original when the
// suffix is empty. Files that already carry the suffix are refused so
// repeated suffixed runs never instrument their own output.
func (rw *Rewriter) RewriteFile(path string) (*Report, error) {
	base := strings.TrimSuffix(filepath.Base(path), ".go")
	if rw.cfg.OutputSuffix != "" && strings.HasSuffix(base, rw.cfg.OutputSuffix) {
		return nil, fmt.Errorf("refusing to rewrite generated file %s", path)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	out, report, err := rw.RewriteSource(path, src)
	if err != nil {
		return nil, err
	}

	dest := path
	if rw.cfg.OutputSuffix != "" {
		dest = filepath.Join(filepath.Dir(path), base+rw.cfg.OutputSuffix+".go")
	}
	if err := os.WriteFile(dest, out, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", dest, err)
	}
	report.Output = dest
	logging.Rewrite("%s: %d site(s) instrumented, %d skipped -> %s",
		path, report.Instrumented, report.Skipped, dest)
	return report, nil
}

// RewriteSource instruments src and returns the formatted result. The input
// is never modified when no site can be instrumented; callers still get the
// outcome list explaining why.
func (rw *Rewriter) RewriteSource(filename string, src []byte) ([]byte, *Report, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	var info *types.Info
	if rw.cfg.TypedBinding {
		info = typeInfo(fset, file)
	}

	sites, skips := FindSites(fset, file, rw.cfg.AssertFuncs, rw.cfg.FailCalls)

	report := &Report{File: filename}
	for _, sk := range skips {
		report.Skipped++
		report.Outcomes = append(report.Outcomes, SiteOutcome{Pos: sk.Pos, Reason: sk.Reason})
		logging.RewriteWarn("%s: skipped: %s", sk.Pos, sk.Reason)
	}

	for _, site := range sites {
		outcome := rw.rewriteSite(fset, site, info)
		if outcome.Instrumented {
			report.Instrumented++
		} else {
			report.Skipped++
			logging.RewriteWarn("%s: skipped: %s", outcome.Pos, outcome.Reason)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	if report.Instrumented > 0 {
		addImport(file, RuntimeImportPath)
		if rw.cfg.Report.Import != "" {
			addImport(file, rw.cfg.Report.Import)
		}
	}

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, nil, fmt.Errorf("formatting %s: %w", filename, err)
	}
	return buf.Bytes(), report, nil
}

func (rw *Rewriter) rewriteSite(fset *token.FileSet, site Site, info *types.Info) SiteOutcome {
	outcome := SiteOutcome{
		Pos:    fset.Position(site.Cond.Pos()),
		Source: exprString(fset, site.Cond),
	}

	binding, err := Bind(fset, site.Cond, info)
	if err != nil {
		outcome.Reason = err.Error()
		return outcome
	}

	if err := lowerable(binding); err != nil {
		outcome.Reason = err.Error()
		return outcome
	}

	cap, err := capture.Wrap(binding.Root)
	if err != nil {
		outcome.Reason = err.Error()
		return outcome
	}

	program := rewrite.Build(cap)
	site.Block.List[site.Index] = lowerSite(site, binding, cap, program, rw.cfg)

	outcome.Instrumented = true
	logging.RewriteDebug("%s: instrumented %q (%d cells)",
		outcome.Pos, outcome.Source, cap.NumCells())
	return outcome
}

// addImport appends path to the file's imports unless already present. The
// printer merges it into the existing grouped import block.
func addImport(file *ast.File, path string) {
	for _, imp := range file.Imports {
		if imp.Path.Value == strconv.Quote(path) {
			return
		}
	}

	spec := &ast.ImportSpec{
		Path: &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(path)},
	}
	file.Imports = append(file.Imports, spec)

	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.IMPORT {
			continue
		}
		gen.Specs = append(gen.Specs, spec)
		if len(gen.Specs) > 1 {
			gen.Lparen = gen.Pos() // force the grouped form
		}
		return
	}

	// No import declaration yet: add one right after the package clause.
	gen := &ast.GenDecl{Tok: token.IMPORT, Specs: []ast.Spec{spec}}
	file.Decls = append([]ast.Decl{gen}, file.Decls...)
}
