package goast

import (
	"go/parser"
	"go/token"
	"testing"
)

func TestFindSitesAssertCall(t *testing.T) {
	src := `package main

func assert(cond bool) {}

func f(x, y int) {
	assert(x == y)
	assert(x < y && y < 100)
}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "sample.go", src, 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	sites, skips := FindSites(fset, f, []string{"assert"}, []string{"panic"})
	if len(skips) != 0 {
		t.Errorf("unexpected skips: %v", skips)
	}
	if len(sites) != 2 {
		t.Fatalf("found %d sites, want 2", len(sites))
	}
	for _, s := range sites {
		if s.Form != FormAssertCall {
			t.Errorf("site at %v has form %v, want assert-call", s.Pos, s.Form)
		}
		if s.AssertIdent != "assert" {
			t.Errorf("AssertIdent = %q", s.AssertIdent)
		}
		if s.Cond == nil {
			t.Error("site has nil condition")
		}
	}
}

func TestFindSitesSelectorAssert(t *testing.T) {
	src := `package main

import "example.com/dbg"

func f(x int) {
	dbg.Assert(x > 0)
}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "sample.go", src, 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	sites, _ := FindSites(fset, f, []string{"dbg.Assert"}, nil)
	if len(sites) != 1 {
		t.Fatalf("found %d sites, want 1", len(sites))
	}
	if sites[0].AssertIdent != "dbg.Assert" {
		t.Errorf("AssertIdent = %q", sites[0].AssertIdent)
	}
}

func TestFindSitesIfFail(t *testing.T) {
	src := `package main

func f(x, y int) {
	if !(x == y) {
		panic("mismatch")
	}
}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "sample.go", src, 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	sites, skips := FindSites(fset, f, nil, []string{"panic"})
	if len(skips) != 0 {
		t.Errorf("unexpected skips: %v", skips)
	}
	if len(sites) != 1 {
		t.Fatalf("found %d sites, want 1", len(sites))
	}
	s := sites[0]
	if s.Form != FormIfFail {
		t.Errorf("form = %v, want if-fail", s.Form)
	}
	if s.FailStmt == nil {
		t.Error("FailStmt not recorded")
	}
}

func TestFindSitesIgnoresGuardClauses(t *testing.T) {
	// A positive condition guarding a panic is ordinary error handling,
	// not an assertion region.
	src := `package main

func f(err error) {
	if err != nil {
		panic(err)
	}
}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "sample.go", src, 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	sites, skips := FindSites(fset, f, nil, []string{"panic"})
	if len(sites) != 0 {
		t.Errorf("guard clause recognized as assertion: %v", sites)
	}
	if len(skips) != 0 {
		t.Errorf("guard clause produced skips: %v", skips)
	}
}

func TestFindSitesSkipsUnsupportedShapes(t *testing.T) {
	src := `package main

func assert(cond bool, msg string) {}

func f(x int) {
	assert(x > 0, "positive")
	if v := x; !(v > 0) {
		panic("bad")
	}
	if !(x > 0) {
		panic("bad")
	} else {
		_ = x
	}
}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "sample.go", src, 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	sites, skips := FindSites(fset, f, []string{"assert"}, []string{"panic"})
	if len(sites) != 0 {
		t.Errorf("unsupported shapes were accepted: %d sites", len(sites))
	}
	if len(skips) != 3 {
		t.Fatalf("got %d skips, want 3: %v", len(skips), skips)
	}
}
