package goast

import (
	"errors"
	"go/parser"
	"go/token"
	"testing"

	"assertlens/internal/capture"
	"assertlens/internal/expr"
)

func bindSource(t *testing.T, src string) (*Binding, error) {
	t.Helper()
	fset := token.NewFileSet()
	e, err := parser.ParseExpr(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return Bind(fset, e, nil)
}

func mustBind(t *testing.T, src string) *Binding {
	t.Helper()
	b, err := bindSource(t, src)
	if err != nil {
		t.Fatalf("Bind(%q): %v", src, err)
	}
	return b
}

func TestBindShapes(t *testing.T) {
	tests := []struct {
		src      string
		wantKind expr.Kind
		wantStr  string
	}{
		{"x == y", expr.KindCompare, "x == y"},
		{"x != y", expr.KindCompare, "x != y"},
		{"a < b && b < c", expr.KindAnd, "(a < b) && (b < c)"},
		{"done || x == 0", expr.KindOr, "(done) || (x == 0)"},
		{"x + 1 == y", expr.KindCompare, "x + 1 == y"},
		{"(x) == ((y))", expr.KindCompare, "x == y"},
		{"n % 2 == 0", expr.KindCompare, "n % 2 == 0"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			b := mustBind(t, tt.src)
			if b.Root.Kind() != tt.wantKind {
				t.Errorf("root kind = %v, want %v", b.Root.Kind(), tt.wantKind)
			}
			if got := b.Root.String(); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestBindOpaqueOperators(t *testing.T) {
	// Operators outside the table leave the whole subtree one leaf.
	b := mustBind(t, "x&mask == 0")
	// & binds tighter than ==, so the left operand is the opaque x&mask.
	left := b.Root.Left()
	if left.Kind() != expr.KindLeaf {
		t.Fatalf("left of == is %v, want opaque leaf", left.Kind())
	}
	if left.Source() != "x & mask" {
		t.Errorf("leaf source = %q", left.Source())
	}
}

func TestBindCallLeaf(t *testing.T) {
	b := mustBind(t, "len(items) == 3")
	left := b.Root.Left()
	if left.Kind() != expr.KindLeaf {
		t.Fatalf("call operand bound as %v, want leaf", left.Kind())
	}
	if left.Source() != "len(items)" {
		t.Errorf("leaf source = %q", left.Source())
	}
	if got := b.LeafExpr(left); got == nil {
		t.Error("leaf lost its original expression")
	}
}

func TestBindLeafKindHeuristics(t *testing.T) {
	tests := []struct {
		src       string
		leftKind  expr.ValueKind
		rightKind expr.ValueKind
	}{
		{"x == 1", expr.ValueInt, expr.ValueInt},
		{"ratio == 1.5", expr.ValueFloat, expr.ValueFloat},
		{`name == "bob"`, expr.ValueString, expr.ValueString},
		{"flag == true", expr.ValueBool, expr.ValueBool},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			b := mustBind(t, tt.src)
			if got := b.Root.Left().ValueKind(); got != tt.leftKind {
				t.Errorf("left kind = %v, want %v", got, tt.leftKind)
			}
			if got := b.Root.Right().ValueKind(); got != tt.rightKind {
				t.Errorf("right kind = %v, want %v", got, tt.rightKind)
			}
		})
	}
}

func TestBindBoolContext(t *testing.T) {
	b := mustBind(t, "ready && x == 0")
	left := b.Root.Left()
	if left.Kind() != expr.KindLeaf || left.ValueKind() != expr.ValueBool {
		t.Errorf("logical operand bound as %v/%v, want bool leaf", left.Kind(), left.ValueKind())
	}
}

func TestBindRejectsUncapturableLeaves(t *testing.T) {
	for _, src := range []string{
		"f(func() int { return 1 }()) == 0",
		"p == Point{1, 2}",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := bindSource(t, src)
			if err == nil {
				t.Fatal("Bind succeeded, want capture failure")
			}
			if !errors.Is(err, capture.ErrCapture) {
				t.Errorf("error %v is not ErrCapture", err)
			}
		})
	}
}

func TestBindThenWrap(t *testing.T) {
	// The bound tree must pass the capture pass: comparing a heuristic int
	// leaf against a string literal would otherwise fail downstream.
	b := mustBind(t, `s == "x" && n > 0`)
	if _, err := capture.Wrap(b.Root); err != nil {
		t.Fatalf("Wrap rejected bound tree: %v", err)
	}
	if got := b.Root.Left().Left().ValueKind(); got != expr.ValueString {
		t.Errorf("s bound as %v, want string after literal reconciliation", got)
	}
}
