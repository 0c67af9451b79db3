package capture

import (
	"errors"
	"strings"
	"testing"

	"assertlens/internal/expr"
)

// counted builds an int leaf whose thunk increments *n on every call, for
// verifying operands are evaluated exactly once per check.
func counted(v int64, n *int) *expr.Node {
	return expr.Leaf("x", expr.ValueInt, func() expr.Value {
		*n++
		return expr.IntValue(v)
	})
}

func boolLeaf(v bool, n *int) *expr.Node {
	return expr.Leaf("b", expr.ValueBool, func() expr.Value {
		*n++
		return expr.BoolValue(v)
	})
}

func TestWrapAssignsCells(t *testing.T) {
	// (a == b) && c: cells for a, b, the comparison, c, and the AND.
	a := counted(1, new(int))
	b := counted(2, new(int))
	c := boolLeaf(true, new(int))
	cmp := expr.Compare(expr.OpEq, a, b)
	root := expr.And(cmp, c)

	cap, err := Wrap(root)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if cap.NumCells() != 5 {
		t.Errorf("NumCells = %d, want 5", cap.NumCells())
	}
	for _, n := range []*expr.Node{a, b, c, cmp, root} {
		if _, ok := cap.ID(n); !ok {
			t.Errorf("node %s has no cell", n)
		}
	}
}

func TestWrapArithHasNoCell(t *testing.T) {
	a := counted(1, new(int))
	b := counted(2, new(int))
	sum := expr.Arith(expr.OpAdd, a, b)
	root := expr.Compare(expr.OpEq, sum, counted(3, new(int)))

	cap, err := Wrap(root)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if _, ok := cap.ID(sum); ok {
		t.Error("arithmetic node was assigned a cell")
	}
	if _, ok := cap.ID(root); !ok {
		t.Error("comparison node missing its cell")
	}
}

func TestWrapValidation(t *testing.T) {
	intL := func() *expr.Node { return counted(1, new(int)) }
	boolL := func() *expr.Node { return boolLeaf(true, new(int)) }
	strL := func() *expr.Node {
		return expr.Leaf("s", expr.ValueString, func() expr.Value { return expr.StringValue("s") })
	}
	floatL := func() *expr.Node {
		return expr.Leaf("f", expr.ValueFloat, func() expr.Value { return expr.FloatValue(1) })
	}

	tests := []struct {
		name string
		node *expr.Node
	}{
		{"kind mismatch in compare", expr.Compare(expr.OpEq, intL(), strL())},
		{"ordering on bools", expr.Compare(expr.OpLt, boolL(), boolL())},
		{"non-bool under and", expr.And(intL(), boolL())},
		{"non-bool under or", expr.Or(boolL(), intL())},
		{"bool arithmetic", expr.Compare(expr.OpEq, expr.Arith(expr.OpAdd, boolL(), boolL()), boolL())},
		{"string subtraction", expr.Compare(expr.OpEq, expr.Arith(expr.OpSub, strL(), strL()), strL())},
		{"float modulo", expr.Compare(expr.OpEq, expr.Arith(expr.OpMod, floatL(), floatL()), floatL())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Wrap(tt.node)
			if err == nil {
				t.Fatal("Wrap succeeded, want capture failure")
			}
			if !errors.Is(err, ErrCapture) {
				t.Errorf("error %v is not ErrCapture", err)
			}
		})
	}
}

func TestEvalSingleEvaluation(t *testing.T) {
	var na, nb int
	a := counted(5, &na)
	b := counted(5, &nb)
	cap, err := Wrap(expr.Compare(expr.OpEq, a, b))
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	if !cap.Eval() {
		t.Error("5 == 5 evaluated false")
	}
	if na != 1 || nb != 1 {
		t.Errorf("thunk calls = (%d, %d), want (1, 1)", na, nb)
	}

	// Re-check: cells reset, each thunk runs exactly once more.
	cap.Eval()
	if na != 2 || nb != 2 {
		t.Errorf("thunk calls after re-check = (%d, %d), want (2, 2)", na, nb)
	}
}

func TestEvalShortCircuitAnd(t *testing.T) {
	var nLeft, nRight int
	left := expr.Compare(expr.OpEq, counted(0, &nLeft), counted(1, new(int)))
	right := expr.Compare(expr.OpEq, counted(5, &nRight), counted(2, new(int)))
	root := expr.And(left, right)

	cap, err := Wrap(root)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if cap.Eval() {
		t.Error("condition evaluated true")
	}
	if nLeft != 1 {
		t.Errorf("left operand evaluated %d times, want 1", nLeft)
	}
	if nRight != 0 {
		t.Errorf("right operand evaluated %d times, want 0", nRight)
	}

	// Cells behind the untaken branch stay unfilled.
	rid, _ := cap.ID(right)
	if cap.Cell(rid).Filled() {
		t.Error("right comparison cell filled despite short-circuit")
	}
	lid, _ := cap.ID(left)
	if !cap.Cell(lid).Filled() || cap.Cell(lid).Truth() {
		t.Error("left comparison cell should hold false")
	}
}

func TestEvalShortCircuitOr(t *testing.T) {
	var nRight int
	left := expr.Compare(expr.OpEq, counted(1, new(int)), counted(1, new(int)))
	right := expr.Compare(expr.OpEq, counted(9, &nRight), counted(9, new(int)))
	root := expr.Or(left, right)

	cap, err := Wrap(root)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if !cap.Eval() {
		t.Error("condition evaluated false")
	}
	if nRight != 0 {
		t.Errorf("right operand evaluated %d times, want 0", nRight)
	}
	id, _ := cap.ID(root)
	if !cap.Cell(id).Truth() {
		t.Error("or node cell should hold true")
	}
}

func TestEvalArithmetic(t *testing.T) {
	// a + b == c with a=2, b=3, c=5
	root := expr.Compare(expr.OpEq,
		expr.Arith(expr.OpAdd, counted(2, new(int)), counted(3, new(int))),
		counted(5, new(int)))
	cap, err := Wrap(root)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if !cap.Eval() {
		t.Error("2 + 3 == 5 evaluated false")
	}
}

func TestEvalStringConcat(t *testing.T) {
	s := func(v string) *expr.Node {
		return expr.Leaf(v, expr.ValueString, func() expr.Value { return expr.StringValue(v) })
	}
	root := expr.Compare(expr.OpEq, expr.Arith(expr.OpAdd, s("ab"), s("cd")), s("abcd"))
	cap, err := Wrap(root)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if !cap.Eval() {
		t.Error(`"ab" + "cd" == "abcd" evaluated false`)
	}
}

func TestUnfilledCellReadPanics(t *testing.T) {
	cap, err := Wrap(expr.Compare(expr.OpEq, counted(1, new(int)), counted(1, new(int))))
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("reading an unfilled cell did not panic")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "unevaluated operand") {
			t.Errorf("unexpected panic value: %v", r)
		}
	}()
	cap.Cell(0).Value()
}

func TestMissingThunks(t *testing.T) {
	root := expr.Compare(expr.OpEq,
		expr.Leaf("x", expr.ValueInt, nil),
		counted(1, new(int)))
	cap, err := Wrap(root)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	missing := cap.MissingThunks()
	if len(missing) != 1 || missing[0] != "x" {
		t.Errorf("MissingThunks = %v, want [x]", missing)
	}
}
