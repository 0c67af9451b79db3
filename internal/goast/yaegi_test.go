package goast

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"assertlens/internal/config"
)

// introspectSample is a complete program with assertion sites and a local
// diagnostic sink, executed under the interpreter after rewriting.
const introspectSample = `package main

import "fmt"

var captured string

func record(format string, args ...interface{}) {
	captured += fmt.Sprintf(format, args...)
}

func assert(cond bool) {}

func RunEq(x, y int) string {
	captured = ""
	assert(x == y)
	return captured
}

func RunAnd(a, b, c int) string {
	captured = ""
	assert(a == b && b < c)
	return captured
}

func RunOr(x int) string {
	captured = ""
	assert(x == 1 || x == 2)
	return captured
}

func RunWrap(a, b uint8) string {
	captured = ""
	assert(a+b == 0)
	return captured
}

var calls int

func call(n int) int {
	calls++
	return n
}

func RunCall(n int) string {
	captured = ""
	calls = 0
	assert(call(n)%2 == 0 && n-100 == 150)
	return captured
}

func CallCount() int {
	return calls
}
`

// TestInstrumentedProgramUnderInterpreter rewrites a program and runs the
// result end to end: the generated capture calls, branch structure, and
// recorder output all execute for real instead of being string-matched.
func TestInstrumentedProgramUnderInterpreter(t *testing.T) {
	gopath := t.TempDir()
	stageRuntime(t, gopath)

	cfg := config.Default()
	cfg.Report = config.ReportConfig{Func: "record"}
	out, report, err := NewRewriter(cfg).RewriteSource("sample.go", []byte(introspectSample))
	if err != nil {
		t.Fatalf("RewriteSource: %v", err)
	}
	if report.Instrumented != 5 {
		t.Fatalf("instrumented %d sites, want 5", report.Instrumented)
	}

	i := interp.New(interp.Options{GoPath: gopath})
	if err := i.Use(stdlib.Symbols); err != nil {
		t.Fatalf("loading stdlib symbols: %v", err)
	}
	if _, err := i.Eval(string(out)); err != nil {
		t.Fatalf("interpreting instrumented program: %v\n%s", err, out)
	}

	runEq := evalFunc2(t, i, "main.RunEq")
	if got := runEq(5, 42); got != "5 == 42\n" {
		t.Errorf("RunEq(5, 42) diagnostic = %q", got)
	}
	if got := runEq(7, 7); got != "" {
		t.Errorf("passing check produced diagnostic %q", got)
	}

	v, err := i.Eval("main.RunAnd")
	if err != nil {
		t.Fatalf("fetching RunAnd: %v", err)
	}
	runAnd := v.Interface().(func(int, int, int) string)
	if got := runAnd(0, 1, 2); got != "0 == 1\n" {
		t.Errorf("AND with false left rendered %q, want left side only", got)
	}
	if got := runAnd(1, 1, 0); got != "(...) && (1 < 0)\n" {
		t.Errorf("AND with true left rendered %q", got)
	}
	if got := runAnd(1, 1, 2); got != "" {
		t.Errorf("passing AND produced diagnostic %q", got)
	}

	w, err := i.Eval("main.RunOr")
	if err != nil {
		t.Fatalf("fetching RunOr: %v", err)
	}
	runOr := w.Interface().(func(int) string)
	if got := runOr(9); got != "(9 == 1) || (9 == 2)\n" {
		t.Errorf("failed OR rendered %q, want both sides", got)
	}
	if got := runOr(2); got != "" {
		t.Errorf("passing OR produced diagnostic %q", got)
	}

	// Narrow-integer arithmetic keeps source semantics: 128+128 wraps to 0
	// in uint8, so the condition holds and instrumentation must stay silent.
	u, err := i.Eval("main.RunWrap")
	if err != nil {
		t.Fatalf("fetching RunWrap: %v", err)
	}
	runWrap := u.Interface().(func(uint8, uint8) string)
	if got := runWrap(128, 128); got != "" {
		t.Errorf("wrapping sum that reaches zero produced diagnostic %q", got)
	}
	if got := runWrap(1, 2); got != "1 + 2 == 0\n" {
		t.Errorf("failed narrow arithmetic rendered %q", got)
	}
}

// TestInstrumentedCallEvaluatesOnce runs a condition whose left operand is
// a counting function call. Pass or fail, instrumentation must leave the
// call executed exactly once.
func TestInstrumentedCallEvaluatesOnce(t *testing.T) {
	gopath := t.TempDir()
	stageRuntime(t, gopath)

	cfg := config.Default()
	cfg.Report = config.ReportConfig{Func: "record"}
	out, _, err := NewRewriter(cfg).RewriteSource("sample.go", []byte(introspectSample))
	if err != nil {
		t.Fatalf("RewriteSource: %v", err)
	}

	i := interp.New(interp.Options{GoPath: gopath})
	if err := i.Use(stdlib.Symbols); err != nil {
		t.Fatalf("loading stdlib symbols: %v", err)
	}
	if _, err := i.Eval(string(out)); err != nil {
		t.Fatalf("interpreting instrumented program: %v\n%s", err, out)
	}

	v, err := i.Eval("main.RunCall")
	if err != nil {
		t.Fatalf("fetching RunCall: %v", err)
	}
	runCall := v.Interface().(func(int) string)
	c, err := i.Eval("main.CallCount")
	if err != nil {
		t.Fatalf("fetching CallCount: %v", err)
	}
	callCount := c.Interface().(func() int)

	if got := runCall(250); got != "" {
		t.Errorf("passing check produced diagnostic %q", got)
	}
	if n := callCount(); n != 1 {
		t.Errorf("passing check executed call %d times, want 1", n)
	}

	if got := runCall(251); got != "251 % 2 == 0\n" {
		t.Errorf("odd operand rendered %q", got)
	}
	if n := callCount(); n != 1 {
		t.Errorf("failed left operand executed call %d times, want 1", n)
	}

	if got := runCall(252); got != "(...) && (252 - 100 == 150)\n" {
		t.Errorf("failed right operand rendered %q", got)
	}
	if n := callCount(); n != 1 {
		t.Errorf("failed right operand executed call %d times, want 1", n)
	}
}

func evalFunc2(t *testing.T, i *interp.Interpreter, name string) func(int, int) string {
	t.Helper()
	v, err := i.Eval(name)
	if err != nil {
		t.Fatalf("fetching %s: %v", name, err)
	}
	fn, ok := v.Interface().(func(int, int) string)
	if !ok {
		t.Fatalf("%s has unexpected type %T", name, v.Interface())
	}
	return fn
}

// stageRuntime copies the support package into a synthetic GOPATH so the
// interpreter can resolve the instrumented program's import.
func stageRuntime(t *testing.T, gopath string) {
	t.Helper()
	dest := filepath.Join(gopath, "src", RuntimeImportPath)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}

	src := filepath.Join("..", "..", "pkg", "assertrt")
	entries, err := os.ReadDir(src)
	if err != nil {
		t.Fatalf("reading runtime package: %v", err)
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, name))
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dest, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}
