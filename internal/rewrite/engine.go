package rewrite

import (
	"fmt"
	"os"

	"assertlens/internal/capture"
	"assertlens/internal/expr"
	"assertlens/internal/render"
)

// Engine checks conditions in library mode: leaves carry thunks and the
// failure-path program runs in-process instead of being lowered to source.
// The report routine is an explicit dependency, resolved once by the caller.
type Engine struct {
	report render.ReportFunc
	limit  int
}

// NewEngine builds an engine. A nil report defaults to stderr; limit <= 0
// selects render.DefaultLimit.
func NewEngine(report render.ReportFunc, limit int) *Engine {
	if report == nil {
		report = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format, args...)
		}
	}
	return &Engine{report: report, limit: limit}
}

// Instrument runs the capture pass and builds the failure-path program for
// one condition. Instrumentation failures are transform-time and leave the
// condition untouched; they never reach evaluation.
func (e *Engine) Instrument(root *expr.Node) (*Instrumented, error) {
	cap, err := capture.Wrap(root)
	if err != nil {
		return nil, err
	}
	if missing := cap.MissingThunks(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: leaf %q has no thunk", capture.ErrCapture, missing[0])
	}
	return &Instrumented{
		engine:   e,
		captured: cap,
		program:  Build(cap),
	}, nil
}

// Check instruments and evaluates in one call, reporting the diagnostic on
// failure. The returned bool is the condition's truth value.
func (e *Engine) Check(root *expr.Node) (bool, error) {
	ins, err := e.Instrument(root)
	if err != nil {
		return false, err
	}
	return ins.Check(), nil
}

// Instrumented is one assertion occurrence after transformation: the
// captured condition plus its failure-path program. It may be checked
// repeatedly; cells are cleared before each evaluation.
type Instrumented struct {
	engine   *Engine
	captured *capture.Captured
	program  Step
}

// Check evaluates the condition once. On failure the program runs against
// the captured cells and the rendered diagnostic goes to the report routine;
// on success no diagnostic code executes at all.
func (ins *Instrumented) Check() bool {
	ok := ins.captured.Eval()
	if ok {
		return true
	}
	r := render.New(ins.engine.limit)
	Execute(ins.program, ins.captured, r)
	ins.engine.report(r.Template()+"\n", r.Args()...)
	return false
}

// Failure renders the diagnostic of the most recent failed Check without
// reporting it, for callers that embed the text elsewhere. Must only be
// called after Check returned false.
func (ins *Instrumented) Failure() (template string, args []any) {
	r := render.New(ins.engine.limit)
	Execute(ins.program, ins.captured, r)
	return r.Template(), r.Args()
}
