package rewrite

import (
	"fmt"

	"assertlens/internal/capture"
	"assertlens/internal/render"
)

// Execute runs a failure-path program against the cells of one evaluated
// check, accumulating the diagnostic into r. Deterministic: given the same
// cell contents it produces the same template and arguments.
func Execute(s Step, c *capture.Captured, r *render.Renderer) {
	switch s := s.(type) {
	case Seq:
		for _, sub := range s {
			Execute(sub, c, r)
		}
	case Frag:
		r.Fragment(string(s))
	case Value:
		r.Value(s.Kind.Verb(), c.Cell(s.Cell).Value().Any())
	case Truth:
		if c.Cell(s.Cell).Truth() {
			Execute(s.Then, c, r)
		} else {
			Execute(s.Else, c, r)
		}
	default:
		panic(fmt.Sprintf("assertlens: unknown branch step %T", s))
	}
}
