// Package render assembles failure diagnostics: ordered (fragment, value)
// pairs accumulated left-to-right during the failure-path walk, concatenated
// into one format template plus one positional argument list. A renderer is
// built per failing check and discarded afterwards.
package render

import (
	"fmt"
	"strings"
)

// DefaultLimit bounds the assembled template for pathological expressions.
// Past the bound the renderer truncates deterministically instead of
// growing without bound.
const DefaultLimit = 1024

// TruncationMark is appended once when a diagnostic was cut short.
const TruncationMark = " ...[truncated]"

// ReportFunc is the diagnostic-printing routine. The host resolves it once
// and passes it in as configuration; the engine never looks it up.
type ReportFunc func(format string, args ...any)

// Renderer accumulates the template and argument list. All length state is
// initialized explicitly by New; a zero Renderer is not usable. Argument
// positions are implicit: len(args) is always the next position.
type Renderer struct {
	frags     []string
	args      []any
	limit     int
	length    int
	truncated bool
}

// New returns a renderer bounded to limit template bytes. limit <= 0 selects
// DefaultLimit.
func New(limit int) *Renderer {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Renderer{
		frags:  make([]string, 0, 16),
		args:   make([]any, 0, 8),
		limit:  limit,
		length: 0,
	}
}

// Fragment appends a literal format piece. Once the limit is reached the
// fragment is dropped and the renderer is flagged truncated; accumulation
// never overruns the bound.
func (r *Renderer) Fragment(s string) {
	// literal fragments must not be interpreted as verbs
	s = strings.ReplaceAll(s, "%", "%%")
	if r.truncated || r.length+len(s) > r.limit {
		r.truncated = true
		return
	}
	r.frags = append(r.frags, s)
	r.length += len(s)
}

// Value appends a placeholder for one captured value, matching the verb to
// the value kind, and records the value at the next argument position.
func (r *Renderer) Value(verb string, arg any) {
	if r.truncated || r.length+len(verb) > r.limit {
		r.truncated = true
		return
	}
	r.frags = append(r.frags, verb)
	r.args = append(r.args, arg)
	r.length += len(verb)
}

// Template returns the concatenated format string, including the truncation
// mark when the bound was hit.
func (r *Renderer) Template() string {
	t := strings.Join(r.frags, "")
	if r.truncated {
		t += TruncationMark
	}
	return t
}

// Args returns the positional arguments in source order. Len(Args) always
// equals the number of placeholders in Template.
func (r *Renderer) Args() []any { return r.args }

// Truncated reports whether the bound was hit.
func (r *Renderer) Truncated() bool { return r.truncated }

// Render expands the template for callers that want the final text rather
// than a (template, args) pair.
func (r *Renderer) Render() string {
	return fmt.Sprintf(r.Template(), r.args...)
}

// Emit hands the assembled diagnostic to the report routine.
func (r *Renderer) Emit(report ReportFunc) {
	report(r.Template(), r.args...)
}
